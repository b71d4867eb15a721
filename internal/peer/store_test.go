package peer

import (
	"testing"
	"time"

	"github.com/pharos-net/pharos/internal/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveLoad(t *testing.T) {
	s := newTestStore(t)

	peers := []Peer{
		{Addr: addrA, LastSeen: time.Now()},
		{Addr: addrB, LastSeen: time.Now()},
	}
	if err := s.Save(peers); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(got))
	}

	seen := map[wire.Addr]bool{}
	for _, a := range got {
		seen[a] = true
	}
	if !seen[addrA] || !seen[addrB] {
		t.Fatalf("loaded addresses wrong: %v", got)
	}
}

func TestStoreSaveIsUpsert(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save([]Peer{{Addr: addrA, LastSeen: time.Now()}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save([]Peer{{Addr: addrA, LastSeen: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 address after re-save, got %d", len(got))
	}
}

func TestStoreForget(t *testing.T) {
	s := newTestStore(t)

	s.Save([]Peer{{Addr: addrA, LastSeen: time.Now()}, {Addr: addrB, LastSeen: time.Now()}})
	if err := s.Forget(addrA); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	got, _ := s.Load()
	if len(got) != 1 || got[0] != addrB {
		t.Fatalf("expected only addrB, got %v", got)
	}
}
