package peer

import (
	"testing"
	"time"

	"github.com/pharos-net/pharos/internal/wire"
)

var (
	addrA = wire.Addr{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	addrB = wire.Addr{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}
	addrC = wire.Addr{0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC}
)

func TestUpsertIdempotent(t *testing.T) {
	tab := NewTable(0)

	p1, created := tab.Upsert(addrA)
	if !created {
		t.Fatal("first upsert should create")
	}
	if !p1.Active {
		t.Fatal("new peer should be active")
	}

	time.Sleep(2 * time.Millisecond)
	p2, created := tab.Upsert(addrA)
	if created {
		t.Fatal("second upsert should not create")
	}
	if !p2.LastSeen.After(p1.LastSeen) {
		t.Fatal("second upsert should refresh LastSeen")
	}
	if tab.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tab.Len())
	}
}

func TestRecordTrafficUnknownIsNoop(t *testing.T) {
	tab := NewTable(0)
	tab.RecordTraffic(addrA, TrafficReceived)
	if tab.Len() != 0 {
		t.Fatal("traffic accounting must never create a peer")
	}
}

func TestRecordTrafficCounters(t *testing.T) {
	tab := NewTable(0)
	tab.Upsert(addrA)

	tab.RecordTraffic(addrA, TrafficSent)
	tab.RecordTraffic(addrA, TrafficSent)
	tab.RecordTraffic(addrA, TrafficReceived)
	tab.RecordTraffic(addrA, TrafficLost)

	p, ok := tab.Find(addrA)
	if !ok {
		t.Fatal("peer missing")
	}
	if p.Sent != 2 || p.Received != 1 || p.Lost != 1 {
		t.Fatalf("counters wrong: sent=%d received=%d lost=%d", p.Sent, p.Received, p.Lost)
	}
}

func TestRemove(t *testing.T) {
	tab := NewTable(0)
	tab.Upsert(addrA)

	if !tab.Remove(addrA) {
		t.Fatal("remove of known peer should return true")
	}
	if tab.Remove(addrA) {
		t.Fatal("remove of unknown peer should return false")
	}
	if _, ok := tab.Find(addrA); ok {
		t.Fatal("peer still present after remove")
	}
}

func TestSnapshotInsertionOrderAndIsolation(t *testing.T) {
	tab := NewTable(0)
	tab.Upsert(addrB)
	tab.Upsert(addrA)
	tab.Upsert(addrC)

	snap := tab.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 peers, got %d", len(snap))
	}
	if snap[0].Addr != addrB || snap[1].Addr != addrA || snap[2].Addr != addrC {
		t.Fatal("snapshot not in insertion order")
	}

	// Mutating the snapshot must not leak into the table.
	snap[0].Sent = 999
	p, _ := tab.Find(addrB)
	if p.Sent != 0 {
		t.Fatal("snapshot mutation leaked into table")
	}
}

func TestRSSIViews(t *testing.T) {
	tab := NewTable(0)
	tab.Upsert(addrA)
	tab.Upsert(addrB)
	tab.Upsert(addrC)

	tab.ObserveRSSI(addrA, -70)
	tab.ObserveRSSI(addrB, -40)
	// addrC never reports a reading

	strong := tab.ByRSSI(-60)
	if len(strong) != 1 || strong[0].Addr != addrB {
		t.Fatalf("ByRSSI(-60) = %v", strong)
	}

	best, ok := tab.Strongest()
	if !ok || best.Addr != addrB {
		t.Fatal("Strongest should pick addrB")
	}

	tab.ObserveRSSI(wire.Addr{0x01}, 0) // unknown addr reading is ignored
}

func TestSoftLimitDoesNotBlockGrowth(t *testing.T) {
	tab := NewTable(2)
	tab.Upsert(addrA)
	tab.Upsert(addrB)
	tab.Upsert(addrC) // over the limit: advisory only
	if tab.Len() != 3 {
		t.Fatalf("soft limit must not cap the table, got %d", tab.Len())
	}
}
