package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/pharos-net/pharos/internal/wire"
)

var (
	addrX = wire.Addr{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	addrY = wire.Addr{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}
	addrZ = wire.Addr{0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC}
)

type capture struct {
	mu     sync.Mutex
	frames []struct {
		src  wire.Addr
		data []byte
	}
}

func (c *capture) receiver(src wire.Addr, data []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, struct {
		src  wire.Addr
		data []byte
	}{src, data})
	c.mu.Unlock()
}

func (c *capture) wait(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.frames)
		c.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames", n)
}

func TestMemoryUnicast(t *testing.T) {
	m := NewMedium()
	x := m.Join(addrX)
	y := m.Join(addrY)
	z := m.Join(addrZ)

	var cy, cz capture
	y.SetReceiver(cy.receiver)
	z.SetReceiver(cz.receiver)
	for _, tr := range []*Memory{x, y, z} {
		if err := tr.Start(); err != nil {
			t.Fatal(err)
		}
	}

	if err := x.Send(addrY, []byte("for y")); err != nil {
		t.Fatal(err)
	}
	cy.wait(t, 1)

	cy.mu.Lock()
	if cy.frames[0].src != addrX || string(cy.frames[0].data) != "for y" {
		t.Fatalf("y got %v %q", cy.frames[0].src, cy.frames[0].data)
	}
	cy.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	cz.mu.Lock()
	if len(cz.frames) != 0 {
		t.Fatal("unicast leaked to z")
	}
	cz.mu.Unlock()
}

func TestMemoryBroadcastExcludesSender(t *testing.T) {
	m := NewMedium()
	x := m.Join(addrX)
	y := m.Join(addrY)
	z := m.Join(addrZ)

	var cx, cy, cz capture
	x.SetReceiver(cx.receiver)
	y.SetReceiver(cy.receiver)
	z.SetReceiver(cz.receiver)
	for _, tr := range []*Memory{x, y, z} {
		tr.Start()
	}

	if err := x.Send(wire.Broadcast, []byte("hello all")); err != nil {
		t.Fatal(err)
	}
	cy.wait(t, 1)
	cz.wait(t, 1)

	time.Sleep(20 * time.Millisecond)
	cx.mu.Lock()
	if len(cx.frames) != 0 {
		t.Fatal("sender heard its own broadcast")
	}
	cx.mu.Unlock()
}

func TestMemorySendToUnknown(t *testing.T) {
	m := NewMedium()
	x := m.Join(addrX)
	x.Start()

	if err := x.Send(addrY, []byte("nobody home")); err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestMemoryFailSends(t *testing.T) {
	m := NewMedium()
	x := m.Join(addrX)
	m.Join(addrY)
	x.Start()

	x.FailSends(true)
	if err := x.Send(addrY, []byte("doomed")); err == nil {
		t.Fatal("expected a driver failure")
	}
	x.FailSends(false)
	if err := x.Send(addrY, []byte("fine")); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryClosedReceiverSilent(t *testing.T) {
	m := NewMedium()
	x := m.Join(addrX)
	y := m.Join(addrY)

	var cy capture
	y.SetReceiver(cy.receiver)
	x.Start()
	y.Start()
	y.Close()

	// y left the medium; unicast now fails, broadcast goes nowhere.
	if err := x.Send(addrY, []byte("gone")); err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute after close, got %v", err)
	}
	if err := x.Send(wire.Broadcast, []byte("anyone")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	cy.mu.Lock()
	if len(cy.frames) != 0 {
		t.Fatal("closed transport still received")
	}
	cy.mu.Unlock()
}
