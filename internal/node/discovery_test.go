package node

import (
	"testing"
	"time"

	"github.com/pharos-net/pharos/internal/transport"
)

func TestDiscoveryLifecycle(t *testing.T) {
	m := transport.NewMedium()
	x, _ := newTestNode(t, m, addrX)

	if x.DiscoveryActive() {
		t.Fatal("discovery active before start")
	}
	if err := x.StartDiscovery(0); err != nil {
		t.Fatal(err)
	}
	if !x.DiscoveryActive() {
		t.Fatal("discovery not active after start")
	}

	// Starting again while active is a no-op, not an error.
	if err := x.StartDiscovery(0); err != nil {
		t.Fatal(err)
	}

	if err := x.StopDiscovery(); err != nil {
		t.Fatal(err)
	}
	if x.DiscoveryActive() {
		t.Fatal("discovery active after stop")
	}

	// Stopping while idle is a no-op too.
	if err := x.StopDiscovery(); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoveryAutoStop(t *testing.T) {
	m := transport.NewMedium()
	x, _ := newTestNode(t, m, addrX)

	if err := x.StartDiscovery(60 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if !x.DiscoveryActive() {
		t.Fatal("discovery not active after bounded start")
	}

	waitFor(t, func() bool { return !x.DiscoveryActive() }, "bounded discovery never stopped")
}

func TestDiscoveryAnnouncesPeriodically(t *testing.T) {
	m := transport.NewMedium()
	x, _ := newTestNode(t, m, addrX)

	if err := x.StartDiscovery(0); err != nil {
		t.Fatal(err)
	}
	defer x.StopDiscovery()

	// One immediate announce plus at least two ticks at the 20ms test
	// interval.
	waitFor(t, func() bool { return x.Stats().DiscoveryRequests >= 3 }, "announcer did not tick")
}

func TestDiscoveryRestart(t *testing.T) {
	m := transport.NewMedium()
	x, _ := newTestNode(t, m, addrX)
	y, _ := newTestNode(t, m, addrY)

	x.StartDiscovery(0)
	x.StopDiscovery()

	// A fresh start after a stop must announce again.
	before := x.Stats().DiscoveryRequests
	if err := x.StartDiscovery(0); err != nil {
		t.Fatal(err)
	}
	defer x.StopDiscovery()

	waitFor(t, func() bool { return x.Stats().DiscoveryRequests > before }, "restarted announcer silent")
	waitFor(t, func() bool { return y.IsKnown(addrX) }, "peer never learned the announcer")
}
