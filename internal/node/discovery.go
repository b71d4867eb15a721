package node

import (
	"time"

	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/wire"
)

// StartDiscovery activates the periodic announcer. A no-op while already
// active. When d > 0 a timer forces StopDiscovery after d; the call itself
// returns immediately either way, so callers choose between fire-and-forget
// (d == 0) and bounded-duration discovery without blocking.
func (n *Node) StartDiscovery(d time.Duration) error {
	if !n.running.Load() {
		return ErrNotRunning
	}

	n.discMu.Lock()
	defer n.discMu.Unlock()
	if n.discActive.Load() {
		log.L().Warn("node: discovery already active")
		return nil
	}

	if d > 0 {
		log.L().Infof("node: starting discovery for %s", d)
	} else {
		log.L().Info("node: starting discovery")
	}

	n.discActive.Store(true)
	n.discDone = make(chan struct{})
	go n.announceLoop(n.discDone)

	if d > 0 {
		n.discTimer = time.AfterFunc(d, func() {
			n.StopDiscovery() //nolint:errcheck
		})
	}
	return nil
}

// StopDiscovery deactivates the announcer. Safe from any goroutine, a no-op
// while idle. The announcer checks the active flag each cycle, so an
// in-flight announce finishes rather than being torn down mid-frame.
func (n *Node) StopDiscovery() error {
	n.discMu.Lock()
	defer n.discMu.Unlock()
	if !n.discActive.Load() {
		return nil
	}

	log.L().Info("node: stopping discovery")
	n.discActive.Store(false)
	if n.discTimer != nil {
		n.discTimer.Stop()
		n.discTimer = nil
	}
	close(n.discDone)
	return nil
}

// DiscoveryActive reports whether the announcer is running.
func (n *Node) DiscoveryActive() bool {
	return n.discActive.Load()
}

// Announce broadcasts a single discovery request carrying the local
// address. Callable independently of the periodic announcer.
func (n *Node) Announce() error {
	if !n.running.Load() {
		return ErrNotRunning
	}
	n.stats.IncDiscoveryRequest()
	local := n.tr.LocalAddr()
	return n.Broadcast(wire.TypeDiscoveryRequest, local[:])
}

// announceLoop emits one announcement immediately and then one per
// interval until stopped.
func (n *Node) announceLoop(done <-chan struct{}) {
	if err := n.Announce(); err != nil {
		log.L().Warnf("node: announce: %v", err)
	}

	ticker := time.NewTicker(n.cfg.DiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-n.stopCh:
			return
		case <-ticker.C:
			if !n.discActive.Load() {
				return
			}
			if err := n.Announce(); err != nil {
				log.L().Warnf("node: announce: %v", err)
			}
		}
	}
}
