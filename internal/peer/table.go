// Package peer maintains the table of directly reachable nodes.
//
// The table is keyed by link address and guarded by a single mutex held only
// for the duration of each call, never across a caller's hook. Growth is
// unbounded by design; a configurable soft limit is logged as an advisory
// when exceeded, and eviction of stale entries is left to an external
// caller that scans Snapshot and calls Remove.
package peer

import (
	"sync"
	"time"

	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/wire"
)

// DefaultSoftLimit is the advisory peer-count threshold.
const DefaultSoftLimit = 20

// TrafficKind selects which per-peer counter RecordTraffic increments.
type TrafficKind int

const (
	TrafficSent TrafficKind = iota
	TrafficReceived
	TrafficLost
)

// Peer is one known remote node.
type Peer struct {
	Addr     wire.Addr
	RSSI     *int8 // last observed signal strength, nil until reported
	LastSeen time.Time
	Sent     uint32
	Received uint32
	Lost     uint32
	Active   bool
}

// Table is the concurrent-safe peer collection.
type Table struct {
	mu        sync.Mutex
	byAddr    map[wire.Addr]*Peer
	order     []*Peer // insertion order, backs Snapshot
	softLimit int
}

// NewTable creates an empty table. softLimit <= 0 disables the advisory.
func NewTable(softLimit int) *Table {
	return &Table{
		byAddr:    make(map[wire.Addr]*Peer),
		softLimit: softLimit,
	}
}

// Upsert returns the peer for addr, creating it if unknown. Existing peers
// get their liveness refreshed. The second result reports whether the entry
// was created by this call.
func (t *Table) Upsert(addr wire.Addr) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.byAddr[addr]; ok {
		p.LastSeen = time.Now()
		p.Active = true
		return *p, false
	}

	if t.softLimit > 0 && len(t.order) >= t.softLimit {
		log.L().Warnf("peer: table size %d at soft limit %d, still growing", len(t.order), t.softLimit)
	}

	p := &Peer{
		Addr:     addr,
		LastSeen: time.Now(),
		Active:   true,
	}
	t.byAddr[addr] = p
	t.order = append(t.order, p)
	return *p, true
}

// Find returns a copy of the peer for addr.
func (t *Table) Find(addr wire.Addr) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byAddr[addr]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Remove deletes addr from the table. Returns false if absent.
func (t *Table) Remove(addr wire.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byAddr[addr]
	if !ok {
		return false
	}
	delete(t.byAddr, addr)
	for i, q := range t.order {
		if q == p {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns copies of all peers in insertion order, so callers never
// observe a half-mutated table.
func (t *Table) Snapshot() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, len(t.order))
	for i, p := range t.order {
		out[i] = *p
	}
	return out
}

// Len returns the number of known peers.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// RecordTraffic increments the matching counter and refreshes liveness.
// Unknown addresses are ignored: traffic accounting never creates peers.
func (t *Table) RecordTraffic(addr wire.Addr, kind TrafficKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byAddr[addr]
	if !ok {
		return
	}
	switch kind {
	case TrafficSent:
		p.Sent++
	case TrafficReceived:
		p.Received++
	case TrafficLost:
		p.Lost++
	}
	p.LastSeen = time.Now()
}

// ObserveRSSI records a signal-strength reading for a known peer.
func (t *Table) ObserveRSSI(addr wire.Addr, rssi int8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byAddr[addr]; ok {
		v := rssi
		p.RSSI = &v
	}
}

// ByRSSI returns peers whose last reading is at or above min, insertion
// order. Peers with no reading are excluded.
func (t *Table) ByRSSI(min int8) []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Peer
	for _, p := range t.order {
		if p.RSSI != nil && *p.RSSI >= min {
			out = append(out, *p)
		}
	}
	return out
}

// Strongest returns the peer with the best signal reading.
func (t *Table) Strongest() (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var best *Peer
	for _, p := range t.order {
		if p.RSSI == nil {
			continue
		}
		if best == nil || *p.RSSI > *best.RSSI {
			best = p
		}
	}
	if best == nil {
		return Peer{}, false
	}
	return *best, true
}
