// Package stats tracks session-wide traffic counters.
//
// Each counter has a single writer role (send engine, receive boundary, or
// discovery controller) so increments are plain atomics. Snapshot and Reset
// share a mutex so readers never observe a half-reset aggregate.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector accumulates counters from session start.
type Collector struct {
	mu sync.Mutex

	sent               atomic.Uint32
	received           atomic.Uint32
	lost               atomic.Uint32
	discoveryRequests  atomic.Uint32
	discoveryResponses atomic.Uint32
	bytesSent          atomic.Uint64
	bytesReceived      atomic.Uint64
	sessionStart       atomic.Int64 // UnixMicro
}

// Snapshot is a read-consistent copy of the counters.
type Snapshot struct {
	Sent               uint32    `json:"sent"`
	Received           uint32    `json:"received"`
	Lost               uint32    `json:"lost"`
	DiscoveryRequests  uint32    `json:"discovery_requests"`
	DiscoveryResponses uint32    `json:"discovery_responses"`
	BytesSent          uint64    `json:"bytes_sent"`
	BytesReceived      uint64    `json:"bytes_received"`
	SessionStart       time.Time `json:"session_start"`
}

// New creates a Collector with the session stamped at now.
func New() *Collector {
	c := &Collector{}
	c.sessionStart.Store(time.Now().UnixMicro())
	return c
}

func (c *Collector) IncSent()              { c.sent.Add(1) }
func (c *Collector) IncReceived()          { c.received.Add(1) }
func (c *Collector) IncLost()              { c.lost.Add(1) }
func (c *Collector) IncDiscoveryRequest()  { c.discoveryRequests.Add(1) }
func (c *Collector) IncDiscoveryResponse() { c.discoveryResponses.Add(1) }

func (c *Collector) AddBytesSent(n uint64)     { c.bytesSent.Add(n) }
func (c *Collector) AddBytesReceived(n uint64) { c.bytesReceived.Add(n) }

// Snapshot returns a consistent copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Sent:               c.sent.Load(),
		Received:           c.received.Load(),
		Lost:               c.lost.Load(),
		DiscoveryRequests:  c.discoveryRequests.Load(),
		DiscoveryResponses: c.discoveryResponses.Load(),
		BytesSent:          c.bytesSent.Load(),
		BytesReceived:      c.bytesReceived.Load(),
		SessionStart:       time.UnixMicro(c.sessionStart.Load()),
	}
}

// Reset zeroes every counter and re-stamps the session start.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent.Store(0)
	c.received.Store(0)
	c.lost.Store(0)
	c.discoveryRequests.Store(0)
	c.discoveryResponses.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.sessionStart.Store(time.Now().UnixMicro())
}
