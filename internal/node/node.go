// Package node implements the Pharos protocol engine.
//
// Design:
//   - The transport's receive callback runs in the driver's context: it
//     validates frame integrity, accounts the frame, and enqueues it with a
//     non-blocking attempt. A full receive queue drops the frame.
//   - One goroutine drains the receive queue: peer-table updates, protocol
//     auto-responses (discovery replies, pong echoes), observer delivery.
//   - One goroutine drains the send queue and hands frames to the transport.
//     Transmit failures are logged and counted, never retried.
//   - A periodic announcer broadcasts discovery requests while active.
//
// All shared mutable state is the peer table (one mutex) and the statistics
// counters (atomics); the queues are plain bounded channels.
package node

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/peer"
	"github.com/pharos-net/pharos/internal/stats"
	"github.com/pharos-net/pharos/internal/transport"
	"github.com/pharos-net/pharos/internal/wire"
)

const (
	defaultQueueDepth        = 20
	defaultSendTimeout       = time.Second
	defaultDiscoveryInterval = time.Second
)

var (
	ErrNotRunning   = errors.New("node: not running")
	ErrSendTimeout  = errors.New("node: send queue full")
	ErrPeerNotFound = errors.New("node: peer not found")
)

// ReceiveFunc observes every accepted inbound frame.
type ReceiveFunc func(src wire.Addr, f *wire.Frame)

// SendStatusFunc is notified per transmitted frame; err is nil on success.
type SendStatusFunc func(dst wire.Addr, err error)

// PeerFunc is notified when discovery learns a peer.
type PeerFunc func(p peer.Peer)

// Config configures a Node.
type Config struct {
	Transport transport.Transport

	// Channel is the logical radio channel agreed out-of-band. The
	// transport's bring-up owns it; the node only reports it.
	Channel int

	QueueDepth        int           // both queues; defaults to 20
	SendTimeout       time.Duration // producer-side wait for queue space
	DiscoveryInterval time.Duration // announcer period
	PeerSoftLimit     int           // advisory table cap, 0 = unlimited

	// Store, when set, persists known peers across restarts.
	Store *peer.Store
}

type queuedFrame struct {
	addr  wire.Addr // source for inbound, destination for outbound
	frame wire.Frame
}

// Node is the protocol engine. A Node runs once: New, Start, Stop.
type Node struct {
	cfg   Config
	tr    transport.Transport
	table *peer.Table
	stats *stats.Collector

	rxQ    chan queuedFrame
	txQ    chan queuedFrame
	stopCh chan struct{}
	wg     sync.WaitGroup

	seq      atomic.Uint32
	running  atomic.Bool
	stopOnce sync.Once

	hookMu           sync.Mutex
	onReceive        ReceiveFunc
	onSendStatus     SendStatusFunc
	onPeerDiscovered PeerFunc

	discMu     sync.Mutex
	discActive atomic.Bool
	discDone   chan struct{}
	discTimer  *time.Timer
}

// New creates a Node. The transport is required; zero tunables take the
// reference defaults.
func New(cfg Config) (*Node, error) {
	if cfg.Transport == nil {
		return nil, errors.New("node: transport is required")
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = defaultDiscoveryInterval
	}
	return &Node{
		cfg:    cfg,
		tr:     cfg.Transport,
		table:  peer.NewTable(cfg.PeerSoftLimit),
		stats:  stats.New(),
		rxQ:    make(chan queuedFrame, cfg.QueueDepth),
		txQ:    make(chan queuedFrame, cfg.QueueDepth),
		stopCh: make(chan struct{}),
	}, nil
}

// Start brings the transport up and launches the worker loops. Known peers
// from the store, if any, are registered immediately.
func (n *Node) Start() error {
	if !n.running.CompareAndSwap(false, true) {
		return nil
	}
	n.tr.SetReceiver(n.receiveRaw)
	if err := n.tr.Start(); err != nil {
		n.running.Store(false)
		return fmt.Errorf("node: transport start: %w", err)
	}

	if n.cfg.Store != nil {
		addrs, err := n.cfg.Store.Load()
		if err != nil {
			log.L().Warnf("node: peer store load: %v", err)
		}
		for _, a := range addrs {
			n.table.Upsert(a)
		}
		if len(addrs) > 0 {
			log.L().Infof("node: restored %d known peers", len(addrs))
		}
	}

	n.wg.Add(2)
	go n.receiveLoop()
	go n.sendLoop()

	log.L().Infof("node: up as %s on channel %d", n.tr.LocalAddr(), n.cfg.Channel)
	return nil
}

// Stop halts discovery and the worker loops, closes the transport, and
// persists the peer table. Idempotent.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.StopDiscovery() //nolint:errcheck
		n.running.Store(false)
		close(n.stopCh)
		n.wg.Wait()
		n.tr.Close() //nolint:errcheck

		if n.cfg.Store != nil {
			if err := n.cfg.Store.Save(n.table.Snapshot()); err != nil {
				log.L().Warnf("node: peer store save: %v", err)
			}
		}
		log.L().Info("node: stopped")
	})
}

// LocalAddr returns this node's link address.
func (n *Node) LocalAddr() wire.Addr {
	return n.tr.LocalAddr()
}

// Send encodes a frame and queues it for transmission, waiting up to the
// configured timeout for queue space.
func (n *Node) Send(dst wire.Addr, typ wire.Type, payload []byte) error {
	if !n.running.Load() {
		return ErrNotRunning
	}
	f, err := wire.NewFrame(typ, n.nextSeq(), payload)
	if err != nil {
		return err
	}
	return n.enqueue(dst, f)
}

// Broadcast sends to every listener on the channel.
func (n *Node) Broadcast(typ wire.Type, payload []byte) error {
	return n.Send(wire.Broadcast, typ, payload)
}

// Ping sends a liveness probe. The payload echoes the frame's own sequence
// number so the matching pong can be correlated by the caller.
func (n *Node) Ping(dst wire.Addr) error {
	if !n.running.Load() {
		return ErrNotRunning
	}
	seq := n.nextSeq()
	f, err := wire.NewFrame(wire.TypePing, seq, seqPayload(seq))
	if err != nil {
		return err
	}
	return n.enqueue(dst, f)
}

// SendTest queues a test-data frame. Test frames receive no auto-response;
// measurement logic lives in the external harness.
func (n *Node) SendTest(dst wire.Addr, payload []byte) error {
	return n.Send(dst, wire.TypeTestData, payload)
}

// AddPeer registers addr explicitly, creating the table entry if new.
func (n *Node) AddPeer(addr wire.Addr) error {
	if !n.running.Load() {
		return ErrNotRunning
	}
	n.table.Upsert(addr)
	return nil
}

// RemovePeer drops addr from the table and the persistent store.
func (n *Node) RemovePeer(addr wire.Addr) error {
	if !n.running.Load() {
		return ErrNotRunning
	}
	if !n.table.Remove(addr) {
		return ErrPeerNotFound
	}
	if n.cfg.Store != nil {
		if err := n.cfg.Store.Forget(addr); err != nil {
			log.L().Warnf("node: peer store forget %s: %v", addr, err)
		}
	}
	return nil
}

// IsKnown reports whether addr is in the peer table.
func (n *Node) IsKnown(addr wire.Addr) bool {
	_, ok := n.table.Find(addr)
	return ok
}

// Peers returns a consistent copy of the peer table in insertion order.
func (n *Node) Peers() []peer.Peer {
	return n.table.Snapshot()
}

// PeerCount returns the number of known peers.
func (n *Node) PeerCount() int {
	return n.table.Len()
}

// PeersByRSSI returns known peers with a signal reading at or above min.
func (n *Node) PeersByRSSI(min int8) []peer.Peer {
	return n.table.ByRSSI(min)
}

// StrongestPeer returns the peer with the best signal reading.
func (n *Node) StrongestPeer() (peer.Peer, bool) {
	return n.table.Strongest()
}

// Stats returns a consistent snapshot of the session counters.
func (n *Node) Stats() stats.Snapshot {
	return n.stats.Snapshot()
}

// ResetStats zeroes the counters and re-stamps the session start.
func (n *Node) ResetStats() {
	n.stats.Reset()
}

// OnReceive registers the frame observer, replacing any previous one.
func (n *Node) OnReceive(f ReceiveFunc) {
	n.hookMu.Lock()
	n.onReceive = f
	n.hookMu.Unlock()
}

// OnSendStatus registers the send-status observer, replacing any previous one.
func (n *Node) OnSendStatus(f SendStatusFunc) {
	n.hookMu.Lock()
	n.onSendStatus = f
	n.hookMu.Unlock()
}

// OnPeerDiscovered registers the discovery observer, replacing any previous one.
func (n *Node) OnPeerDiscovered(f PeerFunc) {
	n.hookMu.Lock()
	n.onPeerDiscovered = f
	n.hookMu.Unlock()
}

func (n *Node) nextSeq() uint32 {
	return n.seq.Add(1) - 1
}

// enqueue waits up to SendTimeout for send-queue space.
func (n *Node) enqueue(dst wire.Addr, f wire.Frame) error {
	q := queuedFrame{addr: dst, frame: f}
	select {
	case n.txQ <- q:
		return nil
	default:
	}

	t := time.NewTimer(n.cfg.SendTimeout)
	defer t.Stop()
	select {
	case n.txQ <- q:
		return nil
	case <-t.C:
		return ErrSendTimeout
	case <-n.stopCh:
		return ErrNotRunning
	}
}

func seqPayload(seq uint32) []byte {
	return []byte{byte(seq), byte(seq >> 8), byte(seq >> 16), byte(seq >> 24)}
}
