package transport

import (
	"sync"
	"sync/atomic"

	"github.com/pharos-net/pharos/internal/wire"
)

// Memory is an in-process shared medium for tests. All Memory transports
// created from the same Medium hear each other's broadcasts, like nodes on
// one radio channel.
type Memory struct {
	medium *Medium
	addr   wire.Addr

	mu       sync.Mutex
	receiver Receiver
	started  bool

	failSends atomic.Bool
}

// Medium is one simulated radio channel.
type Medium struct {
	mu    sync.Mutex
	nodes map[wire.Addr]*Memory
}

// NewMedium creates an empty channel.
func NewMedium() *Medium {
	return &Medium{nodes: make(map[wire.Addr]*Memory)}
}

// Join attaches a new transport with the given address to the medium.
func (m *Medium) Join(addr wire.Addr) *Memory {
	t := &Memory{medium: m, addr: addr}
	m.mu.Lock()
	m.nodes[addr] = t
	m.mu.Unlock()
	return t
}

func (t *Memory) LocalAddr() wire.Addr { return t.addr }

func (t *Memory) SetReceiver(r Receiver) {
	t.mu.Lock()
	t.receiver = r
	t.mu.Unlock()
}

func (t *Memory) Start() error {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	return nil
}

func (t *Memory) Close() error {
	t.mu.Lock()
	t.started = false
	t.mu.Unlock()

	t.medium.mu.Lock()
	delete(t.medium.nodes, t.addr)
	t.medium.mu.Unlock()
	return nil
}

// FailSends makes every subsequent Send fail at the driver level, for
// exercising the lost-frame accounting path.
func (t *Memory) FailSends(fail bool) {
	t.failSends.Store(fail)
}

func (t *Memory) Send(dst wire.Addr, data []byte) error {
	if t.failSends.Load() {
		return ErrNoRoute
	}

	t.medium.mu.Lock()
	var targets []*Memory
	if dst.IsBroadcast() {
		for addr, n := range t.medium.nodes {
			if addr != t.addr {
				targets = append(targets, n)
			}
		}
	} else if n, ok := t.medium.nodes[dst]; ok {
		targets = append(targets, n)
	}
	t.medium.mu.Unlock()

	if len(targets) == 0 && !dst.IsBroadcast() {
		return ErrNoRoute
	}

	for _, n := range targets {
		n.deliver(t.addr, data)
	}
	return nil
}

// deliver hands the frame to the receiver on a fresh goroutine, emulating
// the driver's own context rather than the sender's.
func (t *Memory) deliver(src wire.Addr, data []byte) {
	t.mu.Lock()
	r := t.receiver
	started := t.started
	t.mu.Unlock()
	if r == nil || !started {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	go r(src, buf)
}
