package node

import (
	"encoding/binary"

	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/peer"
	"github.com/pharos-net/pharos/internal/wire"
)

// receiveRaw is the transport boundary: it runs in the driver's context and
// must not block. Corrupt frames are dropped here and counted as losses;
// they are never surfaced to callers since the sender is remote and
// unrecoverable. Accepted frames are accounted and enqueued; a full queue
// drops the frame, again counted as a loss. Received counts every intact
// arrival and Lost counts every frame that never reached the engine, so an
// overflow-dropped frame appears in both.
func (n *Node) receiveRaw(src wire.Addr, data []byte) {
	if !n.running.Load() {
		return
	}
	f, err := wire.Decode(data)
	if err != nil {
		n.stats.IncLost()
		log.L().Debugf("node: dropping frame from %s: %v", src, err)
		return
	}

	n.stats.IncReceived()
	n.stats.AddBytesReceived(uint64(len(data)))
	n.table.RecordTraffic(src, peer.TrafficReceived)

	select {
	case n.rxQ <- queuedFrame{addr: src, frame: f}:
	default:
		n.stats.IncLost()
		log.L().Warnf("node: receive queue full, dropping %s frame from %s", f.Type, src)
	}
}

// receiveLoop is the single consumer of the receive queue.
func (n *Node) receiveLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case q := <-n.rxQ:
			n.handleFrame(q.addr, q.frame)
		}
	}
}

// handleFrame performs peer-table updates and protocol auto-responses, then
// delivers the frame to the registered observer.
//
// The upsert happens before the auto-response is enqueued; if the send
// queue is full the reply is dropped while the peer stays in the table.
// That ordering inconsistency is accepted; nothing spans both structures
// atomically.
func (n *Node) handleFrame(src wire.Addr, f wire.Frame) {
	switch f.Type {
	case wire.TypeDiscoveryRequest:
		log.L().Debugf("node: discovery request from %s", src)
		_, created := n.table.Upsert(src)
		local := n.tr.LocalAddr()
		if err := n.Send(src, wire.TypeDiscoveryResponse, local[:]); err != nil {
			log.L().Warnf("node: discovery response to %s: %v", src, err)
		}
		if created {
			n.notifyPeerDiscovered(src)
		}

	case wire.TypeDiscoveryResponse:
		log.L().Debugf("node: discovery response from %s", src)
		n.table.Upsert(src)
		n.stats.IncDiscoveryResponse()
		n.notifyPeerDiscovered(src)

	case wire.TypePing:
		log.L().Debugf("node: ping from %s, sending pong", src)
		if err := n.Send(src, wire.TypePong, seqPayload(f.Seq)); err != nil {
			log.L().Warnf("node: pong to %s: %v", src, err)
		}
	}

	n.hookMu.Lock()
	observer := n.onReceive
	n.hookMu.Unlock()
	if observer != nil {
		observer(src, &f)
	}
}

// sendLoop is the single consumer of the send queue. Transmit failures are
// logged, counted, and reported through the status hook, never retried.
func (n *Node) sendLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case q := <-n.txQ:
			n.transmit(q.addr, q.frame)
		}
	}
}

func (n *Node) transmit(dst wire.Addr, f wire.Frame) {
	buf := f.Encode()
	if err := n.tr.Send(dst, buf[:]); err != nil {
		log.L().Warnf("node: transmit %s to %s: %v", f.Type, dst, err)
		n.stats.IncLost()
		n.table.RecordTraffic(dst, peer.TrafficLost)
		n.notifySendStatus(dst, err)
		return
	}
	n.stats.IncSent()
	n.stats.AddBytesSent(wire.FrameSize)
	n.table.RecordTraffic(dst, peer.TrafficSent)
	n.notifySendStatus(dst, nil)
}

func (n *Node) notifySendStatus(dst wire.Addr, err error) {
	n.hookMu.Lock()
	hook := n.onSendStatus
	n.hookMu.Unlock()
	if hook != nil {
		hook(dst, err)
	}
}

func (n *Node) notifyPeerDiscovered(addr wire.Addr) {
	p, ok := n.table.Find(addr)
	if !ok {
		return
	}
	n.hookMu.Lock()
	hook := n.onPeerDiscovered
	n.hookMu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// PingSeq extracts the echoed sequence number from a ping or pong payload.
func PingSeq(f *wire.Frame) (uint32, bool) {
	if f.PayloadLen < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(f.PayloadBytes()), true
}
