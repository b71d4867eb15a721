package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/wire"
)

// UDP implements Transport over broadcast UDP datagrams on a shared port,
// standing in for the radio driver on development hosts. Every datagram
// carries a 12-byte prefix (source address then destination address) that
// emulates the MAC header the radio driver reports out-of-band; receivers
// discard datagrams addressed to neither them nor broadcast.
type UDP struct {
	addr wire.Addr
	port int

	mu       sync.Mutex
	receiver Receiver
	conn     *net.UDPConn
	bcast    *net.UDPAddr
}

const udpHeaderLen = 2 * wire.AddrLen

// NewUDP creates a UDP transport with the given link address on port.
func NewUDP(addr wire.Addr, port int) *UDP {
	return &UDP{addr: addr, port: port}
}

func (t *UDP) LocalAddr() wire.Addr { return t.addr }

func (t *UDP) SetReceiver(r Receiver) {
	t.mu.Lock()
	t.receiver = r
	t.mu.Unlock()
}

func (t *UDP) Start() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: t.port})
	if err != nil {
		return fmt.Errorf("transport: listen udp :%d: %w", t.port, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.bcast = &net.UDPAddr{IP: net.IPv4bcast, Port: t.port}
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *UDP) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (t *UDP) Send(dst wire.Addr, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	bcast := t.bcast
	t.mu.Unlock()
	if conn == nil {
		return ErrNoRoute
	}

	// The medium is shared: unicast frames go out as broadcast datagrams
	// too, and the prefix lets receivers filter, exactly like radio.
	dgram := make([]byte, udpHeaderLen+len(data))
	copy(dgram[:wire.AddrLen], t.addr[:])
	copy(dgram[wire.AddrLen:udpHeaderLen], dst[:])
	copy(dgram[udpHeaderLen:], data)

	if _, err := conn.WriteToUDP(dgram, bcast); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (t *UDP) readLoop(conn *net.UDPConn) {
	buf := make([]byte, udpHeaderLen+wire.FrameSize+64)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // closed
		}
		if n < udpHeaderLen {
			log.L().Debugf("transport: runt datagram (%d bytes)", n)
			continue
		}

		var src, dst wire.Addr
		copy(src[:], buf[:wire.AddrLen])
		copy(dst[:], buf[wire.AddrLen:udpHeaderLen])

		if src == t.addr {
			continue // our own broadcast echoed back
		}
		if dst != t.addr && !dst.IsBroadcast() {
			continue
		}

		t.mu.Lock()
		r := t.receiver
		t.mu.Unlock()
		if r == nil {
			continue
		}
		data := make([]byte, n-udpHeaderLen)
		copy(data, buf[udpHeaderLen:n])
		r(src, data)
	}
}
