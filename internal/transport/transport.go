// Package transport defines the radio-driver boundary and provides
// implementations for production (UDP broadcast) and testing (in-memory).
package transport

import (
	"errors"

	"github.com/pharos-net/pharos/internal/wire"
)

// ErrNoRoute is returned by Send when the destination is unreachable at the
// driver level. Delivery remains best-effort: a nil error only means the
// frame was handed to the medium.
var ErrNoRoute = errors.New("transport: no route to destination")

// Receiver is invoked for every raw frame arriving from the medium. It runs
// in the driver's context and must never block; implementations hand the
// frame off and return immediately.
type Receiver func(src wire.Addr, data []byte)

// Transport abstracts frame I/O over the connectionless broadcast medium.
// The node uses this interface exclusively so that tests can inject an
// in-memory medium without real radio hardware.
type Transport interface {
	// Start brings the medium up. SetReceiver must be called first.
	Start() error

	// Close shuts the medium down. Safe to call more than once.
	Close() error

	// LocalAddr returns this node's link address.
	LocalAddr() wire.Addr

	// Send transmits data to dst, or to every listener when dst is the
	// broadcast address. Best-effort, no retransmission.
	Send(dst wire.Addr, data []byte) error

	// SetReceiver registers the single inbound callback.
	SetReceiver(r Receiver)
}
