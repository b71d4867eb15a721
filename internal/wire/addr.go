package wire

import (
	"fmt"
	"net"
)

// AddrLen is the length of a link address in bytes.
const AddrLen = 6

// Addr is a 6-byte link-layer address.
type Addr [AddrLen]byte

// Broadcast is the all-ones address every node listens on.
var Broadcast = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func (a Addr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// IsBroadcast reports whether a is the broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}

// ParseAddr parses a colon- or dash-separated address such as
// "aa:bb:cc:dd:ee:ff".
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return Addr{}, fmt.Errorf("wire: parse address %q: %w", s, err)
	}
	if len(hw) != AddrLen {
		return Addr{}, fmt.Errorf("wire: address %q is not %d bytes", s, AddrLen)
	}
	var a Addr
	copy(a[:], hw)
	return a, nil
}
