package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddrRoundtrip(t *testing.T) {
	a, err := ParseAddr("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, Addr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, a)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", a.String())
}

func TestParseAddrRejectsGarbage(t *testing.T) {
	_, err := ParseAddr("not-an-address")
	assert.Error(t, err)

	// EUI-64 addresses are valid MACs but not valid link addresses here.
	_, err = ParseAddr("01:02:03:04:05:06:07:08")
	assert.Error(t, err)
}

func TestBroadcast(t *testing.T) {
	assert.True(t, Broadcast.IsBroadcast())
	assert.False(t, Addr{1, 2, 3, 4, 5, 6}.IsBroadcast())
}
