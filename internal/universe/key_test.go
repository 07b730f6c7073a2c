package universe

import (
	"testing"

	"artnetctl/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	k, err := NewKey(0x12, 0xa, 0x5)
	require.NoError(t, err)
	assert.Equal(t, Key(0x12a5), k)
	assert.Equal(t, 0x12, k.Net())
	assert.Equal(t, 0xa, k.SubNet())
	assert.Equal(t, 0x5, k.Universe())
	assert.Equal(t, "18.10.5", k.String())

	addr := k.Address()
	assert.Equal(t, uint8(0x12), addr.Net)
	assert.Equal(t, uint8(0xa5), addr.SubUni)
}

func TestNewKeyRanges(t *testing.T) {
	for _, tt := range [][3]int{{128, 0, 0}, {-1, 0, 0}, {0, 16, 0}, {0, 0, 16}, {0, 0, -1}} {
		_, err := NewKey(tt[0], tt[1], tt[2])
		assert.ErrorIs(t, err, packet.ErrOutOfRange, "%v", tt)
	}
}
