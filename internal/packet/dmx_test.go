package packet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDMXSequenceRange(t *testing.T) {
	tests := []struct {
		v       int
		wantErr bool
	}{
		{-1, true},
		{0, false},
		{255, false},
		{256, true},
	}
	for _, tt := range tests {
		b := NewDMXBuilder()
		require.NoError(t, b.SetSequence(7))
		err := b.SetSequence(tt.v)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrOutOfRange, "sequence %d", tt.v)
			assert.Equal(t, uint8(7), b.Sequence(), "rejected value must not be stored")
			continue
		}
		assert.NoError(t, err, "sequence %d", tt.v)
		assert.Equal(t, uint8(tt.v), b.Sequence())
	}
}

func TestDMXAddressRanges(t *testing.T) {
	b := NewDMXBuilder()
	assert.NoError(t, b.SetNet(127))
	assert.ErrorIs(t, b.SetNet(128), ErrOutOfRange)
	assert.NoError(t, b.SetSubNet(15))
	assert.ErrorIs(t, b.SetSubNet(16), ErrOutOfRange)
	assert.NoError(t, b.SetUniverse(15))
	assert.ErrorIs(t, b.SetUniverse(-1), ErrOutOfRange)
	assert.ErrorIs(t, b.SetPhysical(256), ErrOutOfRange)

	var rerr *RangeError
	require.ErrorAs(t, b.SetNet(200), &rerr)
	assert.Equal(t, "net", rerr.Field)
	assert.Equal(t, 127, rerr.Max)
}

func TestDMXOddPayloadPadding(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{0x0f}))

	raw := b.Build().Bytes()
	require.Len(t, raw, 20)
	assert.Equal(t, byte(0), raw[16])
	assert.Equal(t, byte(2), raw[17])
	assert.Equal(t, byte(0x0f), raw[18])
	assert.Equal(t, byte(0x00), raw[19])
	assert.Equal(t, 2, b.DataSize())
}

func TestDMXSetChannelFillsGap(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{1, 2, 3, 4}))
	require.NoError(t, b.SetChannel(1, 9))
	assert.Equal(t, []byte{1, 9, 3, 4}, b.Data())

	require.NoError(t, b.SetData([]byte{1, 2}))
	require.NoError(t, b.SetChannel(5, 7))
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 7}, b.Data())
	assert.Equal(t, 6, b.DataSize())

	assert.ErrorIs(t, b.SetChannel(512, 1), ErrIndex)
	assert.ErrorIs(t, b.SetChannel(-1, 1), ErrIndex)
	assert.ErrorIs(t, b.SetData(make([]byte, 513)), ErrOutOfRange)
	assert.Equal(t, 6, b.DataSize())
}

func TestDMXSetDataClearsTail(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{1, 2, 3, 4}))
	require.NoError(t, b.SetData([]byte{5, 6}))
	require.NoError(t, b.SetChannel(3, 8))
	assert.Equal(t, []byte{5, 6, 0, 8}, b.Data())
}

func TestDMXLayout(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetSequence(3))
	require.NoError(t, b.SetPhysical(1))
	require.NoError(t, b.SetNet(0x12))
	require.NoError(t, b.SetSubNet(0xa))
	require.NoError(t, b.SetUniverse(0x5))
	require.NoError(t, b.SetData([]byte{0xde, 0xad}))

	want := []byte{
		'A', 'r', 't', '-', 'N', 'e', 't', 0,
		0x00, 0x50, // opcode, little-endian
		0x00, 0x0e, // version 14, big-endian
		3, 1, 0xa5, 0x12,
		0x00, 0x02,
		0xde, 0xad,
	}
	p := b.Build()
	assert.Equal(t, want, p.Bytes())
	assert.Equal(t, uint16(0x12a5), p.PortAddress())
}

func TestDMXBuildIsCached(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{1, 2, 3}))
	first := b.Build()
	second := b.Build()
	assert.Same(t, first, second)
	assert.Equal(t, first.Bytes(), second.Bytes())

	require.NoError(t, b.SetChannel(0, 4))
	third := b.Build()
	assert.NotSame(t, first, third)
	assert.Equal(t, byte(1), first.Data[0], "earlier packets are immutable")
	assert.Equal(t, byte(4), third.Data[0])
}

func TestDMXRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		set  func(b *DMXBuilder) error
	}{
		{"empty", func(b *DMXBuilder) error { return nil }},
		{"full universe", func(b *DMXBuilder) error {
			data := make([]byte, MaxChannels)
			for i := range data {
				data[i] = byte(i)
			}
			return b.SetData(data)
		}},
		{"addressed", func(b *DMXBuilder) error {
			if err := b.SetNet(127); err != nil {
				return err
			}
			if err := b.SetSubNet(15); err != nil {
				return err
			}
			if err := b.SetUniverse(15); err != nil {
				return err
			}
			if err := b.SetSequence(255); err != nil {
				return err
			}
			return b.SetChannel(10, 0xff)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDMXBuilder()
			require.NoError(t, tt.set(b))
			want := b.Build()

			got, ok := DecodeDMX(want.Bytes())
			require.True(t, ok)
			if diff := cmp.Diff(want, got, cmp.AllowUnexported(DMX{})); diff != "" {
				t.Errorf("DecodeDMX() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDMXRejects(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{1, 2, 3, 4}))
	raw := b.Build().Bytes()

	_, ok := DecodeDMX(raw[:20])
	assert.False(t, ok, "truncated payload")

	_, ok = DecodeDMX(raw[:10])
	assert.False(t, ok, "truncated header")

	poll := NewPollBuilder().Build().Bytes()
	_, ok = DecodeDMX(poll)
	assert.False(t, ok, "foreign opcode")

	bad := clone(raw)
	bad[15] = 0x80
	_, ok = DecodeDMX(bad)
	assert.False(t, ok, "net above 127")
}

func TestDecodeDMXCopiesInput(t *testing.T) {
	b := NewDMXBuilder()
	require.NoError(t, b.SetData([]byte{1, 2}))
	raw := clone(b.Build().Bytes())

	p, ok := DecodeDMX(raw)
	require.True(t, ok)
	raw[18] = 99
	assert.Equal(t, byte(1), p.Data[0])
}
