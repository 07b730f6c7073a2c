package packet

// MaxChannels is the number of DMX slots in a universe.
const MaxChannels = 512

const dmxHeaderSize = 18

// DMX is an ArtDmx frame.
type DMX struct {
	Sequence uint8
	Physical uint8
	Net      uint8
	SubNet   uint8
	Universe uint8
	Data     []byte

	raw []byte
}

func (p *DMX) OpCode() OpCode { return OpDMX }

func (p *DMX) Bytes() []byte { return p.raw }

// PortAddress returns the 15 bit port address: net, subnet and universe.
func (p *DMX) PortAddress() uint16 {
	return uint16(p.Net)<<8 | uint16(p.SubNet)<<4 | uint16(p.Universe)
}

// DMXBuilder assembles ArtDmx frames.
type DMXBuilder struct {
	sequence uint8
	physical uint8
	net      uint8
	subnet   uint8
	universe uint8

	data   [MaxChannels]byte
	length int

	dirty bool
	built *DMX
}

// NewDMXBuilder конструктор.
func NewDMXBuilder() *DMXBuilder {
	return &DMXBuilder{dirty: true}
}

func (b *DMXBuilder) SetSequence(v int) error {
	if err := checkRange("sequence", v, 0, 255); err != nil {
		return err
	}
	b.sequence = uint8(v)
	b.dirty = true
	return nil
}

func (b *DMXBuilder) SetPhysical(v int) error {
	if err := checkRange("physical", v, 0, 255); err != nil {
		return err
	}
	b.physical = uint8(v)
	b.dirty = true
	return nil
}

func (b *DMXBuilder) SetNet(v int) error {
	if err := checkRange("net", v, 0, 127); err != nil {
		return err
	}
	b.net = uint8(v)
	b.dirty = true
	return nil
}

func (b *DMXBuilder) SetSubNet(v int) error {
	if err := checkRange("subnet", v, 0, 15); err != nil {
		return err
	}
	b.subnet = uint8(v)
	b.dirty = true
	return nil
}

func (b *DMXBuilder) SetUniverse(v int) error {
	if err := checkRange("universe", v, 0, 15); err != nil {
		return err
	}
	b.universe = uint8(v)
	b.dirty = true
	return nil
}

// SetChannel writes one slot. Slots between the current length and index are
// zeroed and the length grows to index+1.
func (b *DMXBuilder) SetChannel(index int, value byte) error {
	if err := checkIndex("channel", index, MaxChannels); err != nil {
		return err
	}
	if index >= b.length {
		for i := b.length; i < index; i++ {
			b.data[i] = 0
		}
		b.length = index + 1
	}
	b.data[index] = value
	b.dirty = true
	return nil
}

// SetData replaces the whole payload; the length becomes len(data).
func (b *DMXBuilder) SetData(data []byte) error {
	if err := checkRange("data length", len(data), 0, MaxChannels); err != nil {
		return err
	}
	n := copy(b.data[:], data)
	for i := n; i < MaxChannels; i++ {
		b.data[i] = 0
	}
	b.length = n
	b.dirty = true
	return nil
}

func (b *DMXBuilder) Sequence() uint8 { return b.sequence }

// DataSize returns the logical payload length, including any padding byte
// appended by Build.
func (b *DMXBuilder) DataSize() int { return b.length }

// Data returns a copy of the logical payload.
func (b *DMXBuilder) Data() []byte { return clone(b.data[:b.length]) }

// Build renders the frame. An odd payload is padded with one zero slot; the
// padding is kept in the builder. Without changes since the previous call the
// same packet is returned.
func (b *DMXBuilder) Build() *DMX {
	if !b.dirty && b.built != nil {
		return b.built
	}
	if b.length%2 != 0 {
		b.data[b.length] = 0
		b.length++
	}

	raw := make([]byte, dmxHeaderSize+b.length)
	writeHeader(raw, OpDMX)
	raw[12] = b.sequence
	raw[13] = b.physical
	raw[14] = b.subnet<<4 | b.universe
	raw[15] = b.net
	putBE16(raw[16:18], uint16(b.length))
	copy(raw[dmxHeaderSize:], b.data[:b.length])

	b.built = &DMX{
		Sequence: b.sequence,
		Physical: b.physical,
		Net:      b.net,
		SubNet:   b.subnet,
		Universe: b.universe,
		Data:     raw[dmxHeaderSize:],
		raw:      raw,
	}
	b.dirty = false
	return b.built
}

// DecodeDMX parses an ArtDmx frame.
func DecodeDMX(raw []byte) (*DMX, bool) {
	if !matchHeader(raw, OpDMX, dmxHeaderSize) {
		return nil, false
	}
	n := int(getBE16(raw[16:18]))
	if n > MaxChannels || len(raw) < dmxHeaderSize+n || raw[15] > 127 {
		return nil, false
	}
	raw = clone(raw[:dmxHeaderSize+n])
	return &DMX{
		Sequence: raw[12],
		Physical: raw[13],
		Net:      raw[15],
		SubNet:   raw[14] >> 4,
		Universe: raw[14] & 0x0f,
		Data:     raw[dmxHeaderSize:],
		raw:      raw,
	}, true
}
