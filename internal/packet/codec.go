package packet

// Field primitives. Art-Net mixes byte orders inside one frame: the header
// length fields are network order while opcode and port are little-endian,
// so every field names its order explicitly.

// be16 splits v into two bytes, most significant first.
func be16(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}

// le16 splits v into two bytes, least significant first.
func le16(v uint16) (lo, hi byte) {
	return byte(v), byte(v >> 8)
}

func putBE16(b []byte, v uint16) {
	b[0], b[1] = be16(v)
}

func putLE16(b []byte, v uint16) {
	b[0], b[1] = le16(v)
}

func getBE16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func getLE16(b []byte) uint16 {
	return uint16(b[1])<<8 | uint16(b[0])
}

// bit maps a boolean to a bit position inside a flags byte.
type bit struct {
	set bool
	pos uint
}

// packBits ORs all set flags into one byte.
func packBits(flags ...bit) byte {
	var out byte
	for _, f := range flags {
		if f.set {
			out |= 1 << f.pos
		}
	}
	return out
}

func hasBit(b byte, pos uint) bool {
	return b&(1<<pos) != 0
}

// fixedString truncates s to max bytes. No terminator is added: the
// destination buffer is already zeroed, which pads the remainder.
func fixedString(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// cString reads a null padded string field.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
