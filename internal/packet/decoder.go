package packet

// DecodeFunc parses one packet kind; ok is false when raw is not that kind.
type DecodeFunc func(raw []byte) (Packet, bool)

// Decoder dispatches frames to per-opcode decoders.
type Decoder struct {
	byOp  map[OpCode]DecodeFunc
	order []OpCode
}

// NewDecoder returns a decoder for every supported opcode.
func NewDecoder() *Decoder {
	d := &Decoder{byOp: make(map[OpCode]DecodeFunc)}
	d.Register(OpDMX, decodeAs(DecodeDMX))
	d.Register(OpPoll, decodeAs(DecodePoll))
	d.Register(OpPollReply, decodeAs(DecodePollReply))
	d.Register(OpTimeCode, decodeAs(DecodeTimeCode))
	return d
}

// decodeAs keeps a failed decode from turning into a typed nil interface.
func decodeAs[T Packet](fn func([]byte) (T, bool)) DecodeFunc {
	return func(raw []byte) (Packet, bool) {
		p, ok := fn(raw)
		if !ok {
			return nil, false
		}
		return p, true
	}
}

// Register adds or replaces the decoder of op. Not safe for use after the
// decoder is shared between goroutines.
func (d *Decoder) Register(op OpCode, fn DecodeFunc) {
	if _, ok := d.byOp[op]; !ok {
		d.order = append(d.order, op)
	}
	d.byOp[op] = fn
}

// Decode parses raw. Frames with an unknown opcode, a foreign header or a
// truncated body yield ok == false.
func (d *Decoder) Decode(raw []byte) (Packet, bool) {
	op, ok := PeekOpCode(raw)
	if !ok {
		return nil, false
	}
	fn, ok := d.byOp[op]
	if !ok {
		return nil, false
	}
	return fn(raw)
}

// OpCodes lists registered opcodes in registration order.
func (d *Decoder) OpCodes() []OpCode {
	return append([]OpCode(nil), d.order...)
}
