// Package packet implements the Art-Net wire format for the output (ArtDmx),
// discovery (ArtPoll, ArtPollReply) and timecode (ArtTimeCode) opcodes.
//
// Every packet kind has an immutable value type with a cached byte form and a
// mutable builder that validates fields on assignment and re-renders only
// after a change.
package packet

import "fmt"

// OpCode is the packet kind discriminator, little-endian on the wire.
type OpCode uint16

const (
	OpPoll      OpCode = 0x2000
	OpPollReply OpCode = 0x2100
	OpDMX       OpCode = 0x5000
	OpTimeCode  OpCode = 0x9700
)

func (o OpCode) String() string {
	switch o {
	case OpPoll:
		return "OpPoll"
	case OpPollReply:
		return "OpPollReply"
	case OpDMX:
		return "OpDmx"
	case OpTimeCode:
		return "OpTimeCode"
	}
	return fmt.Sprintf("OpCode(0x%04x)", uint16(o))
}

const (
	// ID is the literal that opens every frame.
	ID = "Art-Net\x00"
	// ProtocolVersion is carried big-endian after the opcode.
	ProtocolVersion uint16 = 14
	// UDPPort is the port of all Art-Net traffic.
	UDPPort = 0x1936

	idSize     = 8
	headerSize = idSize + 2     // ID + opcode
	baseSize   = headerSize + 2 // + protocol version
)

// Packet is any Art-Net frame.
type Packet interface {
	OpCode() OpCode
	// Bytes returns the exact wire form. The slice must not be modified.
	Bytes() []byte
}

// writeID fills the ID literal and the opcode.
func writeID(b []byte, op OpCode) {
	copy(b[:idSize], ID)
	putLE16(b[idSize:headerSize], uint16(op))
}

// writeHeader fills ID, opcode and protocol version.
func writeHeader(b []byte, op OpCode) {
	writeID(b, op)
	putBE16(b[headerSize:baseSize], ProtocolVersion)
}

// PeekOpCode reads the opcode of a frame. ok is false when b does not start
// with the Art-Net ID.
func PeekOpCode(b []byte) (OpCode, bool) {
	if len(b) < headerSize || string(b[:idSize]) != ID {
		return 0, false
	}
	return OpCode(getLE16(b[idSize:headerSize])), true
}

// matchHeader reports whether b carries opcode op and is at least min bytes.
func matchHeader(b []byte, op OpCode, min int) bool {
	if len(b) < min {
		return false
	}
	got, ok := PeekOpCode(b)
	return ok && got == op
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
