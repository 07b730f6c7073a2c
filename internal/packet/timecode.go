package packet

import (
	"fmt"
	"math"
)

const timeCodeSize = 19

// TimeCodeType is the frame rate of a timecode stream.
type TimeCodeType uint8

const (
	TimeCodeFilm  TimeCodeType = iota // 24 fps
	TimeCodeEBU                       // 25 fps
	TimeCodeDF                        // 29.97 fps drop frame
	TimeCodeSMPTE                     // 30 fps
)

// FrameRate returns frames per second.
func (t TimeCodeType) FrameRate() float64 {
	switch t {
	case TimeCodeFilm:
		return 24
	case TimeCodeEBU:
		return 25
	case TimeCodeDF:
		return 29.97
	case TimeCodeSMPTE:
		return 30
	}
	return 0
}

// MaxFrame is the highest frame number valid for the rate.
func (t TimeCodeType) MaxFrame() int {
	return int(math.Ceil(t.FrameRate())) - 1
}

func (t TimeCodeType) String() string {
	switch t {
	case TimeCodeFilm:
		return "film"
	case TimeCodeEBU:
		return "ebu"
	case TimeCodeDF:
		return "df"
	case TimeCodeSMPTE:
		return "smpte"
	}
	return fmt.Sprintf("TimeCodeType(%d)", uint8(t))
}

// TimeCode is an ArtTimeCode frame.
type TimeCode struct {
	Type    TimeCodeType
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Frames  uint8

	raw []byte
}

func (p *TimeCode) OpCode() OpCode { return OpTimeCode }

func (p *TimeCode) Bytes() []byte { return p.raw }

func (p *TimeCode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d@%s", p.Hours, p.Minutes, p.Seconds, p.Frames, p.Type)
}

// TimeCodeBuilder assembles ArtTimeCode frames.
type TimeCodeBuilder struct {
	typ     TimeCodeType
	hours   uint8
	minutes uint8
	seconds uint8
	frames  uint8

	dirty bool
	built *TimeCode
}

// NewTimeCodeBuilder конструктор.
func NewTimeCodeBuilder() *TimeCodeBuilder {
	return &TimeCodeBuilder{dirty: true}
}

// SetType changes the frame rate. A frame count above the new rate's maximum
// is lowered to that maximum.
func (b *TimeCodeBuilder) SetType(t TimeCodeType) error {
	if err := checkRange("type", int(t), int(TimeCodeFilm), int(TimeCodeSMPTE)); err != nil {
		return err
	}
	b.typ = t
	if max := t.MaxFrame(); int(b.frames) > max {
		b.frames = uint8(max)
	}
	b.dirty = true
	return nil
}

func (b *TimeCodeBuilder) SetHours(v int) error {
	if err := checkRange("hours", v, 0, 23); err != nil {
		return err
	}
	b.hours = uint8(v)
	b.dirty = true
	return nil
}

func (b *TimeCodeBuilder) SetMinutes(v int) error {
	if err := checkRange("minutes", v, 0, 59); err != nil {
		return err
	}
	b.minutes = uint8(v)
	b.dirty = true
	return nil
}

func (b *TimeCodeBuilder) SetSeconds(v int) error {
	if err := checkRange("seconds", v, 0, 59); err != nil {
		return err
	}
	b.seconds = uint8(v)
	b.dirty = true
	return nil
}

func (b *TimeCodeBuilder) SetFrames(v int) error {
	if err := checkRange("frames", v, 0, b.typ.MaxFrame()); err != nil {
		return err
	}
	b.frames = uint8(v)
	b.dirty = true
	return nil
}

func (b *TimeCodeBuilder) Type() TimeCodeType { return b.typ }
func (b *TimeCodeBuilder) Frames() int        { return int(b.frames) }

// Build renders the frame, reusing the previous result when unchanged.
func (b *TimeCodeBuilder) Build() *TimeCode {
	if !b.dirty && b.built != nil {
		return b.built
	}
	raw := make([]byte, timeCodeSize)
	writeHeader(raw, OpTimeCode)
	raw[14] = b.frames
	raw[15] = b.seconds
	raw[16] = b.minutes
	raw[17] = b.hours
	raw[18] = byte(b.typ)

	b.built = &TimeCode{
		Type:    b.typ,
		Hours:   b.hours,
		Minutes: b.minutes,
		Seconds: b.seconds,
		Frames:  b.frames,
		raw:     raw,
	}
	b.dirty = false
	return b.built
}

// DecodeTimeCode parses an ArtTimeCode frame.
func DecodeTimeCode(raw []byte) (*TimeCode, bool) {
	if !matchHeader(raw, OpTimeCode, timeCodeSize) {
		return nil, false
	}
	t := TimeCodeType(raw[18])
	if t > TimeCodeSMPTE || int(raw[14]) > t.MaxFrame() ||
		raw[15] > 59 || raw[16] > 59 || raw[17] > 23 {
		return nil, false
	}
	raw = clone(raw[:timeCodeSize])
	return &TimeCode{
		Type:    t,
		Hours:   raw[17],
		Minutes: raw[16],
		Seconds: raw[15],
		Frames:  raw[14],
		raw:     raw,
	}, true
}
