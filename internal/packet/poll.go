package packet

import "fmt"

const pollSize = 14

// Priority is the lowest diagnostics priority a poller wants to receive.
type Priority uint8

const (
	// PriorityNone is a sentinel; assigning it selects PriorityLow.
	PriorityNone     Priority = 0x00
	PriorityLow      Priority = 0x10
	PriorityMedium   Priority = 0x40
	PriorityHigh     Priority = 0x80
	PriorityCritical Priority = 0xe0
	PriorityVolatile Priority = 0xf0
)

func (p Priority) valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical, PriorityVolatile:
		return true
	}
	return false
}

func (p Priority) String() string {
	switch p {
	case PriorityNone:
		return "none"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityVolatile:
		return "volatile"
	}
	return fmt.Sprintf("Priority(0x%02x)", uint8(p))
}

// Flag bit positions of the ArtPoll TalkToMe byte.
const (
	pollReplyOnChange = 1
	pollSendDiag      = 2
	pollUnicastDiag   = 3
	pollDisableVLC    = 4
)

// Poll is an ArtPoll frame.
type Poll struct {
	ReplyOnChange bool
	SendDiag      bool
	UnicastDiag   bool
	DisableVLC    bool
	Priority      Priority

	raw []byte
}

func (p *Poll) OpCode() OpCode { return OpPoll }

func (p *Poll) Bytes() []byte { return p.raw }

// PollBuilder assembles ArtPoll frames.
type PollBuilder struct {
	replyOnChange bool
	sendDiag      bool
	unicastDiag   bool
	disableVLC    bool
	priority      Priority

	dirty bool
	built *Poll
}

// NewPollBuilder конструктор.
func NewPollBuilder() *PollBuilder {
	return &PollBuilder{priority: PriorityLow, dirty: true}
}

func (b *PollBuilder) SetReplyOnChange(v bool) *PollBuilder {
	b.replyOnChange = v
	b.dirty = true
	return b
}

func (b *PollBuilder) SetSendDiag(v bool) *PollBuilder {
	b.sendDiag = v
	b.dirty = true
	return b
}

func (b *PollBuilder) SetUnicastDiag(v bool) *PollBuilder {
	b.unicastDiag = v
	b.dirty = true
	return b
}

func (b *PollBuilder) SetDisableVLC(v bool) *PollBuilder {
	b.disableVLC = v
	b.dirty = true
	return b
}

// SetPriority assigns the diagnostics priority. PriorityNone resets to
// PriorityLow; values outside the enum are rejected.
func (b *PollBuilder) SetPriority(p Priority) error {
	if p == PriorityNone {
		p = PriorityLow
	}
	if !p.valid() {
		return &RangeError{Field: "priority", Value: int(p), Min: int(PriorityLow), Max: int(PriorityVolatile)}
	}
	b.priority = p
	b.dirty = true
	return nil
}

func (b *PollBuilder) Priority() Priority { return b.priority }

// Build renders the frame, reusing the previous result when unchanged.
func (b *PollBuilder) Build() *Poll {
	if !b.dirty && b.built != nil {
		return b.built
	}
	raw := make([]byte, pollSize)
	writeHeader(raw, OpPoll)
	raw[12] = packBits(
		bit{b.disableVLC, pollDisableVLC},
		bit{b.unicastDiag, pollUnicastDiag},
		bit{b.sendDiag, pollSendDiag},
		bit{b.replyOnChange, pollReplyOnChange},
	)
	raw[13] = byte(b.priority)

	b.built = &Poll{
		ReplyOnChange: b.replyOnChange,
		SendDiag:      b.sendDiag,
		UnicastDiag:   b.unicastDiag,
		DisableVLC:    b.disableVLC,
		Priority:      b.priority,
		raw:           raw,
	}
	b.dirty = false
	return b.built
}

// DecodePoll parses an ArtPoll frame. Unknown priorities decode as
// PriorityLow.
func DecodePoll(raw []byte) (*Poll, bool) {
	if !matchHeader(raw, OpPoll, pollSize) {
		return nil, false
	}
	raw = clone(raw[:pollSize])
	prio := Priority(raw[13])
	if !prio.valid() {
		prio = PriorityLow
	}
	return &Poll{
		ReplyOnChange: hasBit(raw[12], pollReplyOnChange),
		SendDiag:      hasBit(raw[12], pollSendDiag),
		UnicastDiag:   hasBit(raw[12], pollUnicastDiag),
		DisableVLC:    hasBit(raw[12], pollDisableVLC),
		Priority:      prio,
		raw:           raw,
	}, true
}
