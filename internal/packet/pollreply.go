package packet

import (
	"fmt"
	"net"
)

const (
	pollReplySize = 239

	// Field widths without the terminating zero.
	MaxShortName  = 17
	MaxLongName   = 63
	MaxNodeReport = 63
	MaxESTA       = 2

	MaxPorts   = 4
	MaxMacros  = 8
	MaxRemotes = 8
)

// IndicatorState is the front panel indicator mode (status 1, bits 6-7).
type IndicatorState uint8

const (
	IndicatorUnknown IndicatorState = iota
	IndicatorLocate
	IndicatorMute
	IndicatorNormal
)

// PortAddressAuthority tells who programmed the port address (status 1, bits 4-5).
type PortAddressAuthority uint8

const (
	AuthorityUnknown PortAddressAuthority = iota
	AuthorityFrontPanel
	AuthorityNetwork
	AuthorityUnused
)

// Style is the equipment style code.
type Style uint8

const (
	StyleNode Style = iota
	StyleController
	StyleMedia
	StyleRoute
	StyleBackup
	StyleConfig
	StyleVisual
)

func (s Style) String() string {
	switch s {
	case StyleNode:
		return "node"
	case StyleController:
		return "controller"
	case StyleMedia:
		return "media"
	case StyleRoute:
		return "route"
	case StyleBackup:
		return "backup"
	case StyleConfig:
		return "config"
	case StyleVisual:
		return "visual"
	}
	return fmt.Sprintf("Style(%d)", uint8(s))
}

// PortType describes one physical port: bit 7 output, bit 6 input, bits 0-5
// the protocol.
type PortType uint8

const (
	PortOutput PortType = 0x80
	PortInput  PortType = 0x40

	ProtocolDMX    PortType = 0x00
	ProtocolMIDI   PortType = 0x01
	ProtocolAvab   PortType = 0x02
	ProtocolColor  PortType = 0x03
	ProtocolADB    PortType = 0x04
	ProtocolArtNet PortType = 0x05
)

func (t PortType) CanOutput() bool    { return t&PortOutput != 0 }
func (t PortType) CanInput() bool     { return t&PortInput != 0 }
func (t PortType) Protocol() PortType { return t & 0x3f }

// Port is one of the four port descriptors of a poll reply.
type Port struct {
	Type           PortType
	InputStatus    uint8
	OutputStatus   uint8
	InputUniverse  uint8 // 0-15, low nibble of the port address
	OutputUniverse uint8 // 0-15
}

// DefaultPort is the value of every port that was never assigned.
var DefaultPort = Port{}

func (p Port) IsDefault() bool { return p == DefaultPort }

// PollReply is an ArtPollReply frame.
type PollReply struct {
	IP          [4]byte
	Firmware    uint16
	Net         uint8
	SubNet      uint8
	OEM         uint16
	UBEAVersion uint8

	Indicator     IndicatorState
	Authority     PortAddressAuthority
	BootedFromROM bool
	RDM           bool
	UBEA          bool

	ESTA       string // ESTACode as text, zero bytes dropped
	ESTACode   uint16 // manufacturer code, first character in the high byte
	ShortName  string
	LongName   string
	NodeReport string

	NumPorts uint8
	Ports    [MaxPorts]Port
	Macros   [MaxMacros]bool
	Remotes  [MaxRemotes]bool

	Style     Style
	MAC       [6]byte
	BindIP    [4]byte
	BindIndex uint8

	WebConfig       bool
	DHCPConfigured  bool
	DHCPCapable     bool
	LongPortAddress bool
	SACNSwitchable  bool
	Squawking       bool

	raw []byte
}

func (p *PollReply) OpCode() OpCode { return OpPollReply }

func (p *PollReply) Bytes() []byte { return p.raw }

// Addr returns the node IP as a net.IP.
func (p *PollReply) Addr() net.IP {
	return net.IPv4(p.IP[0], p.IP[1], p.IP[2], p.IP[3])
}

// OutputPortAddresses returns the 15 bit port address of every output port.
func (p *PollReply) OutputPortAddresses() []uint16 {
	var out []uint16
	for i := 0; i < int(p.NumPorts) && i < MaxPorts; i++ {
		port := p.Ports[i]
		if !port.Type.CanOutput() {
			continue
		}
		out = append(out, uint16(p.Net)<<8|uint16(p.SubNet)<<4|uint16(port.OutputUniverse))
	}
	return out
}

// PollReplyBuilder assembles ArtPollReply frames.
type PollReplyBuilder struct {
	v     PollReply
	dirty bool
	built *PollReply
}

// NewPollReplyBuilder конструктор.
func NewPollReplyBuilder() *PollReplyBuilder {
	return &PollReplyBuilder{dirty: true}
}

func (b *PollReplyBuilder) touch() { b.dirty = true }

func ipv4(field string, ip net.IP) ([4]byte, error) {
	var out [4]byte
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("%s: %v is not an IPv4 address: %w", field, ip, ErrOutOfRange)
	}
	copy(out[:], v4)
	return out, nil
}

func (b *PollReplyBuilder) SetIP(ip net.IP) error {
	v, err := ipv4("ip", ip)
	if err != nil {
		return err
	}
	b.v.IP = v
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetFirmware(v int) error {
	if err := checkRange("firmware", v, 0, 0xffff); err != nil {
		return err
	}
	b.v.Firmware = uint16(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetNet(v int) error {
	if err := checkRange("net", v, 0, 127); err != nil {
		return err
	}
	b.v.Net = uint8(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetSubNet(v int) error {
	if err := checkRange("subnet", v, 0, 15); err != nil {
		return err
	}
	b.v.SubNet = uint8(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetOEM(v int) error {
	if err := checkRange("oem", v, 0, 0xffff); err != nil {
		return err
	}
	b.v.OEM = uint16(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetUBEAVersion(v int) error {
	if err := checkRange("ubea version", v, 0, 255); err != nil {
		return err
	}
	b.v.UBEAVersion = uint8(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetIndicator(s IndicatorState) error {
	if err := checkRange("indicator", int(s), int(IndicatorUnknown), int(IndicatorNormal)); err != nil {
		return err
	}
	b.v.Indicator = s
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetAuthority(a PortAddressAuthority) error {
	if err := checkRange("authority", int(a), int(AuthorityUnknown), int(AuthorityUnused)); err != nil {
		return err
	}
	b.v.Authority = a
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetBootedFromROM(v bool) *PollReplyBuilder {
	b.v.BootedFromROM = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetRDM(v bool) *PollReplyBuilder {
	b.v.RDM = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetUBEA(v bool) *PollReplyBuilder {
	b.v.UBEA = v
	b.touch()
	return b
}

// String fields are truncated, never rejected.

func (b *PollReplyBuilder) SetESTA(s string) *PollReplyBuilder {
	var code uint16
	if len(s) > 0 {
		code = uint16(s[0]) << 8
	}
	if len(s) > 1 {
		code |= uint16(s[1])
	}
	return b.SetESTACode(code)
}

// SetESTACode sets the raw manufacturer code, for codes that are not two
// printable characters.
func (b *PollReplyBuilder) SetESTACode(code uint16) *PollReplyBuilder {
	b.v.ESTACode = code
	b.v.ESTA = estaString(code)
	b.touch()
	return b
}

func estaString(code uint16) string {
	out := make([]byte, 0, MaxESTA)
	for _, c := range []byte{byte(code >> 8), byte(code)} {
		if c != 0 {
			out = append(out, c)
		}
	}
	return string(out)
}

func (b *PollReplyBuilder) SetShortName(s string) *PollReplyBuilder {
	b.v.ShortName = fixedString(s, MaxShortName)
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetLongName(s string) *PollReplyBuilder {
	b.v.LongName = fixedString(s, MaxLongName)
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetNodeReport(s string) *PollReplyBuilder {
	b.v.NodeReport = fixedString(s, MaxNodeReport)
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetNumPorts(v int) error {
	if err := checkRange("port count", v, 0, MaxPorts); err != nil {
		return err
	}
	b.v.NumPorts = uint8(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetPort(i int, p Port) error {
	if err := checkIndex("port", i, MaxPorts); err != nil {
		return err
	}
	if err := checkRange("input universe", int(p.InputUniverse), 0, 15); err != nil {
		return err
	}
	if err := checkRange("output universe", int(p.OutputUniverse), 0, 15); err != nil {
		return err
	}
	b.v.Ports[i] = p
	b.touch()
	return nil
}

func (b *PollReplyBuilder) Port(i int) (Port, error) {
	if err := checkIndex("port", i, MaxPorts); err != nil {
		return DefaultPort, err
	}
	return b.v.Ports[i], nil
}

func (b *PollReplyBuilder) SetMacro(i int, active bool) error {
	if err := checkIndex("macro", i, MaxMacros); err != nil {
		return err
	}
	b.v.Macros[i] = active
	b.touch()
	return nil
}

func (b *PollReplyBuilder) Macro(i int) (bool, error) {
	if err := checkIndex("macro", i, MaxMacros); err != nil {
		return false, err
	}
	return b.v.Macros[i], nil
}

func (b *PollReplyBuilder) SetRemote(i int, active bool) error {
	if err := checkIndex("remote", i, MaxRemotes); err != nil {
		return err
	}
	b.v.Remotes[i] = active
	b.touch()
	return nil
}

func (b *PollReplyBuilder) Remote(i int) (bool, error) {
	if err := checkIndex("remote", i, MaxRemotes); err != nil {
		return false, err
	}
	return b.v.Remotes[i], nil
}

func (b *PollReplyBuilder) SetStyle(s Style) error {
	if err := checkRange("style", int(s), int(StyleNode), int(StyleVisual)); err != nil {
		return err
	}
	b.v.Style = s
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetMAC(mac net.HardwareAddr) error {
	if len(mac) != len(b.v.MAC) {
		return fmt.Errorf("mac: %v is not a 6 byte address: %w", mac, ErrOutOfRange)
	}
	copy(b.v.MAC[:], mac)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetBindIP(ip net.IP) error {
	v, err := ipv4("bind ip", ip)
	if err != nil {
		return err
	}
	b.v.BindIP = v
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetBindIndex(v int) error {
	if err := checkRange("bind index", v, 0, 255); err != nil {
		return err
	}
	b.v.BindIndex = uint8(v)
	b.touch()
	return nil
}

func (b *PollReplyBuilder) SetWebConfig(v bool) *PollReplyBuilder {
	b.v.WebConfig = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetDHCPConfigured(v bool) *PollReplyBuilder {
	b.v.DHCPConfigured = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetDHCPCapable(v bool) *PollReplyBuilder {
	b.v.DHCPCapable = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetLongPortAddress(v bool) *PollReplyBuilder {
	b.v.LongPortAddress = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetSACNSwitchable(v bool) *PollReplyBuilder {
	b.v.SACNSwitchable = v
	b.touch()
	return b
}

func (b *PollReplyBuilder) SetSquawking(v bool) *PollReplyBuilder {
	b.v.Squawking = v
	b.touch()
	return b
}

// Build renders the frame, reusing the previous result when unchanged.
func (b *PollReplyBuilder) Build() *PollReply {
	if !b.dirty && b.built != nil {
		return b.built
	}
	v := b.v
	raw := make([]byte, pollReplySize)
	writeID(raw, OpPollReply)
	copy(raw[10:14], v.IP[:])
	putLE16(raw[14:16], UDPPort)
	putBE16(raw[16:18], v.Firmware)
	raw[18] = v.Net
	raw[19] = v.SubNet
	putBE16(raw[20:22], v.OEM)
	raw[22] = v.UBEAVersion
	raw[23] = byte(v.Indicator)<<6 | byte(v.Authority)<<4 | packBits(
		bit{v.BootedFromROM, 2},
		bit{v.RDM, 1},
		bit{v.UBEA, 0},
	)
	// ESTA code goes low byte first: second character, then first.
	raw[24] = byte(v.ESTACode)
	raw[25] = byte(v.ESTACode >> 8)
	copy(raw[26:26+MaxShortName], v.ShortName)
	copy(raw[44:44+MaxLongName], v.LongName)
	copy(raw[108:108+MaxNodeReport], v.NodeReport)
	raw[173] = v.NumPorts
	for i, p := range v.Ports {
		raw[174+i] = byte(p.Type)
		raw[178+i] = p.InputStatus
		raw[182+i] = p.OutputStatus
		raw[186+i] = p.InputUniverse
		raw[190+i] = p.OutputUniverse
	}
	for i := range v.Macros {
		raw[195] |= packBits(bit{v.Macros[i], uint(i)})
		raw[196] |= packBits(bit{v.Remotes[i], uint(i)})
	}
	raw[200] = byte(v.Style)
	copy(raw[201:207], v.MAC[:])
	copy(raw[207:211], v.BindIP[:])
	raw[211] = v.BindIndex
	raw[212] = packBits(
		bit{v.WebConfig, 0},
		bit{v.DHCPConfigured, 1},
		bit{v.DHCPCapable, 2},
		bit{v.LongPortAddress, 3},
		bit{v.SACNSwitchable, 4},
		bit{v.Squawking, 5},
	)

	v.raw = raw
	b.built = &v
	b.dirty = false
	return b.built
}

// DecodePollReply parses an ArtPollReply frame.
func DecodePollReply(raw []byte) (*PollReply, bool) {
	if !matchHeader(raw, OpPollReply, pollReplySize) {
		return nil, false
	}
	if raw[18] > 127 || raw[173] > MaxPorts || raw[200] > byte(StyleVisual) {
		return nil, false
	}
	raw = clone(raw[:pollReplySize])

	p := &PollReply{
		Firmware:      getBE16(raw[16:18]),
		Net:           raw[18],
		SubNet:        raw[19] & 0x0f,
		OEM:           getBE16(raw[20:22]),
		UBEAVersion:   raw[22],
		Indicator:     IndicatorState(raw[23] >> 6),
		Authority:     PortAddressAuthority(raw[23] >> 4 & 0x03),
		BootedFromROM: hasBit(raw[23], 2),
		RDM:           hasBit(raw[23], 1),
		UBEA:          hasBit(raw[23], 0),
		ESTA:          estaString(uint16(raw[25])<<8 | uint16(raw[24])),
		ESTACode:      uint16(raw[25])<<8 | uint16(raw[24]),
		ShortName:     cString(raw[26 : 26+MaxShortName]),
		LongName:      cString(raw[44 : 44+MaxLongName]),
		NodeReport:    cString(raw[108 : 108+MaxNodeReport]),
		NumPorts:      raw[173],
		Style:         Style(raw[200]),
		BindIndex:     raw[211],

		WebConfig:       hasBit(raw[212], 0),
		DHCPConfigured:  hasBit(raw[212], 1),
		DHCPCapable:     hasBit(raw[212], 2),
		LongPortAddress: hasBit(raw[212], 3),
		SACNSwitchable:  hasBit(raw[212], 4),
		Squawking:       hasBit(raw[212], 5),

		raw: raw,
	}
	copy(p.IP[:], raw[10:14])
	copy(p.MAC[:], raw[201:207])
	copy(p.BindIP[:], raw[207:211])
	for i := range p.Ports {
		p.Ports[i] = Port{
			Type:           PortType(raw[174+i]),
			InputStatus:    raw[178+i],
			OutputStatus:   raw[182+i],
			InputUniverse:  raw[186+i] & 0x0f,
			OutputUniverse: raw[190+i] & 0x0f,
		}
	}
	for i := range p.Macros {
		p.Macros[i] = hasBit(raw[195], uint(i))
		p.Remotes[i] = hasBit(raw[196], uint(i))
	}
	return p, true
}
