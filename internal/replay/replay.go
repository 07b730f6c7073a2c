// Package replay feeds Art-Net frames from a pcap capture into the receive path.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"artnetctl/internal/logger"
	"artnetctl/internal/packet"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DispatchFunc receives one UDP payload. It reports whether the payload was
// a recognised Art-Net packet.
type DispatchFunc func(raw []byte, from *net.UDPAddr) bool

// Stats counts what a replay saw.
type Stats struct {
	Packets    int // all captured frames
	UDP        int // UDP datagrams on the Art-Net port
	Dispatched int // recognised by DispatchFunc
	Skipped    int // undecodable or foreign frames
}

func (s Stats) String() string {
	return fmt.Sprintf("packets=%d udp=%d dispatched=%d skipped=%d", s.Packets, s.UDP, s.Dispatched, s.Skipped)
}

// Player replays captures.
type Player struct {
	log      logger.Logger
	port     uint16
	realtime bool
	dispatch DispatchFunc
}

// Option tunes a Player.
type Option func(*Player)

// WithPort filters datagrams by UDP port (source or destination).
func WithPort(port uint16) Option {
	return func(p *Player) { p.port = port }
}

// WithRealtime keeps the capture spacing between frames.
func WithRealtime(on bool) Option {
	return func(p *Player) { p.realtime = on }
}

// New конструктор.
func New(log logger.Logger, dispatch DispatchFunc, opts ...Option) *Player {
	p := &Player{
		log:      log,
		port:     packet.UDPPort,
		dispatch: dispatch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlayFile replays the capture at path.
func (p *Player) PlayFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return p.Play(ctx, f)
}

// Play replays a pcap stream until EOF or ctx is done.
func (p *Player) Play(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read pcap header: %w", err)
	}

	var prev time.Time
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			p.log.With(logger.Fields{"module": "replay"}).Infof("replay complete: %s", stats)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		payload, from, ok := p.extract(gopacket.NewPacket(data, pr.LinkType(), gopacket.Default))
		if !ok {
			continue
		}
		stats.UDP++

		if p.realtime {
			if !prev.IsZero() && ci.Timestamp.After(prev) {
				if err := sleep(ctx, ci.Timestamp.Sub(prev)); err != nil {
					return stats, err
				}
			}
			prev = ci.Timestamp
		}

		if !p.dispatch(payload, from) {
			stats.Skipped++
			p.log.With(logger.Fields{"module": "replay"}).Debugf("пропущен пакет %d от %v", stats.Packets, from)
			continue
		}
		stats.Dispatched++
	}
}

func (p *Player) extract(pkt gopacket.Packet) ([]byte, *net.UDPAddr, bool) {
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, nil, false
	}
	if uint16(udp.DstPort) != p.port && uint16(udp.SrcPort) != p.port {
		return nil, nil, false
	}
	from := &net.UDPAddr{Port: int(udp.SrcPort)}
	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		from.IP = ip4.SrcIP
	}
	return udp.Payload, from, true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
