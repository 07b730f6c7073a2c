package artnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"artnetctl/internal/clientmqtt"
	"artnetctl/internal/config"
	"artnetctl/internal/dispatch"
	"artnetctl/internal/logger"
	"artnetctl/internal/metrics"
	"artnetctl/internal/packet"
	"artnetctl/internal/products"
	"artnetctl/internal/transport"
	"artnetctl/internal/universe"
)

// Publisher announces discovered nodes, e.g. over MQTT.
type Publisher interface {
	PublishNode(info clientmqtt.NodeInfo)
}

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP).
type ArtNet struct {
	logger     logger.Logger
	cfg        config.ArtNetConf
	ip         net.IP
	broadcast  *net.UDPAddr
	conn       net.PacketConn
	sender     *transport.Sender
	dispatcher *dispatch.Dispatcher
	store      *universe.Store
	scheduler  *universe.Scheduler
	nodes      *NodeTable
	metrics    *metrics.Metrics
	publisher  Publisher
	now        func() time.Time

	replyMu sync.Mutex
	reply   *packet.PollReplyBuilder
	replies int

	tcMu     sync.Mutex
	timecode *packet.TimeCodeBuilder
	lastTC   atomic.Pointer[packet.TimeCode]

	inputMu sync.RWMutex
	inputs  map[universe.Key][]byte

	poll *packet.Poll

	selfPort int // local port of the socket, 0 before Start

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Controller is a convenience interface to use within this application.
type Controller interface {
	SetUniverseData(net, subnet, universe int, data []byte) error
	SetDMXChannelValue(value ChannelValue) error
	SetDMXChannelValues(values []ChannelValue) error
	Start(ctx context.Context, dmxDataCh <-chan clientmqtt.DataCh) error
	Stop()
}

var _ Controller = (*ArtNet)(nil)

// Option configures the controller.
type Option func(*ArtNet)

// WithConn uses an already bound socket instead of listening on cfg.Port.
func WithConn(conn net.PacketConn) Option {
	return func(c *ArtNet) { c.conn = conn }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ArtNet) { c.metrics = m }
}

// WithPublisher announces nodes through p.
func WithPublisher(p Publisher) Option {
	return func(c *ArtNet) { c.publisher = p }
}

// WithProducts replaces the bundled product table.
func WithProducts(t *products.Table) Option {
	return func(c *ArtNet) { c.nodes = NewNodeTable(t) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ArtNet) { c.now = now }
}

// NewController returns an art-net Controller.
func NewController(log logger.Logger, cfg config.ArtNetConf, node config.NodeConf, opts ...Option) (*ArtNet, error) {
	ip, err := localIP(cfg)
	if err != nil {
		return nil, err
	}
	bcast := net.ParseIP(cfg.Broadcast).To4()
	if bcast == nil {
		return nil, fmt.Errorf("bad broadcast address %q", cfg.Broadcast)
	}

	c := &ArtNet{
		logger:    log,
		cfg:       cfg,
		ip:        ip,
		broadcast: &net.UDPAddr{IP: bcast, Port: cfg.Port},
		nodes:     NewNodeTable(products.Default()),
		now:       time.Now,
		inputs:    make(map[universe.Key][]byte),
		timecode:  packet.NewTimeCodeBuilder(),
		poll:      packet.NewPollBuilder().SetReplyOnChange(true).Build(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}

	c.reply, err = newPollReply(ip, node)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll reply: %w", err)
	}

	c.store = universe.NewStore(
		universe.WithStalenessWindow(cfg.StalenessWindow.Duration),
		universe.WithSequence(cfg.Sequence),
		universe.WithClock(c.now),
	)
	c.scheduler = universe.NewScheduler(log, c.store, c.send, c.broadcast)
	c.dispatcher = dispatch.New(log, packet.NewDecoder(), cfg.Workers,
		dispatch.WithDropHandler(func(p packet.Packet) {
			c.metrics.HandlersDropped.WithLabelValues(p.OpCode().String()).Inc()
		}))
	c.dispatcher.Register(packet.OpPoll, dispatch.HandlerFunc(c.handlePoll))
	c.dispatcher.Register(packet.OpPollReply, dispatch.HandlerFunc(c.handlePollReply))
	c.dispatcher.Register(packet.OpTimeCode, dispatch.HandlerFunc(c.handleTimeCode))
	c.dispatcher.Register(packet.OpDMX, dispatch.HandlerFunc(c.handleDMX))

	log.With(logger.Fields{"module": "art-net"}).Infof("Using ArtNet IP %s and broadcast %s", ip, c.broadcast)
	return c, nil
}

func localIP(cfg config.ArtNetConf) (net.IP, error) {
	if cfg.BindIP != "" {
		ip := net.ParseIP(cfg.BindIP).To4()
		if ip == nil {
			return nil, fmt.Errorf("bad bind ip %q", cfg.BindIP)
		}
		return ip, nil
	}
	ip, err := FindArtNetIP(cfg.InterfaceCIDR)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}
	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}
	return ip, nil
}

func newPollReply(ip net.IP, node config.NodeConf) (*packet.PollReplyBuilder, error) {
	b := packet.NewPollReplyBuilder()
	if err := b.SetIP(ip); err != nil {
		return nil, err
	}
	if err := b.SetBindIP(ip); err != nil {
		return nil, err
	}
	if err := b.SetOEM(node.OEM); err != nil {
		return nil, err
	}
	if err := b.SetFirmware(node.Firmware); err != nil {
		return nil, err
	}
	if err := b.SetStyle(packet.StyleController); err != nil {
		return nil, err
	}
	if err := b.SetIndicator(packet.IndicatorNormal); err != nil {
		return nil, err
	}
	if err := b.SetAuthority(packet.AuthorityNetwork); err != nil {
		return nil, err
	}
	short := node.ShortName
	if short == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostname: %w", err)
		}
		short = strings.ToLower(strings.Split(host, ".")[0])
	}
	b.SetShortName(short).SetLongName(node.LongName).SetESTA(node.ESTA)
	return b, nil
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context, dmxDataCh <-chan clientmqtt.DataCh) error {
	if c.conn == nil {
		conn, err := transport.Listen(ctx, "", c.cfg.Port)
		if err != nil {
			return fmt.Errorf("failed to start Controller: %w", err)
		}
		c.conn = conn
	}
	if a, ok := c.conn.LocalAddr().(*net.UDPAddr); ok {
		c.selfPort = a.Port
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.sender = transport.NewSender(c.logger, c.conn, c.cfg.SendQueue, c.fault("send"))
	receiver := transport.NewReceiver(c.logger, c.conn, c.receive, c.fault("receive"))

	c.goLoop("send", func() error { return c.sender.Run(ctx) })
	c.goLoop("receive", func() error { return receiver.Run(ctx) })
	c.goLoop("scheduler", func() error { c.tickBackground(ctx); return nil })
	if c.cfg.PollInterval.Duration > 0 {
		c.goLoop("poll", func() error { c.pollBackground(ctx); return nil })
	}
	if dmxDataCh != nil {
		c.goLoop("mqtt data", func() error { c.dataProcessing(ctx, dmxDataCh); return nil })
	}
	return nil
}

func (c *ArtNet) goLoop(name string, fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.logger.With(logger.Fields{"module": "art-net", "loop": name}).Errorf("loop stopped: %v", err)
		}
	}()
}

// fault counts socket errors and keeps the loop alive.
func (c *ArtNet) fault(loop string) transport.FaultHandler {
	return func(err error) {
		c.metrics.TransportFaults.WithLabelValues(loop).Inc()
		c.logger.With(logger.Fields{"module": "transport", "loop": loop}).Warn(err)
	}
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.wg.Wait()
	c.dispatcher.Close()
}

// Flush waits until queued frames have been written. Used before Stop by
// one-shot commands.
func (c *ArtNet) Flush(ctx context.Context) error {
	if c.sender == nil {
		return nil
	}
	return c.sender.Flush(ctx)
}

// LocalIP returns the address announced in poll replies.
func (c *ArtNet) LocalIP() net.IP { return c.ip }

// Store returns the universe store.
func (c *ArtNet) Store() *universe.Store { return c.store }

// Nodes returns the discovered nodes.
func (c *ArtNet) Nodes() []Node { return c.nodes.List() }

// SetUniverseData replaces a universe; nil data removes it.
func (c *ArtNet) SetUniverseData(net, subnet, uni int, data []byte) error {
	err := c.store.SetUniverseData(net, subnet, uni, data)
	c.metrics.Universes.Set(float64(c.store.Len()))
	return err
}

func (c *ArtNet) SetDMXChannelValue(value ChannelValue) error {
	if value.Universe > 0x7fff {
		return &packet.RangeError{Field: "port address", Value: int(value.Universe), Min: 0, Max: 0x7fff}
	}
	k := universe.Key(value.Universe)
	err := c.store.SetChannel(k.Net(), k.SubNet(), k.Universe(), int(value.Channel), value.Value)
	c.metrics.Universes.Set(float64(c.store.Len()))
	return err
}

// SetDMXChannelValues applies every value and returns the joined errors.
func (c *ArtNet) SetDMXChannelValues(values []ChannelValue) error {
	var errs []error
	for _, v := range values {
		if err := c.SetDMXChannelValue(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// send queues b and counts it.
func (c *ArtNet) send(b []byte, addr *net.UDPAddr) error {
	if c.sender == nil {
		return transport.ErrClosed
	}
	if err := c.sender.Send(b, addr); err != nil {
		c.metrics.SendDropped.Inc()
		return err
	}
	op, _ := packet.PeekOpCode(b)
	c.metrics.PacketsSent.WithLabelValues(op.String()).Inc()
	return nil
}

// Tick runs one scheduler pass; the scheduler loop calls it periodically.
func (c *ArtNet) Tick() int {
	start := time.Now()
	n := c.scheduler.Tick(c.now())
	c.metrics.TickDuration.Observe(time.Since(start).Seconds())
	return n
}

func (c *ArtNet) tickBackground(ctx context.Context) {
	t := time.NewTicker(c.cfg.TickInterval.Duration)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick()
		}
	}
}

// SendPoll broadcasts an ArtPoll.
func (c *ArtNet) SendPoll() error {
	return c.send(c.poll.Bytes(), c.broadcast)
}

// SendTimeCode broadcasts a timecode frame.
func (c *ArtNet) SendTimeCode(typ packet.TimeCodeType, hours, minutes, seconds, frames int) error {
	c.tcMu.Lock()
	b := c.timecode
	for _, set := range []func() error{
		func() error { return b.SetType(typ) },
		func() error { return b.SetHours(hours) },
		func() error { return b.SetMinutes(minutes) },
		func() error { return b.SetSeconds(seconds) },
		func() error { return b.SetFrames(frames) },
	} {
		if err := set(); err != nil {
			c.tcMu.Unlock()
			return err
		}
	}
	raw := b.Build().Bytes()
	c.tcMu.Unlock()
	return c.send(raw, c.broadcast)
}

// LastTimeCode returns the most recent timecode received, nil if none.
func (c *ArtNet) LastTimeCode() *packet.TimeCode { return c.lastTC.Load() }

// Input returns the last DMX data received for k.
func (c *ArtNet) Input(k universe.Key) ([]byte, bool) {
	c.inputMu.RLock()
	defer c.inputMu.RUnlock()
	b, ok := c.inputs[k]
	return b, ok
}

// InputKeys lists the universes with received DMX data, in order.
func (c *ArtNet) InputKeys() []universe.Key {
	c.inputMu.RLock()
	keys := make([]universe.Key, 0, len(c.inputs))
	for k := range c.inputs {
		keys = append(keys, k)
	}
	c.inputMu.RUnlock()
	slices.Sort(keys)
	return keys
}

func (c *ArtNet) pollBackground(ctx context.Context) {
	t := time.NewTicker(c.cfg.PollInterval.Duration)
	defer t.Stop()
	for {
		if err := c.SendPoll(); err != nil {
			c.logger.With(logger.Fields{"module": "art-net"}).Warnf("poll not sent: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		// Nodes that missed three polls are gone.
		if n := c.expireNodes(c.now().Add(-3 * c.cfg.PollInterval.Duration)); n > 0 {
			c.logger.With(logger.Fields{"module": "art-net"}).Infof("%d nodes expired", n)
		}
		c.logger.With(logger.Fields{"module": "art-net"}).Debugf("Currently %d devices are registered", c.nodes.Len())
	}
}

// expireNodes drops nodes not seen since before. Destinations learned from
// them are removed unless a remaining node at the same IP still outputs the
// universe.
func (c *ArtNet) expireNodes(before time.Time) int {
	gone := c.nodes.Expire(before)
	c.metrics.Nodes.Set(float64(c.nodes.Len()))
	if !c.cfg.AutoUnicast || len(gone) == 0 {
		return len(gone)
	}

	live := make(map[string]bool)
	for _, n := range c.nodes.List() {
		for _, k := range n.Outputs {
			live[fmt.Sprintf("%s/%d", n.IP, k)] = true
		}
	}
	for _, n := range gone {
		addr := &net.UDPAddr{IP: n.IP, Port: c.cfg.Port}
		for _, k := range n.Outputs {
			if live[fmt.Sprintf("%s/%d", n.IP, k)] {
				continue
			}
			// The universe may have been removed meanwhile.
			_ = c.store.RemoveDestination(k, addr)
		}
	}
	return len(gone)
}

func (c *ArtNet) dataProcessing(ctx context.Context, dmxDataCh <-chan clientmqtt.DataCh) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-dmxDataCh:
			if !ok {
				return
			}
			dmxData := make([]ChannelValue, len(d.Data))
			for i, v := range d.Data {
				dmxData[i] = ChannelValue{d.Addr, v.Channel, v.Value}
			}
			c.logger.With(logger.Fields{"module": "art-net"}).Debug("DMX. Данные пришли с MQTT")
			if err := c.SetDMXChannelValues(dmxData); err != nil {
				c.logger.With(logger.Fields{"module": "art-net"}).Warnf("DMX. Данные отклонены: %v", err)
			}
		}
	}
}
