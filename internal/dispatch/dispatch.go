// Package dispatch decodes received frames and runs the handlers registered
// for their opcode on a bounded worker pool.
package dispatch

import (
	"net"
	"sync"
	"sync/atomic"

	"artnetctl/internal/logger"
	"artnetctl/internal/packet"
	"github.com/sourcegraph/conc/pool"
)

// Handler consumes decoded packets. Handlers of one packet run in any order,
// possibly concurrently.
type Handler interface {
	Handle(p packet.Packet, from *net.UDPAddr)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(p packet.Packet, from *net.UDPAddr)

func (f HandlerFunc) Handle(p packet.Packet, from *net.UDPAddr) { f(p, from) }

// DefaultQueue bounds the packets waiting for a free worker.
const DefaultQueue = 256

type job struct {
	p        packet.Packet
	from     *net.UDPAddr
	handlers []Handler
}

// Dispatcher routes packets by opcode.
type Dispatcher struct {
	log     logger.Logger
	decoder *packet.Decoder
	pool    *pool.Pool
	queue   int
	dropped atomic.Uint64
	onDrop  func(p packet.Packet)

	jobs   chan job
	feeder chan struct{} // closed when the feed loop exits

	mu       sync.RWMutex
	handlers map[packet.OpCode][]Handler
	closed   bool
}

// Option tunes a Dispatcher.
type Option func(*Dispatcher)

// WithQueue sets how many packets may wait for a worker.
func WithQueue(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = n
		}
	}
}

// WithDropHandler is called for every packet dropped on a full queue.
func WithDropHandler(fn func(p packet.Packet)) Option {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// New конструктор. workers bounds the number of concurrently running handlers.
func New(log logger.Logger, decoder *packet.Decoder, workers int, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		log:      log,
		decoder:  decoder,
		pool:     pool.New().WithMaxGoroutines(workers),
		queue:    DefaultQueue,
		feeder:   make(chan struct{}),
		handlers: make(map[packet.OpCode][]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.jobs = make(chan job, d.queue)
	go d.feed()
	return d
}

// Register adds h for op.
func (d *Dispatcher) Register(op packet.OpCode, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[op] = append(d.handlers[op], h)
}

// Dispatch decodes raw and queues its handlers without blocking. It reports
// the packet and whether raw was a supported frame; unsupported frames are
// routine on a broadcast port and are only logged at trace level. When the
// queue is full the packet is dropped.
func (d *Dispatcher) Dispatch(raw []byte, from *net.UDPAddr) (packet.Packet, bool) {
	p, ok := d.decoder.Decode(raw)
	if !ok {
		d.log.With(logger.Fields{"module": "dispatch"}).Tracef("ignored %d bytes from %v", len(raw), from)
		return nil, false
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return p, true
	}
	hs := d.handlers[p.OpCode()]
	if len(hs) == 0 {
		d.mu.RUnlock()
		return p, true
	}
	select {
	case d.jobs <- job{p: p, from: from, handlers: hs}:
		d.mu.RUnlock()
	default:
		d.mu.RUnlock()
		d.dropped.Add(1)
		if d.onDrop != nil {
			d.onDrop(p)
		}
		d.log.With(logger.Fields{"module": "dispatch", "opcode": p.OpCode().String()}).
			Debugf("handlers busy, packet from %v dropped", from)
	}
	return p, true
}

// Dropped returns the number of packets dropped on a full queue.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// feed hands queued packets to the pool; it is the only caller that may
// block on busy workers.
func (d *Dispatcher) feed() {
	defer close(d.feeder)
	for j := range d.jobs {
		for _, h := range j.handlers {
			h, j := h, j
			d.pool.Go(func() {
				defer func() {
					if r := recover(); r != nil {
						d.log.With(logger.Fields{"module": "dispatch", "opcode": j.p.OpCode().String()}).
							Errorf("handler panic: %v", r)
					}
				}()
				h.Handle(j.p, j.from)
			})
		}
	}
}

// Close runs the queued packets and waits for the handlers. Later frames are
// decoded but not handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	<-d.feeder
	d.pool.Wait()
}
