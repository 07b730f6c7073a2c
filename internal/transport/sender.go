package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"artnetctl/internal/logger"
)

var (
	// ErrQueueFull is returned by Send when the queue bound is reached.
	ErrQueueFull = errors.New("send queue full")
	// ErrClosed is returned by Send after the send loop exited.
	ErrClosed = errors.New("sender closed")
)

// FaultHandler receives socket errors. With a handler installed the loop
// keeps running; without one the error ends the loop.
type FaultHandler func(err error)

type outbound struct {
	b    []byte
	addr net.Addr
}

// Sender queues frames and writes them from a single loop.
type Sender struct {
	log   logger.Logger
	conn  net.PacketConn
	queue chan outbound
	fault FaultHandler
	done  chan struct{}

	inflight atomic.Int64 // queued or being written
}

// NewSender конструктор. size bounds the queue.
func NewSender(log logger.Logger, conn net.PacketConn, size int, fault FaultHandler) *Sender {
	if size <= 0 {
		size = 1
	}
	return &Sender{
		log:   log,
		conn:  conn,
		queue: make(chan outbound, size),
		fault: fault,
		done:  make(chan struct{}),
	}
}

// Send enqueues b for addr and returns without waiting for the write.
func (s *Sender) Send(b []byte, addr *net.UDPAddr) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.inflight.Add(1)
	select {
	case s.queue <- outbound{b: b, addr: addr}:
		return nil
	default:
		s.inflight.Add(-1)
		return ErrQueueFull
	}
}

// Pending returns the number of frames not yet written.
func (s *Sender) Pending() int { return int(s.inflight.Load()) }

// Flush waits until every queued frame has been written.
func (s *Sender) Flush(ctx context.Context) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for s.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case <-t.C:
		}
	}
	return nil
}

// Run writes queued frames until ctx is done or the socket is closed.
func (s *Sender) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.queue:
			_, err := s.conn.WriteTo(m.b, m.addr)
			s.inflight.Add(-1)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				if s.fault != nil {
					s.fault(fmt.Errorf("send to %v: %w", m.addr, err))
					continue
				}
				return fmt.Errorf("send to %v: %w", m.addr, err)
			}
			s.log.With(logger.Fields{"module": "transport"}).Tracef("sent %d bytes to %v", len(m.b), m.addr)
		}
	}
}
