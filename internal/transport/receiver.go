package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"artnetctl/internal/logger"
)

// maxFrame is larger than any Art-Net frame (ArtDmx is 530 bytes).
const maxFrame = 2048

// HandlerFunc gets a private copy of every received datagram.
type HandlerFunc func(b []byte, from *net.UDPAddr)

// Receiver reads datagrams and hands them to a handler.
type Receiver struct {
	log    logger.Logger
	conn   net.PacketConn
	handle HandlerFunc
	fault  FaultHandler
}

// NewReceiver конструктор.
func NewReceiver(log logger.Logger, conn net.PacketConn, handle HandlerFunc, fault FaultHandler) *Receiver {
	return &Receiver{log: log, conn: conn, handle: handle, fault: fault}
}

// Run blocks on the socket until ctx is done. Cancelling ctx closes the
// socket, which unblocks the pending read.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.Close()
	})
	defer stop()

	buf := make([]byte, maxFrame)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if r.fault != nil {
				r.fault(fmt.Errorf("receive: %w", err))
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}
		b := make([]byte, n)
		copy(b, buf[:n])
		from, _ := addr.(*net.UDPAddr)
		r.handle(b, from)
	}
}
