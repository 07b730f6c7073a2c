// Package transport moves raw Art-Net frames over UDP: one socket, a receive
// loop and a bounded send queue drained by a send loop.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Listen binds a UDP socket with broadcast and address reuse enabled. Use an
// empty ip to receive broadcasts on every interface.
func Listen(ctx context.Context, ip string, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: control}
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s:%d: %w", ip, port, err)
	}
	return pc.(*net.UDPConn), nil
}
