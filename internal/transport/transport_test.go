package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"artnetctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// faultyConn fails every read and write.
type faultyConn struct {
	net.PacketConn
	mu     sync.Mutex
	calls  int
	closed chan struct{}
}

func newFaultyConn() *faultyConn { return &faultyConn{closed: make(chan struct{})} }

func (c *faultyConn) ReadFrom([]byte) (int, net.Addr, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	default:
	}
	time.Sleep(time.Millisecond)
	return 0, nil, errors.New("boom")
}

func (c *faultyConn) WriteTo([]byte, net.Addr) (int, error) {
	return 0, errors.New("boom")
}

func (c *faultyConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestListen(t *testing.T) {
	ctx := context.Background()
	conn, err := Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)
	defer conn.Close()

	if runtime.GOOS == "linux" {
		port := conn.LocalAddr().(*net.UDPAddr).Port
		second, err := Listen(ctx, "127.0.0.1", port)
		require.NoError(t, err, "address reuse lets a second socket bind the port")
		_ = second.Close()
	}
}

func TestSenderDelivers(t *testing.T) {
	dst := loopback(t)
	s := NewSender(logger.Discard(), loopback(t), 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.NoError(t, s.Send([]byte("Art-Net\x00"), dst.LocalAddr().(*net.UDPAddr)))

	require.NoError(t, dst.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, _, err := dst.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "Art-Net\x00", string(buf[:n]))

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 0, s.Pending())

	cancel()
	assert.NoError(t, <-errCh)
	assert.ErrorIs(t, s.Send([]byte{1}, dst.LocalAddr().(*net.UDPAddr)), ErrClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
}

func TestSenderQueueFull(t *testing.T) {
	s := NewSender(logger.Discard(), loopback(t), 2, nil)
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
	require.NoError(t, s.Send([]byte{1}, addr))
	require.NoError(t, s.Send([]byte{2}, addr))
	assert.ErrorIs(t, s.Send([]byte{3}, addr), ErrQueueFull)
	assert.Equal(t, 2, s.Pending())
}

func TestSenderFaultHandler(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}

	var mu sync.Mutex
	var faults []error
	s := NewSender(logger.Discard(), newFaultyConn(), 4, func(err error) {
		mu.Lock()
		faults = append(faults, err)
		mu.Unlock()
	})
	require.NoError(t, s.Send([]byte{1}, addr))
	require.NoError(t, s.Send([]byte{2}, addr))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(faults) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}

func TestSenderWithoutFaultHandlerStops(t *testing.T) {
	s := NewSender(logger.Discard(), newFaultyConn(), 4, nil)
	require.NoError(t, s.Send([]byte{1}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}))
	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestReceiverHandsOffDatagrams(t *testing.T) {
	conn := loopback(t)
	got := make(chan []byte, 1)
	r := NewReceiver(logger.Discard(), conn, func(b []byte, from *net.UDPAddr) {
		assert.NotNil(t, from)
		got <- b
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	src := loopback(t)
	_, err := src.WriteTo([]byte("hello"), conn.LocalAddr())
	require.NoError(t, err)

	select {
	case b := <-got:
		assert.Equal(t, []byte("hello"), b)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop")
	}
}

func TestReceiverFaults(t *testing.T) {
	err := NewReceiver(logger.Discard(), newFaultyConn(), func([]byte, *net.UDPAddr) {}, nil).
		Run(context.Background())
	assert.ErrorContains(t, err, "boom")

	conn := newFaultyConn()
	var mu sync.Mutex
	n := 0
	r := NewReceiver(logger.Discard(), conn, func([]byte, *net.UDPAddr) {}, func(error) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return n >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}
