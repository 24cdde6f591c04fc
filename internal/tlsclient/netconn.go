// Package tlsclient implements the TLS client delegate (spec 4.4.4):
// driving crypto/tls's handshake and record layer over the async
// IODelegate's manual send/recv contract, rather than a classic
// blocking net.Conn straight off the OS.
package tlsclient

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/corenet-go/corenet/internal/delegate"
)

// netConn adapts an IODelegate into a net.Conn so crypto/tls.Client
// can drive it, grounded on the teacher pack's netstack/tls.go
// TLSDial, which wraps tls.Dial around a plain net.Conn -- here the
// "plain" conn is the async core's IODelegate instead of a raw kernel
// socket.
type netConn struct {
	io     delegate.IODelegate
	local  net.Addr
	remote net.Addr

	mu                          sync.Mutex
	readDeadline, writeDeadline time.Time
}

func newNetConn(io delegate.IODelegate, local, remote net.Addr) *netConn {
	return &netConn{io: io, local: local, remote: remote}
}

// Read adapts IODelegate.Recv's {N, Closed, Alert} outcome back onto
// io.Reader's contract so crypto/tls's record layer, which reads the
// raw ciphertext stream below this net.Conn, sees the io.EOF it
// expects on orderly close. The underlying transport never sets
// Alert -- only the TLS delegate layered above this one does.
func (c *netConn) Read(p []byte) (int, error) {
	ctx, cancel := c.deadlineCtx(c.getReadDeadline())
	defer cancel()
	outcome, err := c.io.Recv(ctx, p)
	if err != nil {
		return 0, err
	}
	if outcome.Closed {
		return 0, io.EOF
	}
	return outcome.N, nil
}

func (c *netConn) Write(p []byte) (int, error) {
	ctx, cancel := c.deadlineCtx(c.getWriteDeadline())
	defer cancel()
	return c.io.Send(ctx, p)
}

func (c *netConn) Close() error {
	if closer, ok := c.io.(interface{ Close(context.Context) error }); ok {
		return closer.Close(context.Background())
	}
	return nil
}

func (c *netConn) LocalAddr() net.Addr  { return c.local }
func (c *netConn) RemoteAddr() net.Addr { return c.remote }

func (c *netConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline, c.writeDeadline = t, t
	return nil
}

func (c *netConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *netConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *netConn) getReadDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readDeadline
}

func (c *netConn) getWriteDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeDeadline
}

func (c *netConn) deadlineCtx(deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}

var _ net.Conn = (*netConn)(nil)
