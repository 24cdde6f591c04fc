package tlsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/corenet-go/corenet/internal/delegate"
)

// Client drives a TLS handshake and record layer over an already
// connected IODelegate (spec 4.4.4's TLS client delegate). It does not
// open its own socket: callers Dial an IP client delegate first (the
// plaintext transport), then wrap it here.
type Client struct {
	conn *tls.Conn

	mu            sync.Mutex
	pendingAlert  *delegate.Alert // set by Dial when the handshake itself failed with a fatal alert
	closeNotified bool            // Recv has already surfaced a close_notify; next Recv reports Closed
}

// Config mirrors the handful of TLS knobs the spec's client delegate
// exposes: server name for SNI, minimum version, and an option to
// accept self-signed/expired certificates for test scenarios that
// explicitly want the handshake to proceed despite validation errors.
type Config struct {
	ServerName         string
	InsecureSkipVerify bool
	MinVersion         uint16
}

// Dial performs the TLS handshake over io using cfg, following the
// teacher pack's netstack/tls.go TLSDial: MinVersion defaults to
// TLS 1.3, and ServerName is derived from remote's host when unset.
func Dial(ctx context.Context, io delegate.IODelegate, local, remote net.Addr, cfg Config) (*Client, error) {
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = sniFromAddr(remote)
	}
	minVersion := cfg.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS13
	}

	nc := newNetConn(io, local, remote)
	tlsConn := tls.Client(nc, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         minVersion,
	})

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		// Certificate validation failures fail Dial outright (spec 8's
		// self-signed/expired badssl scenarios). A handshake that
		// instead aborted on a protocol-level alert (spec 8's
		// rc4.badssl scenario: no usable cipher suite) still returns a
		// live Client -- the alert is deferred to the first Recv.
		if isCertValidationError(err) {
			return nil, fmt.Errorf("corenet: %s", ClassifyHandshakeError(err))
		}
		if alert := classifyAlertError(err); alert != nil {
			return &Client{conn: tlsConn, pendingAlert: alert}, nil
		}
		return nil, fmt.Errorf("corenet: %s", ClassifyHandshakeError(err))
	}
	return &Client{conn: tlsConn}, nil
}

// Send feeds plaintext into the TLS record layer, which encrypts it
// and writes ciphertext out through the underlying IODelegate (spec
// 4.4.4: "the TLS delegate manually feeds plaintext in and ciphertext
// out").
func (c *Client) Send(ctx context.Context, data []byte) (int, error) {
	return c.conn.Write(data)
}

// Recv decrypts the next plaintext chunk, or reports the peer's TLS
// alert in place of data (spec 4.4.4, spec 8's howsmyssl/rc4.badssl
// scenarios): a deferred handshake-failure alert from Dial, the
// close_notify alert crypto/tls collapses into io.EOF, or an orderly
// close once that alert has already been delivered once.
func (c *Client) Recv(ctx context.Context, buf []byte) (delegate.RecvOutcome, error) {
	c.mu.Lock()
	if c.pendingAlert != nil {
		alert := c.pendingAlert
		c.pendingAlert = nil
		c.mu.Unlock()
		return delegate.RecvOutcome{Alert: alert}, nil
	}
	if c.closeNotified {
		c.mu.Unlock()
		return delegate.RecvOutcome{Closed: true}, nil
	}
	c.mu.Unlock()

	n, err := c.conn.Read(buf)
	if err == nil {
		return delegate.RecvOutcome{N: n}, nil
	}
	// crypto/tls.Conn.Read returns io.EOF after the peer's close_notify
	// alert, and also when the transport closes at a record boundary
	// without one; both are reported here as close_notify. A transport
	// closure mid-record surfaces as io.ErrUnexpectedEOF instead, which
	// falls through to the plain error return below.
	if errors.Is(err, io.EOF) {
		c.mu.Lock()
		c.closeNotified = true
		c.mu.Unlock()
		return delegate.RecvOutcome{Alert: &delegate.Alert{Desc: "close_notify", IsFatal: false}}, nil
	}
	if alert := classifyAlertError(err); alert != nil {
		return delegate.RecvOutcome{Alert: alert}, nil
	}
	return delegate.RecvOutcome{}, err
}

// Close sends the TLS close_notify alert and closes the net.Conn
// adapter, which releases the underlying transport only when its
// IODelegate has a Close(context.Context) error method.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close()
}

// ConnectionState exposes the negotiated cipher suite/version for
// introspection (spec 3's Socket.Info()).
func (c *Client) ConnectionState() tls.ConnectionState {
	return c.conn.ConnectionState()
}

func sniFromAddr(addr net.Addr) string {
	host := addr.String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

var _ delegate.IODelegate = (*ioAdapter)(nil)

// ioAdapter lets a *Client satisfy delegate.IODelegate so it can sit
// behind the same Socket facade as any other connection-oriented
// delegate.
type ioAdapter struct{ c *Client }

func (a *ioAdapter) Send(ctx context.Context, data []byte) (int, error) { return a.c.Send(ctx, data) }
func (a *ioAdapter) Recv(ctx context.Context, buf []byte) (delegate.RecvOutcome, error) {
	return a.c.Recv(ctx, buf)
}
func (a *ioAdapter) RecvFrom(ctx context.Context, buf []byte) (int, delegate.RemoteAddr, error) {
	return 0, delegate.RemoteAddr{}, &delegate.ErrNotSupported{Op: "recvfrom over TLS"}
}
func (a *ioAdapter) SendTo(ctx context.Context, data []byte, to delegate.RemoteAddr) (int, error) {
	return 0, &delegate.ErrNotSupported{Op: "sendto over TLS"}
}

// AsIODelegate wraps c so it satisfies delegate.IODelegate.
func (c *Client) AsIODelegate() delegate.IODelegate { return &ioAdapter{c: c} }
