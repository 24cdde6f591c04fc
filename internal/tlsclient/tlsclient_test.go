package tlsclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/corenet-go/corenet/internal/delegate"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

type fakeAddr string

func (a fakeAddr) Network() string { return "loopback" }
func (a fakeAddr) String() string  { return string(a) }

func TestDialHandshakeAndRoundTrip(t *testing.T) {
	clientIO, serverIO := delegate.NewLoopbackPair()
	cert := selfSignedCert(t)

	serverDone := make(chan error, 1)
	go func() {
		nc := newNetConnForTest(serverIO)
		srv := tls.Server(nc, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13})
		if err := srv.HandshakeContext(context.Background()); err != nil {
			serverDone <- err
			return
		}
		buf := make([]byte, 64)
		n, err := srv.Read(buf)
		if err != nil {
			serverDone <- err
			return
		}
		if _, err := srv.Write(buf[:n]); err != nil {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	client, err := Dial(context.Background(), clientIO, fakeAddr("client"), fakeAddr("localhost:443"), Config{
		ServerName:         "localhost",
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if _, err := client.Send(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 64)
	outcome, err := client.Recv(context.Background(), buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(buf[:outcome.N]) != "ping" {
		t.Errorf("expected echoed %q, got %q", "ping", string(buf[:outcome.N]))
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server handshake/echo: %v", err)
	}
}

// TestRecvSurfacesCloseNotify verifies spec 8's howsmyssl scenario: a
// recv concatenation that crosses the peer's close_notify yields one
// RecvResult with an alert whose Desc is "close_notify", after which
// the following Recv reports Closed.
func TestRecvSurfacesCloseNotify(t *testing.T) {
	clientIO, serverIO := delegate.NewLoopbackPair()
	cert := selfSignedCert(t)

	serverDone := make(chan error, 1)
	go func() {
		nc := newNetConnForTest(serverIO)
		srv := tls.Server(nc, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13})
		if err := srv.HandshakeContext(context.Background()); err != nil {
			serverDone <- err
			return
		}
		serverDone <- srv.Close()
	}()

	client, err := Dial(context.Background(), clientIO, fakeAddr("client"), fakeAddr("localhost:443"), Config{
		ServerName:         "localhost",
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server handshake/close: %v", err)
	}

	buf := make([]byte, 16)
	outcome, err := client.Recv(context.Background(), buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if outcome.Alert == nil || outcome.Alert.Desc != "close_notify" {
		t.Fatalf("expected close_notify alert, got %+v", outcome)
	}

	outcome, err = client.Recv(context.Background(), buf)
	if err != nil {
		t.Fatalf("second Recv: %v", err)
	}
	if !outcome.Closed {
		t.Fatalf("expected Closed after close_notify alert, got %+v", outcome)
	}
}

// TestRecvDeliversPendingHandshakeAlert verifies spec 8's rc4.badssl
// scenario at the unit level: when Dial stashes a fatal handshake
// alert instead of failing outright, the first Recv call delivers it
// and clears it so later calls fall through to the connection.
func TestRecvDeliversPendingHandshakeAlert(t *testing.T) {
	clientIO, _ := delegate.NewLoopbackPair()
	nc := newNetConnForTest(clientIO)
	tlsConn := tls.Client(nc, &tls.Config{InsecureSkipVerify: true})
	c := &Client{conn: tlsConn, pendingAlert: &delegate.Alert{Desc: "handshake_failure", IsFatal: true}}

	outcome, err := c.Recv(context.Background(), make([]byte, 16))
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if outcome.Alert == nil || outcome.Alert.Desc != "handshake_failure" || !outcome.Alert.IsFatal {
		t.Fatalf("expected pending handshake_failure alert, got %+v", outcome)
	}
	if c.pendingAlert != nil {
		t.Error("expected pendingAlert to be cleared after delivery")
	}
}

func TestClassifyAlertError(t *testing.T) {
	alert := classifyAlertError(errors.New("remote error: tls: handshake failure"))
	if alert == nil || alert.Desc != "handshake_failure" || !alert.IsFatal {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if classifyAlertError(errors.New("some unrelated error")) != nil {
		t.Error("expected no alert for an unrelated error")
	}
}

func TestClassifyHandshakeErrorMessages(t *testing.T) {
	if got := ClassifyHandshakeError(x509.UnknownAuthorityError{}); got != "Certificate validation failure: Cannot establish trust" {
		t.Errorf("unexpected message: %s", got)
	}
	if got := ClassifyHandshakeError(x509.CertificateInvalidError{Reason: x509.Expired}); got != "Certificate validation failure: Certificate has expired" {
		t.Errorf("unexpected message: %s", got)
	}
}

// newNetConnForTest exposes the unexported adapter constructor to this
// package's own tests.
func newNetConnForTest(io delegate.IODelegate) net.Conn {
	return newNetConn(io, fakeAddr("server"), fakeAddr("client"))
}
