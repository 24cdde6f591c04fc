// Package delegate implements the four delegate roles the Socket
// facade composes (spec 4.4): HandleDelegate owns the native resource,
// IODelegate moves bytes, ClientDelegate establishes outbound
// connections, ServerDelegate listens and accepts.
package delegate

import (
	"context"
	"fmt"
	"net"

	"github.com/corenet-go/corenet/internal/shandle"
)

// HandleDelegate owns one Handle for the lifetime of a Socket (spec
// 4.4.1).
type HandleDelegate interface {
	Handle() *shandle.Handle
	Close(ctx context.Context) error
}

// IODelegate moves bytes over an already-connected Handle (spec
// 4.4.2). Send and Recv may be called concurrently from different
// goroutines (one reader, one writer) but never concurrently with
// themselves.
type IODelegate interface {
	Send(ctx context.Context, data []byte) (int, error)
	// Recv reads into buf and reports what happened beyond a plain
	// byte count (spec 4.4.1/4.4.4's RecvResult): an orderly close, or
	// -- for the TLS delegate -- an alert the peer sent instead of
	// data. Non-TLS delegates always leave Outcome.Alert nil.
	Recv(ctx context.Context, buf []byte) (RecvOutcome, error)
	// RecvFrom is populated only for connectionless (UDP) sockets;
	// Internet-connection-oriented and Bluetooth delegates return
	// ErrNotSupported.
	RecvFrom(ctx context.Context, buf []byte) (int, RemoteAddr, error)
	SendTo(ctx context.Context, data []byte, to RemoteAddr) (int, error)
}

// RecvOutcome is IODelegate.Recv's return shape: the delegate-local
// mirror of the root corenet.RecvResult, kept separate so this package
// never imports corenet (which imports delegate).
type RecvOutcome struct {
	N      int
	Closed bool
	Alert  *Alert
}

// Alert is a TLS alert surfaced in place of data (spec 4.4.4); only
// the TLS delegate ever sets this.
type Alert struct {
	Desc    string
	IsFatal bool
}

// ClientDelegate drives outbound connection establishment (spec
// 4.4.3).
type ClientDelegate interface {
	Connect(ctx context.Context, device RemoteAddr) error
}

// ServerDelegate drives listening and accept (spec 4.4.4).
type ServerDelegate interface {
	Listen(local RemoteAddr, backlog int) error
	Accept(ctx context.Context) (*shandle.Handle, RemoteAddr, error)
}

// RemoteAddr is delegate's backend-agnostic view of a Device (spec 3),
// kept separate from the root corenet.Device so this package never
// imports the root package (which imports delegate).
type RemoteAddr struct {
	IP      []byte // 4 or 16 bytes; nil for Bluetooth
	MAC     [6]byte
	Port    uint16
	Family  int
	IsBT    bool
}

// String renders a RemoteAddr as a numeric IP or colon-separated MAC,
// matching corenet.Device.Address's format.
func (a RemoteAddr) String() string {
	if a.IsBT {
		return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a.MAC[0], a.MAC[1], a.MAC[2], a.MAC[3], a.MAC[4], a.MAC[5])
	}
	return net.IP(a.IP).String()
}

// ErrNotSupported is returned by delegate methods that don't apply to
// a given socket shape (e.g. RecvFrom on a TCP IODelegate).
type ErrNotSupported struct{ Op string }

func (e *ErrNotSupported) Error() string { return "corenet: " + e.Op + " not supported on this socket" }
