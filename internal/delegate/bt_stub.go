//go:build !linux

package delegate

import (
	"context"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/shandle"
)

// BTClient/BTServer on macOS and Windows are stand-ins: neither
// platform's native Bluetooth stack exposes a BSD-socket-shaped
// AF_BLUETOOTH the way BlueZ does, so there is no raw-sockaddr delegate
// here. Connect, Listen and Accept return ErrNotSupported, Handle
// returns nil and Close is a no-op; no other package in this module
// opens an RFCOMM/L2CAP channel on these platforms.
type BTClient struct{ unsupported }
type BTServer struct{ unsupported }

type unsupported struct{}

func (unsupported) Handle() *shandle.Handle                                    { return nil }
func (unsupported) Connect(ctx context.Context, device RemoteAddr) error       { return &ErrNotSupported{Op: "bluetooth connect"} }
func (unsupported) Listen(local RemoteAddr, backlog int) error                 { return &ErrNotSupported{Op: "bluetooth listen"} }
func (unsupported) Accept(ctx context.Context) (*shandle.Handle, RemoteAddr, error) {
	return nil, RemoteAddr{}, &ErrNotSupported{Op: "bluetooth accept"}
}
func (unsupported) Close(ctx context.Context) error { return nil }

func NewBTClient(ex *executor.Executor, rfcomm bool) (*BTClient, error) { return &BTClient{}, nil }
func NewBTServer(ex *executor.Executor, rfcomm bool) (*BTServer, error) { return &BTServer{}, nil }

var _ ClientDelegate = (*BTClient)(nil)
var _ HandleDelegate = (*BTClient)(nil)
var _ ServerDelegate = (*BTServer)(nil)
var _ HandleDelegate = (*BTServer)(nil)
