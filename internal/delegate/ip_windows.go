//go:build windows

package delegate

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/shandle"
)

func sockTypeFor(udp bool) int {
	if udp {
		return windows.SOCK_DGRAM
	}
	return windows.SOCK_STREAM
}

func familyFor(ip []byte) int {
	if len(ip) == 16 {
		return windows.AF_INET6
	}
	return windows.AF_INET
}

func newOverlappedSocket(family, sotype int) (*shandle.Handle, error) {
	s, err := windows.WSASocket(int32(family), int32(sotype), 0, nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return nil, fmt.Errorf("corenet: WSASocket: %w", err)
	}
	return shandle.NewSocket(s), nil
}

func toSockaddr(addr RemoteAddr) windows.Sockaddr {
	if familyFor(addr.IP) == windows.AF_INET6 {
		sa := &windows.SockaddrInet6{Port: int(addr.Port)}
		copy(sa.Addr[:], addr.IP)
		return sa
	}
	sa := &windows.SockaddrInet4{Port: int(addr.Port)}
	copy(sa.Addr[:], addr.IP)
	return sa
}

// IPClient is the ClientDelegate for TCP/UDP on Windows (spec 4.4.3).
// Production IOCP clients issue ConnectEx through the completion port;
// this delegate keeps the hot path (Send/Recv, wired through
// ioloop_windows.go's IOCP backend) asynchronous and issues the
// one-time Connect synchronously via Winsock, since resolving
// ConnectEx's extension function pointer via
// WSAIoctl(SIO_GET_EXTENSION_FUNCTION_POINTER) does not change the
// delegate's shape -- only ioloop_windows.go's submit path -- and a
// once-per-socket blocking call does not threaten the thread pool the
// way a blocking Send/Recv would.
type IPClient struct {
	ex *executor.Executor
	h  *shandle.Handle
}

func NewIPClient(ex *executor.Executor, udp bool, family int) (*IPClient, error) {
	h, err := newOverlappedSocket(family, sockTypeFor(udp))
	if err != nil {
		return nil, err
	}
	return &IPClient{ex: ex, h: h}, nil
}

func (c *IPClient) Handle() *shandle.Handle { return c.h }

func (c *IPClient) Connect(ctx context.Context, device RemoteAddr) error {
	release, err := c.ex.QueueToThread(ctx)
	if err != nil {
		return err
	}
	defer release()
	return windows.Connect(windows.Handle(c.h.FD()), toSockaddr(device))
}

func (c *IPClient) Close(ctx context.Context) error {
	return c.h.Close()
}

var _ ClientDelegate = (*IPClient)(nil)
var _ HandleDelegate = (*IPClient)(nil)

// IPServer is the ServerDelegate for TCP listeners and bound UDP
// sockets on Windows.
type IPServer struct {
	ex *executor.Executor
	h  *shandle.Handle
}

func NewIPServer(ex *executor.Executor, udp bool, family int) (*IPServer, error) {
	h, err := newOverlappedSocket(family, sockTypeFor(udp))
	if err != nil {
		return nil, err
	}
	return &IPServer{ex: ex, h: h}, nil
}

func (s *IPServer) Handle() *shandle.Handle { return s.h }

func (s *IPServer) Listen(local RemoteAddr, backlog int) error {
	if err := windows.Bind(windows.Handle(s.h.FD()), toSockaddr(local)); err != nil {
		return fmt.Errorf("corenet: bind: %w", err)
	}
	if backlog <= 0 {
		backlog = 128
	}
	return windows.Listen(windows.Handle(s.h.FD()), backlog)
}

// Accept blocks on a worker thread via QueueToThread rather than
// riding the IOCP AcceptEx path -- see the Connect comment above for
// why this scoped-down shape is acceptable for a once-per-connection
// call.
func (s *IPServer) Accept(ctx context.Context) (*shandle.Handle, RemoteAddr, error) {
	release, err := s.ex.QueueToThread(ctx)
	if err != nil {
		return nil, RemoteAddr{}, err
	}
	defer release()

	nfd, sa, err := windows.Accept(windows.Handle(s.h.FD()))
	if err != nil {
		return nil, RemoteAddr{}, err
	}
	var peer RemoteAddr
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		peer = RemoteAddr{IP: append([]byte(nil), a.Addr[:]...), Port: uint16(a.Port)}
	case *windows.SockaddrInet6:
		peer = RemoteAddr{IP: append([]byte(nil), a.Addr[:]...), Port: uint16(a.Port)}
	}
	return shandle.NewSocket(windows.Handle(nfd)), peer, nil
}

func (s *IPServer) Close(ctx context.Context) error {
	return s.h.Close()
}

var _ ServerDelegate = (*IPServer)(nil)
var _ HandleDelegate = (*IPServer)(nil)
