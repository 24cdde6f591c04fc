//go:build !windows

package delegate

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/shandle"
)

func sockTypeFor(udp bool) int {
	if udp {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

func familyFor(ip []byte) int {
	if len(ip) == 16 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func newNonblockingSocket(family, sotype int) (*shandle.Handle, error) {
	fd, err := unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("corenet: socket: %w", err)
	}
	return shandle.NewSocket(fd), nil
}

func toSockaddr(addr RemoteAddr) unix.Sockaddr {
	if familyFor(addr.IP) == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: int(addr.Port)}
		copy(sa.Addr[:], addr.IP)
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port)}
	copy(sa.Addr[:], addr.IP)
	return sa
}

// IPClient is the ClientDelegate for TCP and UDP (spec 4.4.3): a
// nonblocking connect followed by an OpConnect Operation that
// completes once the kqueue/io_uring/IOCP backend observes the socket
// writable (or, on Linux, performs the connect itself via
// IORING_OP_CONNECT).
type IPClient struct {
	ex *executor.Executor
	h  *shandle.Handle
}

// NewIPClient allocates the client socket for device's family/type;
// Connect must be called before any IODelegate use.
func NewIPClient(ex *executor.Executor, udp bool, family int) (*IPClient, error) {
	h, err := newNonblockingSocket(family, sockTypeFor(udp))
	if err != nil {
		return nil, err
	}
	return &IPClient{ex: ex, h: h}, nil
}

func (c *IPClient) Handle() *shandle.Handle { return c.h }

func (c *IPClient) Connect(ctx context.Context, device RemoteAddr) error {
	err := unix.Connect(c.h.FD(), toSockaddr(device))
	if err != nil && err != unix.EINPROGRESS {
		return err
	}
	if err == nil {
		return nil // connected synchronously (common for loopback)
	}

	cr := executor.NewCompletionResult()
	c.ex.Submit(executor.Operation{Kind: executor.OpConnect, FD: c.h.FD(), Addr: &executor.RawAddr{IP: device.IP, Port: device.Port}, Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return err
	}
	return outcome.Err
}

func (c *IPClient) Close(ctx context.Context) error {
	return c.h.Close()
}

var _ ClientDelegate = (*IPClient)(nil)
var _ HandleDelegate = (*IPClient)(nil)

// IPServer is the ServerDelegate for TCP listeners and UDP sockets
// bound for receive (spec 4.4.4).
type IPServer struct {
	ex *executor.Executor
	h  *shandle.Handle
}

// NewIPServer allocates the listening/bound socket.
func NewIPServer(ex *executor.Executor, udp bool, family int) (*IPServer, error) {
	h, err := newNonblockingSocket(family, sockTypeFor(udp))
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(h.FD(), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		h.Close()
		return nil, err
	}
	return &IPServer{ex: ex, h: h}, nil
}

func (s *IPServer) Handle() *shandle.Handle { return s.h }

func (s *IPServer) Listen(local RemoteAddr, backlog int) error {
	if err := unix.Bind(s.h.FD(), toSockaddr(local)); err != nil {
		return fmt.Errorf("corenet: bind: %w", err)
	}
	if typ, err := unix.GetsockoptInt(s.h.FD(), unix.SOL_SOCKET, unix.SO_TYPE); err == nil && typ == unix.SOCK_DGRAM {
		return nil // a bound UDP socket is ready for recvfrom; listen applies to streams only
	}
	if backlog <= 0 {
		backlog = 128
	}
	return unix.Listen(s.h.FD(), backlog)
}

func (s *IPServer) Accept(ctx context.Context) (*shandle.Handle, RemoteAddr, error) {
	cr := executor.NewCompletionResult()
	s.ex.Submit(executor.Operation{Kind: executor.OpAccept, FD: s.h.FD(), Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return nil, RemoteAddr{}, err
	}
	if outcome.Err != nil {
		return nil, RemoteAddr{}, outcome.Err
	}
	var peer RemoteAddr
	if outcome.Addr != nil {
		peer = RemoteAddr{IP: outcome.Addr.IP, Port: outcome.Addr.Port, Family: outcome.Addr.Family}
	}
	return shandle.NewSocket(outcome.FD), peer, nil
}

func (s *IPServer) Close(ctx context.Context) error {
	return s.h.Close()
}

var _ ServerDelegate = (*IPServer)(nil)
var _ HandleDelegate = (*IPServer)(nil)
