//go:build linux

package delegate

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/shandle"
)

// Linux AF_BLUETOOTH socket constants (not exposed by x/sys/unix),
// grounded on the raw rawSockaddrL2/sockaddr_rc pattern from the
// example pack's btk and paypal/gatt L2CAP sources.
const (
	afBluetooth    = 31
	btprotoL2CAP   = 0
	btprotoRFCOMM  = 3
)

// bdaddrT is a 6-byte little-endian Bluetooth device address, the
// in-kernel representation every AF_BLUETOOTH sockaddr embeds.
type bdaddrT [6]byte

func macToBdaddr(mac [6]byte) bdaddrT {
	var b bdaddrT
	// The kernel stores bdaddr_t reversed relative to the customary
	// display order (AA:BB:CC:DD:EE:FF displays most-significant byte
	// first; the struct wants it least-significant first).
	for i := 0; i < 6; i++ {
		b[i] = mac[5-i]
	}
	return b
}

// sockaddrRC is RFCOMM's sockaddr (linux/bluetooth/rfcomm.h).
type sockaddrRC struct {
	family  uint16
	bdaddr  bdaddrT
	channel uint8
}

// sockaddrL2 is L2CAP's sockaddr (linux/bluetooth/l2cap.h).
type sockaddrL2 struct {
	family  uint16
	psm     uint16
	bdaddr  bdaddrT
	cid     uint16
	bdaddrType uint8
}

func rawSockaddr(addr RemoteAddr, rfcomm bool) ([]byte, error) {
	if rfcomm {
		sa := sockaddrRC{family: afBluetooth, bdaddr: macToBdaddr(addr.MAC), channel: uint8(addr.Port)}
		return structBytes(unsafe.Pointer(&sa), int(unsafe.Sizeof(sa))), nil
	}
	sa := sockaddrL2{family: afBluetooth, psm: addr.Port, bdaddr: macToBdaddr(addr.MAC)}
	return structBytes(unsafe.Pointer(&sa), int(unsafe.Sizeof(sa))), nil
}

func structBytes(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

// BTClient is the ClientDelegate for RFCOMM and L2CAP outbound
// connections over BlueZ's AF_BLUETOOTH socket family.
type BTClient struct {
	ex     *executor.Executor
	h      *shandle.Handle
	rfcomm bool
}

// NewBTClient opens an AF_BLUETOOTH socket for the given transport.
func NewBTClient(ex *executor.Executor, rfcomm bool) (*BTClient, error) {
	proto := btprotoL2CAP
	sotype := unix.SOCK_SEQPACKET
	if rfcomm {
		proto = btprotoRFCOMM
		sotype = unix.SOCK_STREAM
	}
	fd, err := unix.Socket(afBluetooth, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, fmt.Errorf("corenet: bluetooth socket: %w", err)
	}
	return &BTClient{ex: ex, h: shandle.NewSocket(fd), rfcomm: rfcomm}, nil
}

func (c *BTClient) Handle() *shandle.Handle { return c.h }

func (c *BTClient) Connect(ctx context.Context, device RemoteAddr) error {
	raw, err := rawSockaddr(device, c.rfcomm)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(c.h.FD()), uintptr(unsafe.Pointer(&raw[0])), uintptr(len(raw)))
	if errno != 0 && errno != unix.EINPROGRESS {
		return errno
	}
	if errno == 0 {
		return nil
	}

	cr := executor.NewCompletionResult()
	c.ex.Submit(executor.Operation{Kind: executor.OpConnect, FD: c.h.FD(), Addr: &executor.RawAddr{MAC: device.MAC, Port: device.Port}, Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return err
	}
	return outcome.Err
}

func (c *BTClient) Close(ctx context.Context) error { return c.h.Close() }

var _ ClientDelegate = (*BTClient)(nil)
var _ HandleDelegate = (*BTClient)(nil)

// BTServer is the ServerDelegate for RFCOMM/L2CAP listeners.
type BTServer struct {
	ex     *executor.Executor
	h      *shandle.Handle
	rfcomm bool
}

func NewBTServer(ex *executor.Executor, rfcomm bool) (*BTServer, error) {
	proto := btprotoL2CAP
	sotype := unix.SOCK_SEQPACKET
	if rfcomm {
		proto = btprotoRFCOMM
		sotype = unix.SOCK_STREAM
	}
	fd, err := unix.Socket(afBluetooth, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, fmt.Errorf("corenet: bluetooth socket: %w", err)
	}
	return &BTServer{ex: ex, h: shandle.NewSocket(fd), rfcomm: rfcomm}, nil
}

func (s *BTServer) Handle() *shandle.Handle { return s.h }

func (s *BTServer) Listen(local RemoteAddr, backlog int) error {
	raw, err := rawSockaddr(local, s.rfcomm)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(s.h.FD()), uintptr(unsafe.Pointer(&raw[0])), uintptr(len(raw)))
	if errno != 0 {
		return fmt.Errorf("corenet: bluetooth bind: %w", errno)
	}
	if backlog <= 0 {
		backlog = 10
	}
	return unix.Listen(s.h.FD(), backlog)
}

func (s *BTServer) Accept(ctx context.Context) (*shandle.Handle, RemoteAddr, error) {
	cr := executor.NewCompletionResult()
	s.ex.Submit(executor.Operation{Kind: executor.OpAccept, FD: s.h.FD(), Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return nil, RemoteAddr{}, err
	}
	if outcome.Err != nil {
		return nil, RemoteAddr{}, outcome.Err
	}
	return shandle.NewSocket(outcome.FD), RemoteAddr{IsBT: true}, nil
}

func (s *BTServer) Close(ctx context.Context) error { return s.h.Close() }

var _ ServerDelegate = (*BTServer)(nil)
var _ HandleDelegate = (*BTServer)(nil)
