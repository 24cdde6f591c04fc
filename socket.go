// Package corenet is the cross-platform async networking core (spec
// 1): a Socket abstraction over platform event loops (io_uring on
// Linux, kqueue+IOBluetooth on macOS, IOCP on Windows), covering TCP,
// UDP, Bluetooth RFCOMM/L2CAP, and a TLS client delegate.
package corenet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/corenet-go/corenet/internal/delegate"
	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/interfaces"
	"github.com/corenet-go/corenet/internal/resolver"
	"github.com/corenet-go/corenet/internal/shandle"
	"github.com/corenet-go/corenet/internal/tlsclient"
)

// State is a Socket's lifecycle stage (spec 3).
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateListening
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Options configures a Socket constructor (spec 3): an Executor to
// submit operations through, a Logger, and an Observer for metrics.
// Mirrors the teacher's CreateAndServe Options shape.
type Options struct {
	Executor *executor.Executor
	Logger   interfaces.Logger
	Observer interfaces.Observer
	Backlog  int
}

func (o Options) observer() interfaces.Observer {
	if o.Observer != nil {
		return o.Observer
	}
	return interfaces.NoOpObserver{}
}

// executor resolves the Executor to submit operations through,
// falling back to the package-level default async.Init installs
// (spec §6: callers that never touch the executor surface directly
// still get a working Socket once async.Init has run).
func (o Options) executor() *executor.Executor {
	if o.Executor != nil {
		return o.Executor
	}
	return executor.Global()
}

// Info is the introspection snapshot spec 3's supplemented feature set
// asks for (state, connection type, local and remote Device, and the
// socket's own sent/received byte counters).
type Info struct {
	State      State
	Type       ConnectionType
	Local      Device
	Remote     Device
	BytesSent  uint64
	BytesRecv  uint64
}

// Socket is the facade spec 4.4 composes from four delegate roles. A
// zero Socket is not valid; use one of the Dial*/Listen* constructors.
type Socket struct {
	mu    sync.RWMutex
	state atomic.Int32

	typ    ConnectionType
	local  Device
	remote Device

	ex       *executor.Executor
	logger   interfaces.Logger
	observer interfaces.Observer

	handle delegate.HandleDelegate
	io     delegate.IODelegate
	client delegate.ClientDelegate
	server delegate.ServerDelegate

	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

func newSocket(typ ConnectionType, ex *executor.Executor, opts Options) *Socket {
	s := &Socket{typ: typ, ex: ex, logger: opts.Logger, observer: opts.observer()}
	s.state.Store(int32(StateIdle))
	return s
}

// State reports the socket's current lifecycle stage.
func (s *Socket) State() State { return State(s.state.Load()) }

// Type reports the connection type this socket was constructed for.
func (s *Socket) Type() ConnectionType { return s.typ }

// Info returns an introspection snapshot (spec 3 supplemented
// feature).
func (s *Socket) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		State:     s.State(),
		Type:      s.typ,
		Local:     s.local,
		Remote:    s.remote,
		BytesSent: s.bytesSent.Load(),
		BytesRecv: s.bytesRecv.Load(),
	}
}

// --- client-side constructors (spec 4.4.3) ---

// DialTCP resolves host and connects a TCP client socket, trying each
// resolved candidate in order until one succeeds (spec 4.5).
func DialTCP(ctx context.Context, host string, port uint16, opts Options) (*Socket, error) {
	return dialIP(ctx, host, port, false, opts)
}

// DialUDP creates a UDP socket and connects it to host:port, fixing
// the peer for subsequent Send/Recv the way a connected UDP socket
// does; use ListenUDP + SendTo/RecvFrom for an unconnected socket.
func DialUDP(ctx context.Context, host string, port uint16, opts Options) (*Socket, error) {
	return dialIP(ctx, host, port, true, opts)
}

func dialIP(ctx context.Context, host string, port uint16, udp bool, opts Options) (*Socket, error) {
	candidates, err := resolver.Resolve(ctx, host, port)
	if err != nil {
		return nil, WrapSystemError("resolve", ErrTypeAddrInfo, err)
	}

	typ := ConnTCP
	if udp {
		typ = ConnUDP
	}
	s := newSocket(typ, opts.executor(), opts)
	s.state.Store(int32(StateConnecting))
	s.remote = NewIPDevice(typ, host, port)

	var lastErr error
	for _, c := range candidates {
		family := 2
		if c.IsV6 {
			family = 10
		}
		client, err := delegate.NewIPClient(opts.executor(), udp, family)
		if err != nil {
			lastErr = err
			continue
		}
		if err := client.Connect(ctx, delegate.RemoteAddr{IP: c.IP, Port: c.Port, Family: family}); err != nil {
			client.Close(ctx)
			lastErr = err
			s.observer.ObserveComplete("connect", 0, err)
			continue
		}
		s.handle = client
		s.client = client
		s.io = delegate.NewStreamIO(opts.executor(), client.Handle())
		s.state.Store(int32(StateConnected))
		s.observer.ObserveComplete("connect", 0, nil)
		return s, nil
	}
	s.state.Store(int32(StateClosed))
	if lastErr == nil {
		lastErr = fmt.Errorf("corenet: no candidates for %s", host)
	}
	return nil, WrapSystemError("connect", ErrTypeSystem, lastErr)
}

// DialBluetoothRFCOMM connects an RFCOMM client socket to the given
// MAC address and channel (spec 4.4.3, 4.6).
func DialBluetoothRFCOMM(ctx context.Context, mac string, channel uint16, opts Options) (*Socket, error) {
	return dialBluetooth(ctx, mac, channel, true, opts)
}

// DialBluetoothL2CAP connects an L2CAP client socket to the given MAC
// address and PSM.
func DialBluetoothL2CAP(ctx context.Context, mac string, psm uint16, opts Options) (*Socket, error) {
	return dialBluetooth(ctx, mac, psm, false, opts)
}

func dialBluetooth(ctx context.Context, mac string, port uint16, rfcomm bool, opts Options) (*Socket, error) {
	typ := ConnL2CAP
	if rfcomm {
		typ = ConnRFCOMM
	}
	s := newSocket(typ, opts.executor(), opts)
	s.state.Store(int32(StateConnecting))
	s.remote = NewBluetoothDevice(typ, "", mac, port)

	client, err := delegate.NewBTClient(opts.executor(), rfcomm)
	if err != nil {
		return nil, WrapSystemError("bluetooth socket", ErrTypeSystem, err)
	}
	macBytes, err := parseMAC(mac)
	if err != nil {
		return nil, WrapSystemError("bluetooth connect", ErrTypeSystem, err)
	}
	if err := client.Connect(ctx, delegate.RemoteAddr{MAC: macBytes, Port: port, IsBT: true}); err != nil {
		client.Close(ctx)
		return nil, WrapSystemError("bluetooth connect", ErrTypeSystem, err)
	}

	s.handle = client
	s.client = client
	s.io = delegate.NewStreamIO(opts.executor(), client.Handle())
	s.state.Store(int32(StateConnected))
	return s, nil
}

// DialTLS connects a TCP socket and performs a TLS 1.3 handshake over
// it (spec 4.4.4's TLS client delegate).
func DialTLS(ctx context.Context, host string, port uint16, tlsCfg tlsclient.Config, opts Options) (*Socket, error) {
	inner, err := DialTCP(ctx, host, port, opts)
	if err != nil {
		return nil, err
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = host
	}

	client, err := tlsclient.Dial(ctx, inner.io, tcpAddr(inner.local), tcpAddr(inner.remote), tlsCfg)
	if err != nil {
		inner.Close(ctx)
		return nil, &TLSError{Msg: err.Error(), Inner: err}
	}
	inner.io = client.AsIODelegate()
	return inner, nil
}

// --- server-side constructors (spec 4.4.4) ---

// ListenTCP binds and listens a TCP server socket.
func ListenTCP(host string, port uint16, opts Options) (*Socket, error) {
	return listenIP(host, port, false, opts)
}

// ListenUDP binds a UDP socket for SendTo/RecvFrom use.
func ListenUDP(host string, port uint16, opts Options) (*Socket, error) {
	return listenIP(host, port, true, opts)
}

func listenIP(host string, port uint16, udp bool, opts Options) (*Socket, error) {
	candidates, err := resolver.Resolve(context.Background(), host, port)
	if err != nil {
		return nil, WrapSystemError("resolve", ErrTypeAddrInfo, err)
	}
	c := candidates[0]
	family := 2
	if c.IsV6 {
		family = 10
	}

	typ := ConnTCP
	if udp {
		typ = ConnUDP
	}
	s := newSocket(typ, opts.executor(), opts)
	s.local = NewIPDevice(typ, host, port)

	srv, err := delegate.NewIPServer(opts.executor(), udp, family)
	if err != nil {
		return nil, WrapSystemError("socket", ErrTypeSystem, err)
	}
	if err := srv.Listen(delegate.RemoteAddr{IP: c.IP, Port: port, Family: family}, opts.Backlog); err != nil {
		srv.Close(context.Background())
		return nil, WrapSystemError("listen", ErrTypeSystem, err)
	}

	s.handle = srv
	s.server = srv
	if udp {
		s.io = delegate.NewDatagramIO(opts.executor(), srv.Handle())
	}
	s.state.Store(int32(StateListening))
	return s, nil
}

// ListenBluetoothRFCOMM binds and listens an RFCOMM server socket on
// the given channel.
func ListenBluetoothRFCOMM(channel uint16, opts Options) (*Socket, error) {
	return listenBluetooth(channel, true, opts)
}

// ListenBluetoothL2CAP binds and listens an L2CAP server socket on the
// given PSM.
func ListenBluetoothL2CAP(psm uint16, opts Options) (*Socket, error) {
	return listenBluetooth(psm, false, opts)
}

func listenBluetooth(port uint16, rfcomm bool, opts Options) (*Socket, error) {
	typ := ConnL2CAP
	if rfcomm {
		typ = ConnRFCOMM
	}
	s := newSocket(typ, opts.executor(), opts)

	srv, err := delegate.NewBTServer(opts.executor(), rfcomm)
	if err != nil {
		return nil, WrapSystemError("bluetooth socket", ErrTypeSystem, err)
	}
	if err := srv.Listen(delegate.RemoteAddr{Port: port, IsBT: true}, opts.Backlog); err != nil {
		srv.Close(context.Background())
		return nil, WrapSystemError("bluetooth listen", ErrTypeSystem, err)
	}

	s.handle = srv
	s.server = srv
	s.state.Store(int32(StateListening))
	return s, nil
}

// Accept waits for the next inbound connection on a listening socket,
// returning a fresh "Incoming" Socket that owns the accepted handle
// (spec 3's fifth socket shape).
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	if s.server == nil {
		return nil, NewSystemError("accept", ErrTypeSystem, 0, "socket is not listening")
	}
	h, peer, err := s.server.Accept(ctx)
	if err != nil {
		s.observer.ObserveComplete("accept", 0, err)
		return nil, WrapSystemError("accept", ErrTypeSystem, err)
	}
	incoming := newSocket(s.typ, s.ex, Options{Executor: s.ex, Logger: s.logger, Observer: s.observer})
	incoming.state.Store(int32(StateConnected))
	incoming.remote = Device{Type: s.typ, Address: peer.String(), Port: peer.Port}
	incoming.io = delegate.NewStreamIO(s.ex, h)
	incoming.handle = &handleCloser{h}
	s.observer.ObserveComplete("accept", 0, nil)
	return incoming, nil
}

// --- I/O (spec 4.4.2) ---

// Send writes data on a connection-oriented socket.
func (s *Socket) Send(ctx context.Context, data []byte) (int, error) {
	if s.io == nil {
		return 0, NewSystemError("send", ErrTypeSystem, 0, "socket has no I/O delegate")
	}
	n, err := s.io.Send(ctx, data)
	s.bytesSent.Add(uint64(n))
	s.observer.ObserveBytes(uint64(n), 0)
	if err != nil {
		return n, classifyIOError("send", err)
	}
	return n, nil
}

// Recv reads into buf on a connection-oriented socket, returning a
// RecvResult that distinguishes ordinary data from an orderly close or
// -- for a TLS socket -- a peer alert (spec 4.4.1, 4.4.4).
func (s *Socket) Recv(ctx context.Context, buf []byte) (RecvResult, error) {
	if s.io == nil {
		return RecvResult{}, NewSystemError("recv", ErrTypeSystem, 0, "socket has no I/O delegate")
	}
	outcome, err := s.io.Recv(ctx, buf)
	if err != nil {
		return RecvResult{}, classifyIOError("recv", err)
	}
	s.bytesRecv.Add(uint64(outcome.N))
	s.observer.ObserveBytes(0, uint64(outcome.N))

	result := RecvResult{Complete: true, Closed: outcome.Closed, Data: buf[:outcome.N]}
	if outcome.Alert != nil {
		result.Alert = &TLSAlert{Desc: outcome.Alert.Desc, IsFatal: outcome.Alert.IsFatal}
	}
	return result, nil
}

// SendTo writes a datagram to an explicit peer (UDP only).
func (s *Socket) SendTo(ctx context.Context, data []byte, to Device) (int, error) {
	if s.io == nil {
		return 0, NewSystemError("sendto", ErrTypeSystem, 0, "socket has no I/O delegate")
	}
	n, err := s.io.SendTo(ctx, data, deviceToRemoteAddr(to))
	s.bytesSent.Add(uint64(n))
	if err != nil {
		return n, classifyIOError("sendto", err)
	}
	return n, nil
}

// RecvFrom reads the next datagram and its sender (UDP only).
func (s *Socket) RecvFrom(ctx context.Context, buf []byte) (int, Device, error) {
	if s.io == nil {
		return 0, Device{}, NewSystemError("recvfrom", ErrTypeSystem, 0, "socket has no I/O delegate")
	}
	n, from, err := s.io.RecvFrom(ctx, buf)
	s.bytesRecv.Add(uint64(n))
	if err != nil {
		return n, Device{}, classifyIOError("recvfrom", err)
	}
	return n, Device{Type: ConnUDP, Address: ipString(from.IP), Port: from.Port}, nil
}

// Shutdown half- or fully-closes the underlying transport without
// releasing the handle, letting a peer observe EOF (spec 5).
func (s *Socket) Shutdown(ctx context.Context) error {
	cr := executor.NewCompletionResult()
	s.ex.Submit(executor.Operation{Kind: executor.OpShutdown, FD: s.fd(), Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return err
	}
	return outcome.Err
}

// CancelIO cancels any operation currently in flight for this socket
// (spec 5: cancellation is never implicit). Callers observe the
// canceled operation's error satisfy IsCanceled.
func (s *Socket) CancelIO() {
	s.ex.Submit(executor.Operation{Kind: executor.OpCancel, FD: s.fd()})
	s.observer.ObserveCancel()
}

// Close releases the socket's handle. Safe to call more than once.
func (s *Socket) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Store(int32(StateClosed))
	if s.handle == nil {
		return nil
	}
	return s.handle.Close(ctx)
}

func (s *Socket) fd() int {
	if s.handle == nil {
		return -1
	}
	return s.handle.Handle().FD()
}

// handleCloser lets Accept hand a bare *shandle.Handle to a Socket as
// a HandleDelegate.
type handleCloser struct{ h *shandle.Handle }

func (c *handleCloser) Handle() *shandle.Handle         { return c.h }
func (c *handleCloser) Close(ctx context.Context) error { return c.h.Close() }

// classifyIOError wraps a delegate-layer error as a SystemError,
// preserving cancellation detection so callers can test IsCanceled
// after a Send/Recv/SendTo/RecvFrom failure (spec 5, 7).
func classifyIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapSystemError(op, ErrTypeSystem, err)
}

// parseMAC parses a colon-separated Bluetooth MAC address (spec 3's
// Device.Address format for Bluetooth transports).
func parseMAC(mac string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("corenet: invalid MAC address %q", mac)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("corenet: invalid MAC address %q: %w", mac, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// ipString renders a 4- or 16-byte IP as its dotted/colon text form.
func ipString(ip []byte) string {
	if len(ip) == 0 {
		return ""
	}
	return net.IP(ip).String()
}

// deviceToRemoteAddr converts a public Device into the delegate
// package's backend-agnostic RemoteAddr, parsing a numeric Address via
// net.ParseIP; a hostname is not resolved and yields a nil IP.
func deviceToRemoteAddr(d Device) delegate.RemoteAddr {
	if d.Type.IsBluetooth() {
		mac, _ := parseMAC(d.Address)
		return delegate.RemoteAddr{MAC: mac, Port: d.Port, IsBT: true}
	}
	ip := net.ParseIP(d.Address)
	family := 2
	if ip.To4() == nil {
		family = 10
	} else {
		ip = ip.To4()
	}
	return delegate.RemoteAddr{IP: ip, Port: d.Port, Family: family}
}

// deviceNetAddr adapts a Device to net.Addr so it can be handed to
// tlsclient.Dial, which needs a net.Addr only for SNI derivation and
// the LocalAddr/RemoteAddr of the net.Conn it hands to crypto/tls.
type deviceNetAddr Device

func (a deviceNetAddr) Network() string { return Device(a).Type.String() }
func (a deviceNetAddr) String() string  { return fmt.Sprintf("%s:%d", a.Address, a.Port) }

func tcpAddr(d Device) net.Addr { return deviceNetAddr(d) }
