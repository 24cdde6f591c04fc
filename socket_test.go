package corenet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/corenet-go/corenet/internal/delegate"
	"github.com/corenet-go/corenet/internal/executor"
)

// fakeBackend is a minimal in-memory executor.Backend, mirroring the
// one internal/executor's own tests use, kept local here since it's
// unexported across package boundaries.
type fakeBackend struct {
	mu      sync.Mutex
	pending []executor.Operation
}

func (f *fakeBackend) Push(op executor.Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, op)
}

func (f *fakeBackend) RunOnce(wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range f.pending {
		if op.Result != nil {
			op.Result.Complete(executor.Outcome{N: int32(len(op.Buf))})
		}
	}
	f.pending = nil
	return nil
}

func (f *fakeBackend) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeBackend) Close() error { return nil }

func newTestExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	ex, err := executor.Init(&fakeBackend{}, executor.Config{
		NumThreads: 1,
		NewBackend: func(id int) (executor.Backend, error) { return &fakeBackend{}, nil },
	}, nil)
	if err != nil {
		t.Fatalf("executor.Init: %v", err)
	}
	t.Cleanup(ex.Cleanup)
	return ex
}

func loopbackSocket(t *testing.T, typ ConnectionType, ex *executor.Executor) (*Socket, *delegate.Loopback) {
	t.Helper()
	a, b := delegate.NewLoopbackPair()
	s := newSocket(typ, ex, Options{Executor: ex})
	s.state.Store(int32(StateConnected))
	s.io = a
	return s, b
}

func TestSocketSendRecvLoopback(t *testing.T) {
	ex := newTestExecutor(t)
	client, peer := loopbackSocket(t, ConnTCP, ex)
	defer peer.CloseLoopback()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 16)
	outcome, err := peer.Recv(ctx, buf)
	if err != nil {
		t.Fatalf("peer Recv: %v", err)
	}
	if string(buf[:outcome.N]) != "hello" {
		t.Errorf("expected %q, got %q", "hello", string(buf[:outcome.N]))
	}

	info := client.Info()
	if info.BytesSent != 5 {
		t.Errorf("expected 5 bytes sent, got %d", info.BytesSent)
	}
}

func TestSocketSendNoIODelegate(t *testing.T) {
	s := newSocket(ConnTCP, nil, Options{})
	if _, err := s.Send(context.Background(), []byte("x")); err == nil {
		t.Error("expected error sending with no I/O delegate")
	}
}

func TestSocketCloseIsIdempotent(t *testing.T) {
	ex := newTestExecutor(t)
	s, peer := loopbackSocket(t, ConnTCP, ex)
	defer peer.CloseLoopback()

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", s.State())
	}
}

func TestSocketShutdown(t *testing.T) {
	ex := newTestExecutor(t)
	s, peer := loopbackSocket(t, ConnTCP, ex)
	defer peer.CloseLoopback()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestParseMAC(t *testing.T) {
	mac, err := parseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("parseMAC: %v", err)
	}
	want := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if mac != want {
		t.Errorf("expected %v, got %v", want, mac)
	}
	if _, err := parseMAC("not-a-mac"); err == nil {
		t.Error("expected error for malformed MAC")
	}
}

func TestDeviceToRemoteAddrBluetooth(t *testing.T) {
	d := NewBluetoothDevice(ConnRFCOMM, "", "aa:bb:cc:dd:ee:ff", 3)
	addr := deviceToRemoteAddr(d)
	if !addr.IsBT || addr.Port != 3 {
		t.Errorf("unexpected RemoteAddr: %+v", addr)
	}
}

func TestDeviceToRemoteAddrIP(t *testing.T) {
	d := NewIPDevice(ConnUDP, "127.0.0.1", 9000)
	addr := deviceToRemoteAddr(d)
	if addr.IsBT || len(addr.IP) != 4 || addr.Port != 9000 {
		t.Errorf("unexpected RemoteAddr: %+v", addr)
	}
}

func TestTCPAddrString(t *testing.T) {
	d := NewIPDevice(ConnTCP, "10.0.0.1", 443)
	if got := tcpAddr(d).String(); got != "10.0.0.1:443" {
		t.Errorf("unexpected addr string: %s", got)
	}
}

func TestSocketInfoDefaultsToIdle(t *testing.T) {
	s := newSocket(ConnTCP, nil, Options{})
	if s.Info().State != StateIdle {
		t.Errorf("expected StateIdle, got %s", s.Info().State)
	}
}
