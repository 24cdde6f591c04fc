package delegate

import (
	"context"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/shandle"
)

// StreamIO is the IODelegate for any connection-oriented transport
// (TCP, RFCOMM, L2CAP, and TLS's inner plaintext/ciphertext feed) --
// spec 4.4.2's bidirectional byte-stream shape. It submits one
// Operation per call and awaits its CompletionResult, which is the
// task-suspension point spec 4.3 describes.
type StreamIO struct {
	ex *executor.Executor
	h  *shandle.Handle
}

// NewStreamIO builds a StreamIO delegate over an already-connected
// handle, submitting its operations through ex.
func NewStreamIO(ex *executor.Executor, h *shandle.Handle) *StreamIO {
	return &StreamIO{ex: ex, h: h}
}

func (s *StreamIO) Send(ctx context.Context, data []byte) (int, error) {
	cr := executor.NewCompletionResult()
	s.ex.Submit(executor.Operation{Kind: executor.OpSend, FD: s.h.FD(), Buf: data, Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return 0, err
	}
	return int(outcome.N), outcome.Err
}

func (s *StreamIO) Recv(ctx context.Context, buf []byte) (RecvOutcome, error) {
	cr := executor.NewCompletionResult()
	s.ex.Submit(executor.Operation{Kind: executor.OpReceive, FD: s.h.FD(), Buf: buf, Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return RecvOutcome{}, err
	}
	if outcome.Err != nil {
		return RecvOutcome{}, outcome.Err
	}
	// A recv() returning 0 bytes with no error is the orderly-close
	// signal (spec 5): the peer shut its side down.
	if outcome.N == 0 {
		return RecvOutcome{Closed: true}, nil
	}
	return RecvOutcome{N: int(outcome.N)}, nil
}

func (s *StreamIO) RecvFrom(ctx context.Context, buf []byte) (int, RemoteAddr, error) {
	return 0, RemoteAddr{}, &ErrNotSupported{Op: "recvfrom"}
}

func (s *StreamIO) SendTo(ctx context.Context, data []byte, to RemoteAddr) (int, error) {
	return 0, &ErrNotSupported{Op: "sendto"}
}

var _ IODelegate = (*StreamIO)(nil)

// DatagramIO is the IODelegate for UDP sockets (spec 4.4.2's
// connectionless shape): every send/recv carries an explicit peer
// address instead of relying on a prior connect().
type DatagramIO struct {
	ex *executor.Executor
	h  *shandle.Handle
}

// NewDatagramIO builds a DatagramIO delegate over a bound (not
// connected) UDP handle.
func NewDatagramIO(ex *executor.Executor, h *shandle.Handle) *DatagramIO {
	return &DatagramIO{ex: ex, h: h}
}

func (d *DatagramIO) Send(ctx context.Context, data []byte) (int, error) {
	return 0, &ErrNotSupported{Op: "send (use sendto on a datagram socket)"}
}

func (d *DatagramIO) Recv(ctx context.Context, buf []byte) (RecvOutcome, error) {
	return RecvOutcome{}, &ErrNotSupported{Op: "recv (use recvfrom on a datagram socket)"}
}

func (d *DatagramIO) RecvFrom(ctx context.Context, buf []byte) (int, RemoteAddr, error) {
	cr := executor.NewCompletionResult()
	d.ex.Submit(executor.Operation{Kind: executor.OpReceiveFrom, FD: d.h.FD(), Buf: buf, Result: cr})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return 0, RemoteAddr{}, err
	}
	var from RemoteAddr
	if outcome.Addr != nil {
		from = RemoteAddr{IP: outcome.Addr.IP, Port: outcome.Addr.Port, Family: outcome.Addr.Family}
	}
	return int(outcome.N), from, outcome.Err
}

func (d *DatagramIO) SendTo(ctx context.Context, data []byte, to RemoteAddr) (int, error) {
	cr := executor.NewCompletionResult()
	d.ex.Submit(executor.Operation{
		Kind: executor.OpSendTo,
		FD:   d.h.FD(),
		Buf:  data,
		Addr: &executor.RawAddr{IP: to.IP, MAC: to.MAC, Port: to.Port, Family: to.Family},
		Result: cr,
	})
	outcome, err := cr.Await(ctx)
	if err != nil {
		return 0, err
	}
	return int(outcome.N), outcome.Err
}

var _ IODelegate = (*DatagramIO)(nil)
