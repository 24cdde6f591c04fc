//go:build darwin

package ioloop

import (
	"sync"

	"github.com/corenet-go/corenet/internal/executor"
)

// ChannelEvent is one completion delivered by the native IOBluetooth
// helper for a channel previously submitted via Submit: Token identifies
// which submitted operation it completes, N/Err carry the same
// payload kqueueBackend.performReadyOp would produce for a socket op.
type ChannelEvent struct {
	Token uintptr
	N     int32
	Err   error
}

// nativeChannelProvider is satisfied by the native helper that drives
// IOBluetoothRFCOMMChannel/L2CAPChannel delegate callbacks (writeComplete,
// data received) onto a Go-visible queue, since those callbacks arrive
// off the Objective-C runloop rather than through kqueue (spec 4.2's
// Open Question on macOS Bluetooth channel completions). Poll must not
// block; it drains whatever completed since the last call.
type nativeChannelProvider interface {
	Poll() []ChannelEvent
}

// btSource adapts a nativeChannelProvider into the kqueueBackend's
// auxCompletionSource, matching pending Operations by the channel token
// handed back at submission time instead of an (fd,filter) key.
type btSource struct {
	provider nativeChannelProvider

	mu      sync.Mutex
	pending map[uintptr]*executor.Operation
}

var _ auxCompletionSource = (*btSource)(nil)

// NewBTSource wraps provider for registration with kqueueBackend.RegisterAux.
func NewBTSource(provider nativeChannelProvider) *btSource {
	return &btSource{provider: provider, pending: make(map[uintptr]*executor.Operation)}
}

// Submit registers op against token, the channel identity the caller
// will also pass to the native write/read call that produces the
// eventual ChannelEvent.
func (s *btSource) Submit(token uintptr, op *executor.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[token] = op
}

// Poll satisfies auxCompletionSource: it drains the provider and
// completes any Operation whose token matches, returning their outcomes
// for bookkeeping by the caller (kqueueBackend discards the return
// value today; completion delivery happens through op.Result.Complete).
func (s *btSource) Poll() []executor.Outcome {
	events := s.provider.Poll()
	if len(events) == 0 {
		return nil
	}
	out := make([]executor.Outcome, 0, len(events))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		op, ok := s.pending[ev.Token]
		if !ok {
			continue
		}
		delete(s.pending, ev.Token)
		outcome := executor.Outcome{N: ev.N, Err: ev.Err}
		out = append(out, outcome)
		if op.Result != nil {
			op.Result.Complete(outcome)
		}
	}
	return out
}
