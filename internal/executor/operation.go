// Package executor implements the cooperative task/event-loop contract
// of spec 4.2-4.3: a fixed pool of OS threads, each owning a per-thread
// event loop, submitting platform I/O requests and resuming the
// goroutine that suspended on them.
//
// Go has no relocatable stackful coroutine the way the source language
// does, so "suspend at an await point, resume on the loop's thread" is
// modeled as: the calling goroutine blocks on a buffered channel (the
// CompletionResult), and the owning event loop's goroutine sends the
// outcome into that channel once the OS reports completion. The loop
// goroutines themselves are the ones pinned to an OS thread (via
// runtime.LockOSThread in worker.go), which is where the spec's thread
// affinity actually matters for io_uring's single-issuer requirement
// and for bookkeeping IOCP's submitting-thread ordinal.
package executor

import "context"

// OpKind tags the variant of an Operation (spec 3).
type OpKind int

const (
	OpConnect OpKind = iota
	OpAccept
	OpSend
	OpSendTo
	OpReceive
	OpReceiveFrom
	OpShutdown
	OpClose
	OpCancel
)

func (k OpKind) String() string {
	switch k {
	case OpConnect:
		return "connect"
	case OpAccept:
		return "accept"
	case OpSend:
		return "send"
	case OpSendTo:
		return "sendto"
	case OpReceive:
		return "recv"
	case OpReceiveFrom:
		return "recvfrom"
	case OpShutdown:
		return "shutdown"
	case OpClose:
		return "close"
	case OpCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// RawAddr is a backend-agnostic destination/source address for
// sendto/recvfrom/connect, carrying enough to build any platform
// sockaddr (AF_INET6 with v4-mapped addresses, AF_BLUETOOTH RFCOMM/
// L2CAP).
type RawAddr struct {
	IP     []byte // 4 or 16 bytes for Internet families, nil for Bluetooth
	MAC    [6]byte
	Port   uint16 // TCP/UDP port, RFCOMM channel, or L2CAP PSM
	Family int    // AF_INET, AF_INET6, AF_BLUETOOTH (platform-defined)
}

// Operation is a tagged-union descriptor for one I/O request (spec 3).
// It is a value object: created when a goroutine suspends and consumed
// by the event loop on the next drain of its pending vector.
type Operation struct {
	Kind   OpKind
	FD     int
	Buf    []byte
	Addr   *RawAddr
	Result *CompletionResult // nil for fire-and-forget Shutdown/Close/Cancel
}

// Outcome is what a completed Operation reports back to its awaiting
// goroutine: bytes transferred (or a returned fd for Accept) and an
// error, if any.
type Outcome struct {
	N    int32
	FD   int // populated by Accept
	Addr *RawAddr // peer address of Accept/ReceiveFrom; set by the kqueue backend only, nil from io_uring and IOCP
	Err  error
}

// CompletionResult is the resumption token tied to one in-flight
// operation (spec 3). On Windows the production system embeds this in
// OVERLAPPED so one pointer serves as both completion key and
// resumption token; here the same role is played by the channel
// pointer itself, which every backend carries through its native
// submission as the completion's user-data/identity.
type CompletionResult struct {
	resume chan Outcome
}

// NewCompletionResult allocates a fresh, single-use CompletionResult.
func NewCompletionResult() *CompletionResult {
	return &CompletionResult{resume: make(chan Outcome, 1)}
}

// Complete delivers the outcome exactly once (spec 3: "Exactly one
// completion delivery per submission"). Called from the event loop
// goroutine that observed the OS completion.
func (c *CompletionResult) Complete(o Outcome) {
	c.resume <- o
}

// Await blocks the calling goroutine -- the task's suspension point --
// until the event loop delivers the completion, or ctx is canceled
// first. A ctx cancellation here does not cancel the underlying OS
// operation; callers that need that must call Socket.CancelIO, per
// spec 5's "the core does not implicitly cancel on close/context done".
func (c *CompletionResult) Await(ctx context.Context) (Outcome, error) {
	select {
	case o := <-c.resume:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
