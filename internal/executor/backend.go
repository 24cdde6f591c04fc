package executor

// Backend is the per-platform event loop driver (spec 4.2): one
// instance per worker thread, submitting Operations to the OS and
// completing their CompletionResult when the OS reports them done.
// internal/ioloop provides the io_uring/kqueue/IOCP implementations;
// this package only depends on the interface so it stays buildable on
// every GOOS without build tags of its own.
type Backend interface {
	// Push enqueues op for submission on this loop's next drain. Safe
	// to call from any goroutine; the backend is responsible for its
	// own submission-side locking or cross-thread hand-off.
	Push(op Operation)

	// RunOnce drains pending submissions, then waits up to the
	// backend's configured timeout for completions (or returns
	// immediately if wait is false), delivering each one via its
	// Operation's CompletionResult.Complete. Returns only on error or
	// after one pass; the caller loops.
	RunOnce(wait bool) error

	// Pending reports the number of in-flight, unresumed operations.
	Pending() int

	// Close releases the backend's native resources (ring, kqueue fd,
	// completion port). RunOnce must not be called again afterward.
	Close() error
}
