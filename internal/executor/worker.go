package executor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/corenet-go/corenet/internal/interfaces"
)

// worker owns one Backend and the OS thread it must stay pinned to
// (spec 4.2: "each worker thread owns exactly one event loop instance
// for its lifetime"). Its loop goroutine calls runtime.LockOSThread so
// that io_uring's IORING_SETUP_SINGLE_ISSUER and IOCP's submitting-
// thread bookkeeping see a stable OS thread across the worker's life.
type worker struct {
	id      int
	backend Backend

	mu       sync.Mutex
	oneShot  []func()       // queueToThread continuations, run once then dropped
	recurring []func() bool // queueToThreadEx continuations; kept while they return true

	load       atomic.Int64 // approximate outstanding work, for least-loaded selection
	shouldStop atomic.Bool
	stopped    chan struct{}
}

func newWorker(id int, backend Backend) *worker {
	return &worker{
		id:      id,
		backend: backend,
		stopped: make(chan struct{}),
	}
}

// run is the per-thread event loop (spec 4.2). It is started in its
// own goroutine by Executor.Init and returns only after stop() and a
// final drain.
func (w *worker) run(observer interfaces.Observer) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.stopped)

	for {
		w.drainOneShot()
		w.drainRecurring()

		if w.shouldStop.Load() {
			// One last non-blocking drain so completions already
			// queued by the OS aren't dropped on the floor.
			_ = w.backend.RunOnce(false)
			if w.backend.Pending() == 0 {
				return
			}
		}

		if err := w.backend.RunOnce(true); err != nil {
			observer.ObserveComplete("loop", 0, err)
		}
	}
}

func (w *worker) drainOneShot() {
	w.mu.Lock()
	if len(w.oneShot) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.oneShot
	w.oneShot = nil
	w.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
}

func (w *worker) drainRecurring() {
	w.mu.Lock()
	if len(w.recurring) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.recurring
	w.recurring = nil
	w.mu.Unlock()

	kept := batch[:0]
	for _, fn := range batch {
		if fn() {
			kept = append(kept, fn)
		}
	}
	if len(kept) > 0 {
		w.mu.Lock()
		w.recurring = append(kept, w.recurring...)
		w.mu.Unlock()
	}
}

// enqueueOnce schedules fn to run exactly once on this worker's loop
// goroutine, on its next iteration.
func (w *worker) enqueueOnce(fn func()) {
	w.mu.Lock()
	w.oneShot = append(w.oneShot, fn)
	w.mu.Unlock()
}

// enqueueRecurring schedules fn to run on this worker's loop goroutine
// every iteration until it returns false.
func (w *worker) enqueueRecurring(fn func() bool) {
	w.mu.Lock()
	w.recurring = append(w.recurring, fn)
	w.mu.Unlock()
}

func (w *worker) stop() {
	w.shouldStop.Store(true)
}

func (w *worker) wait() {
	<-w.stopped
}
