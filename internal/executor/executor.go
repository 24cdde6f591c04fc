package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/corenet-go/corenet/internal/interfaces"
)

// Config parameterizes Executor.Init (spec 4.2: thread pool shape).
type Config struct {
	// NumThreads is the number of worker threads beyond the caller's
	// own "main" loop (worker 0). 0 selects runtime.NumCPU(), at least
	// 1.
	NumThreads int

	// NewBackend constructs the platform event-loop driver for worker
	// id (0 is the main/UI-driven loop; Init never calls NewBackend
	// for it -- the caller supplies it directly as Init's mainBackend).
	NewBackend func(id int) (Backend, error)
}

func (c Config) numThreads() int {
	if c.NumThreads > 0 {
		return c.NumThreads
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// Executor owns the fixed worker pool (spec 4.2-4.3): a "main" loop
// driven by the embedding application's own event loop via
// HandleEvents, plus a number of background worker threads each
// running its own pinned loop goroutine.
type Executor struct {
	observer interfaces.Observer
	main     *worker
	workers  []*worker
}

// Init builds the pool: mainBackend becomes worker 0, driven only by
// calls to HandleEvents (spec 4.2: "one loop instance is driven by the
// embedding application's own frame/message loop rather than owning a
// thread"); cfg.NewBackend is called once per background worker, each
// of which gets its own pinned goroutine immediately.
func Init(mainBackend Backend, cfg Config, observer interfaces.Observer) (*Executor, error) {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	ex := &Executor{
		observer: observer,
		main:     newWorker(0, mainBackend),
	}
	n := cfg.numThreads()
	for i := 1; i <= n; i++ {
		b, err := cfg.NewBackend(i)
		if err != nil {
			ex.Cleanup()
			return nil, fmt.Errorf("executor: start worker %d: %w", i, err)
		}
		w := newWorker(i, b)
		ex.workers = append(ex.workers, w)
		go w.run(observer)
	}
	return ex, nil
}

// Cleanup stops every background worker and closes its backend. The
// main loop's backend is the caller's responsibility to close (it
// never owned a goroutine).
func (ex *Executor) Cleanup() {
	for _, w := range ex.workers {
		w.stop()
	}
	for _, w := range ex.workers {
		w.wait()
		_ = w.backend.Close()
	}
	ex.workers = nil
}

// HandleEvents drives the main loop one pass (spec 4.2): the embedding
// application calls this from its own frame/message loop. wait selects
// between a blocking and a non-blocking poll.
func (ex *Executor) HandleEvents(wait bool) error {
	ex.main.drainOneShot()
	ex.main.drainRecurring()
	return ex.main.backend.RunOnce(wait)
}

// Submit hands op to the least-loaded worker and returns which worker
// id took it, so callers needing Ex-style thread affinity for a later
// operation on the same handle can target it again.
func (ex *Executor) Submit(op Operation) int {
	w := ex.leastLoaded()
	w.backend.Push(op)
	ex.observer.ObserveSubmit(op.Kind.String())
	return w.id
}

// SubmitTo hands op directly to worker id (0 is the main loop).
func (ex *Executor) SubmitTo(id int, op Operation) error {
	w := ex.workerByID(id)
	if w == nil {
		return fmt.Errorf("executor: no worker %d", id)
	}
	w.backend.Push(op)
	ex.observer.ObserveSubmit(op.Kind.String())
	return nil
}

// QueueToThread reserves a slot on the least-loaded background worker
// and blocks the calling goroutine until that worker's loop has picked
// it up, mirroring spec 4.3's "queueToThread(): suspend, resume on
// worker's thread" load-balancing contract. Go goroutines aren't
// relocatable the way the source language's coroutines are, so the
// "resume on worker's thread" half is approximated: the *signal*
// originates from that worker's pinned OS thread, even though the
// Go scheduler is free to run the rest of the caller's goroutine
// anywhere afterward. Genuine OS-thread pinning is preserved where it
// is load-bearing -- inside each worker's own loop goroutine.
// Returns the worker id chosen and a release func the caller must call
// (typically via defer) once its slice of work is done, so load
// balancing stays accurate.
func (ex *Executor) QueueToThread(ctx context.Context) (id int, release func(), err error) {
	w := ex.leastLoaded()
	w.load.Add(1)
	cr := NewCompletionResult()
	w.enqueueOnce(func() { cr.Complete(Outcome{}) })
	if _, err := cr.Await(ctx); err != nil {
		w.load.Add(-1)
		return 0, func() {}, err
	}
	return w.id, func() { w.load.Add(-1) }, nil
}

// QueueToThreadEx schedules fn to run repeatedly on worker id's loop
// goroutine (id < 0 broadcasts to every background worker and to the
// main loop), until fn
// returns false. This is the mechanism used for cross-thread teardown
// hand-off (spec 4.3) where a specific thread, not just "some thread",
// must run the continuation.
func (ex *Executor) QueueToThreadEx(id int, fn func() bool) error {
	if id < 0 {
		for _, w := range ex.workers {
			w.enqueueRecurring(fn)
		}
		ex.main.enqueueRecurring(fn)
		return nil
	}
	w := ex.workerByID(id)
	if w == nil {
		return fmt.Errorf("executor: no worker %d", id)
	}
	w.enqueueRecurring(fn)
	return nil
}

func (ex *Executor) leastLoaded() *worker {
	best := ex.workers[0]
	bestLoad := best.load.Load()
	for _, w := range ex.workers[1:] {
		if l := w.load.Load(); l < bestLoad {
			best, bestLoad = w, l
		}
	}
	return best
}

func (ex *Executor) workerByID(id int) *worker {
	if id == 0 {
		return ex.main
	}
	for _, w := range ex.workers {
		if w.id == id {
			return w
		}
	}
	return nil
}

// NumWorkers reports the number of background worker threads (spec
// 4.2 introspection; excludes the main loop).
func (ex *Executor) NumWorkers() int { return len(ex.workers) }

var (
	globalMu sync.Mutex
	global   *Executor
)

// SetGlobal installs ex as the package-level default Executor, used by
// the public async wrapper package. Safe to call once during startup.
func SetGlobal(ex *Executor) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = ex
}

// Global returns the package-level default Executor, or nil if
// SetGlobal has not been called yet.
func Global() *Executor {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}
