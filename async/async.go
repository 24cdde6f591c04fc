// Package async is the public executor surface spec §6 describes:
// Init/Cleanup the per-process worker pool, HandleEvents to pump the
// calling goroutine's own loop, and QueueToThread/QueueToThreadEx to
// hand work to (an approximation of) a specific worker's thread.
package async

import (
	"context"

	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/interfaces"
)

// Config mirrors the teacher's DefaultParams/DefaultConfig shape
// (spec §1 ambient stack): NumThreads beyond the main loop, and the
// io_uring submission/completion queue depth on Linux (ignored on
// kqueue/IOCP backends, which have no equivalent knob).
type Config struct {
	NumThreads   uint8
	QueueEntries uint16
	Observer     interfaces.Observer
}

// DefaultConfig returns NumThreads=0 (resolved to runtime.NumCPU(), at
// least 1) and QueueEntries at internal/constants.DefaultQueueEntries.
func DefaultConfig() Config {
	return Config{NumThreads: 0, QueueEntries: 256}
}

// Init starts the main event loop's backend plus cfg.NumThreads worker
// backends and installs the result as the package-level default
// (internal/executor.Global()), matching spec §4.3's "per-process
// pool of worker threads, each hosting its own event loop".
func Init(cfg Config) error {
	mainBackend, err := newPlatformBackend(uint32(cfg.QueueEntries))(0)
	if err != nil {
		return err
	}
	ex, err := executor.Init(mainBackend, executor.Config{
		NumThreads: int(cfg.NumThreads),
		NewBackend: newPlatformBackend(uint32(cfg.QueueEntries)),
	}, cfg.Observer)
	if err != nil {
		return err
	}
	executor.SetGlobal(ex)
	return nil
}

// Cleanup stops every background worker and closes their backends; the
// main loop's backend is not closed.
func Cleanup() {
	if ex := executor.Global(); ex != nil {
		ex.Cleanup()
	}
}

// HandleEvents pumps the calling goroutine's own (main-thread) event
// loop once; wait controls whether it blocks until at least one
// completion is ready (spec §4.2).
func HandleEvents(wait bool) error {
	return executor.Global().HandleEvents(wait)
}

// QueueToThread reserves a worker and returns its id plus a release
// function the caller must invoke once done (spec §4.3's "resume on
// thread" primitive, approximated per internal/executor's package doc:
// the work originates from that worker's own pinned OS thread, the
// calling goroutine itself is not relocated).
func QueueToThread(ctx context.Context) (id int, release func(), err error) {
	return executor.Global().QueueToThread(ctx)
}

// QueueToThreadEx runs fn repeatedly on worker id's thread until it
// returns false; id<0 broadcasts fn to every worker and the main loop.
func QueueToThreadEx(id int, fn func() bool) error {
	return executor.Global().QueueToThreadEx(id, fn)
}

// NumWorkers reports the number of worker threads beyond the main
// loop.
func NumWorkers() int {
	return executor.Global().NumWorkers()
}
