package executor

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a minimal in-memory Backend standing in for a real
// platform event loop, mirroring the mutex-protected call-counter fakes
// the teacher's testing.go uses for its storage backend.
type fakeBackend struct {
	mu      sync.Mutex
	pending []Operation
	runs    int
	closed  bool
}

func (f *fakeBackend) Push(op Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, op)
}

func (f *fakeBackend) RunOnce(wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	for _, op := range f.pending {
		if op.Result != nil {
			op.Result.Complete(Outcome{N: int32(len(op.Buf))})
		}
	}
	f.pending = nil
	if wait {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (f *fakeBackend) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	ex, err := Init(&fakeBackend{}, Config{
		NumThreads: 2,
		NewBackend: func(id int) (Backend, error) { return &fakeBackend{}, nil },
	}, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(ex.Cleanup)
	return ex
}

func TestSubmitDeliversCompletion(t *testing.T) {
	ex := newTestExecutor(t)
	cr := NewCompletionResult()
	ex.Submit(Operation{Kind: OpReceive, Buf: make([]byte, 10), Result: cr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := cr.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if outcome.N != 10 {
		t.Errorf("expected N=10, got %d", outcome.N)
	}
}

func TestQueueToThreadBalancesLoad(t *testing.T) {
	ex := newTestExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	id1, release1, err := ex.QueueToThread(ctx)
	if err != nil {
		t.Fatalf("QueueToThread: %v", err)
	}
	id2, release2, err := ex.QueueToThread(ctx)
	if err != nil {
		t.Fatalf("QueueToThread: %v", err)
	}
	if id1 == id2 {
		t.Errorf("expected load balancing to pick distinct workers, got %d and %d", id1, id2)
	}
	release1()
	release2()
}

func TestQueueToThreadExBroadcast(t *testing.T) {
	ex := newTestExecutor(t)
	var mu sync.Mutex
	hits := map[int]bool{}

	if err := ex.QueueToThreadEx(-1, func() bool {
		mu.Lock()
		defer mu.Unlock()
		hits[len(hits)] = true
		return false
	}); err != nil {
		t.Fatalf("QueueToThreadEx: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(hits)
		mu.Unlock()
		if n >= ex.NumWorkers() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected broadcast to reach all %d workers, saw %d", ex.NumWorkers(), len(hits))
}

func TestHandleEventsRunsMainLoop(t *testing.T) {
	ex := newTestExecutor(t)
	if err := ex.HandleEvents(false); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}
}

func TestSubmitToUnknownWorker(t *testing.T) {
	ex := newTestExecutor(t)
	if err := ex.SubmitTo(99, Operation{Kind: OpCancel}); err == nil {
		t.Error("expected error submitting to unknown worker id")
	}
}
