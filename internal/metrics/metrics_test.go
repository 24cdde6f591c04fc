package metrics

import "testing"

func TestRecordCompleteAndSnapshot(t *testing.T) {
	m := New()
	m.RecordSubmit()
	m.RecordComplete(5_000, nil)
	m.RecordBytes(100, 200)

	snap := m.Snapshot()
	if snap.Submitted != 1 || snap.Completed != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.BytesSent != 100 || snap.BytesRecv != 200 {
		t.Errorf("unexpected byte counters: %+v", snap)
	}
	if snap.Errors != 0 {
		t.Errorf("expected 0 errors, got %d", snap.Errors)
	}
}

func TestRecordCompleteWithError(t *testing.T) {
	m := New()
	m.RecordComplete(1_000, errTest{})
	snap := m.Snapshot()
	if snap.Errors != 1 {
		t.Errorf("expected 1 error, got %d", snap.Errors)
	}
	if snap.ErrorRate != 100.0 {
		t.Errorf("expected 100%% error rate, got %f", snap.ErrorRate)
	}
}

func TestQueueDepthHighWaterMark(t *testing.T) {
	m := New()
	m.RecordQueueDepth(3)
	m.RecordQueueDepth(9)
	m.RecordQueueDepth(1)
	snap := m.Snapshot()
	if snap.MaxQueueDepth != 9 {
		t.Errorf("expected max depth 9, got %d", snap.MaxQueueDepth)
	}
}

func TestObserverRecordsCancel(t *testing.T) {
	m := New()
	obs := NewObserver(m)
	obs.ObserveCancel()
	obs.ObserveCancel()
	if m.Canceled.Load() != 2 {
		t.Errorf("expected 2 cancellations, got %d", m.Canceled.Load())
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
