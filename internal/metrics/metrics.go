// Package metrics implements the Metrics/MetricsSnapshot/Observer
// triple the spec's ambient stack carries forward (spec.md never asks
// for instrumentation, but the teacher ships one for every device and
// this module ships one for every executor and Socket), adapted from
// ehrlich-b-go-ublk/metrics.go's atomic-counter design for socket I/O
// instead of block I/O.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/corenet-go/corenet/internal/interfaces"
)

// LatencyBuckets are the histogram boundaries in nanoseconds, covering
// 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for one Executor or Socket:
// operations submitted, completions delivered, outstanding count,
// cancellations served, and bytes sent/received (spec §3's
// supplemented metrics-snapshotting feature).
type Metrics struct {
	Submitted   atomic.Uint64
	Completed   atomic.Uint64
	Errors      atomic.Uint64
	Canceled    atomic.Uint64
	BytesSent   atomic.Uint64
	BytesRecv   atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// New creates a Metrics instance with StartTime set to now.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordSubmit counts one operation handed to a Backend.
func (m *Metrics) RecordSubmit() { m.Submitted.Add(1) }

// RecordComplete counts one operation's outcome, counting a non-nil
// err under Errors; cancellations are counted by RecordCancel.
func (m *Metrics) RecordComplete(latencyNs uint64, err error) {
	m.Completed.Add(1)
	m.recordLatency(latencyNs)
	if err != nil {
		m.Errors.Add(1)
	}
}

// RecordBytes adds to the sent/received byte counters.
func (m *Metrics) RecordBytes(sent, received uint64) {
	m.BytesSent.Add(sent)
	m.BytesRecv.Add(received)
}

// RecordQueueDepth samples the outstanding-operation count, updating
// the running average and high-water mark.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// RecordCancel counts one cancelIO call.
func (m *Metrics) RecordCancel() { m.Canceled.Add(1) }

// Stop marks StopTime so Snapshot's uptime calculation freezes.
func (m *Metrics) Stop() { m.StopTime.Store(time.Now().UnixNano()) }

// Snapshot is a point-in-time, non-atomic view of Metrics for display
// or export (spec §3's Socket.Info()/introspection feature).
type Snapshot struct {
	Submitted uint64
	Completed uint64
	Errors    uint64
	Canceled  uint64
	BytesSent uint64
	BytesRecv uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs  uint64
	UptimeNs      uint64
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyHistogram [numLatencyBuckets]uint64

	ErrorRate float64
}

// Snapshot computes a Snapshot from the live counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Submitted:     m.Submitted.Load(),
		Completed:     m.Completed.Load(),
		Errors:        m.Errors.Load(),
		Canceled:      m.Canceled.Load(),
		BytesSent:     m.BytesSent.Load(),
		BytesRecv:     m.BytesRecv.Load(),
		MaxQueueDepth: m.MaxQueueDepth.Load(),
	}

	if qc := m.QueueDepthCount.Load(); qc > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(qc)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start, stop := m.StartTime.Load(), m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.Completed > 0 {
		snap.ErrorRate = float64(snap.Errors) / float64(snap.Completed) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
	}
	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	target := uint64(float64(totalOps) * percentile)
	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer implements internal/interfaces.Observer by recording every
// event into a Metrics instance.
type Observer struct {
	m *Metrics
}

// NewObserver wraps m as an interfaces.Observer.
func NewObserver(m *Metrics) *Observer { return &Observer{m: m} }

func (o *Observer) ObserveSubmit(kind string) { o.m.RecordSubmit() }

func (o *Observer) ObserveComplete(kind string, latencyNs uint64, err error) {
	o.m.RecordComplete(latencyNs, err)
}

func (o *Observer) ObserveBytes(sent, received uint64) { o.m.RecordBytes(sent, received) }

func (o *Observer) ObserveQueueDepth(depth uint32) { o.m.RecordQueueDepth(depth) }

func (o *Observer) ObserveCancel() { o.m.RecordCancel() }

var _ interfaces.Observer = (*Observer)(nil)
