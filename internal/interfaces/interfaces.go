// Package interfaces holds internal interface definitions shared between
// the root corenet package and the internal delegate/executor packages,
// kept separate to avoid an import cycle between them.
package interfaces

// Logger is satisfied by *corelog.Logger and by any caller-supplied
// logger passed through corenet.Options.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives metrics events from the executor and delegates.
// Implementations must be thread-safe: methods are called from worker
// goroutines and event loops.
type Observer interface {
	ObserveSubmit(kind string)
	ObserveComplete(kind string, latencyNs uint64, err error)
	ObserveBytes(sent, received uint64)
	ObserveQueueDepth(depth uint32)
	ObserveCancel()
}

// NoOpObserver discards every event; used when a caller does not supply
// an Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(string)                      {}
func (NoOpObserver) ObserveComplete(string, uint64, error)     {}
func (NoOpObserver) ObserveBytes(uint64, uint64)                {}
func (NoOpObserver) ObserveQueueDepth(uint32)                   {}
func (NoOpObserver) ObserveCancel()                             {}

var _ Observer = NoOpObserver{}
