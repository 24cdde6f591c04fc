// Package shandle implements Handle (spec 3): a move-only owner of one
// native OS resource (a socket fd, a SOCKET, an IOBluetooth channel).
package shandle

import "sync"

// Handle owns exactly one native descriptor for its lifetime (spec 3:
// "Handle never duplicates or silently leaks its underlying
// resource"). The zero value is not valid; use New.
type Handle struct {
	mu     sync.Mutex
	raw    uintptr
	closer func(uintptr) error
	closed bool
}

// New wraps raw (a fd on Unix, a SOCKET on Windows, or an opaque
// native channel pointer on macOS Bluetooth) with the platform closer
// that releases it.
func New(raw uintptr, closer func(uintptr) error) *Handle {
	return &Handle{raw: raw, closer: closer}
}

// Raw returns the underlying descriptor. Callers must not retain it
// past a Close call.
func (h *Handle) Raw() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.raw
}

// FD is a convenience accessor for the common case where raw is a
// plain file descriptor.
func (h *Handle) FD() int {
	return int(h.Raw())
}

// Valid reports whether the handle still owns an open resource.
func (h *Handle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Close releases the native resource exactly once; subsequent calls
// are no-ops returning nil, matching the idempotent-close contract
// every delegate's Close(ctx) relies on (spec 5).
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	raw := h.raw
	h.mu.Unlock()

	if h.closer == nil {
		return nil
	}
	return h.closer(raw)
}

// Take transfers ownership out of h: the caller becomes responsible
// for closing the returned descriptor, and h itself is left closed
// without invoking its closer (spec 3's move semantics -- used when
// handing an accepted connection's fd to a freshly constructed
// Incoming socket).
func (h *Handle) Take() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw := h.raw
	h.closed = true
	h.raw = 0
	return raw
}
