//go:build !windows

package shandle

import "golang.org/x/sys/unix"

// NewSocket wraps a freshly created Unix socket fd.
func NewSocket(fd int) *Handle {
	return New(uintptr(fd), func(raw uintptr) error {
		return unix.Close(int(raw))
	})
}
