//go:build windows

package shandle

import "golang.org/x/sys/windows"

// NewSocket wraps a freshly created Windows SOCKET.
func NewSocket(s windows.Handle) *Handle {
	return New(uintptr(s), func(raw uintptr) error {
		return windows.Closesocket(windows.Handle(raw))
	})
}
