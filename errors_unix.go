//go:build !windows

package corenet

import (
	"errors"
	"syscall"
)

// platformErrCode extracts the raw errno from err, or 0 if err does not
// wrap a syscall.Errno.
func platformErrCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

func canceledCode() int { return int(syscall.ECANCELED) }

func isCanceledCode(code int) bool {
	return syscall.Errno(code) == syscall.ECANCELED
}

// isPendingCode recognises EINPROGRESS, the Unix "operation still
// pending" pseudo-error for a non-blocking connect, and EAGAIN, the
// would-block result of a non-blocking transfer (spec 7 item 2).
func isPendingCode(code int) bool {
	return syscall.Errno(code) == syscall.EINPROGRESS || syscall.Errno(code) == syscall.EAGAIN
}
