//go:build windows

package corenet

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Winsock/Windows error codes not worth pulling a whole constants table
// in for; mirrors WinError.h / WinSock2.h.
const (
	errWSAIOPending          = 997 // WSA_IO_PENDING / ERROR_IO_PENDING
	errWSAOperationAborted   = 995 // WSA_OPERATION_ABORTED / ERROR_OPERATION_ABORTED
	errWSAEWouldBlock        = 10035
)

func platformErrCode(err error) int {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

func canceledCode() int { return errWSAOperationAborted }

func isCanceledCode(code int) bool {
	return code == errWSAOperationAborted
}

// isPendingCode recognises WSA_IO_PENDING, the Windows "operation still
// pending" pseudo-error for an overlapped operation, and WSAEWOULDBLOCK,
// the would-block result of a non-blocking call (spec 7 item 2).
func isPendingCode(code int) bool {
	return code == errWSAIOPending || code == errWSAEWouldBlock
}
