//go:build !linux

package async

import (
	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/ioloop"
)

// newPlatformBackend ignores entries on kqueue/IOCP: neither backend
// takes a ring-size hint the way io_uring_setup does.
func newPlatformBackend(entries uint32) func(id int) (executor.Backend, error) {
	return func(id int) (executor.Backend, error) { return ioloop.New() }
}
