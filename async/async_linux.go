//go:build linux

package async

import (
	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/ioloop"
)

func newPlatformBackend(entries uint32) func(id int) (executor.Backend, error) {
	return func(id int) (executor.Backend, error) { return ioloop.New(entries) }
}
