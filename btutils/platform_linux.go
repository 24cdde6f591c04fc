//go:build linux

package btutils

import "github.com/corenet-go/corenet/internal/bluetooth"

func newPlatformEnumerator() (bluetooth.Enumerator, error) {
	return bluetooth.NewBlueZEnumerator()
}
