//go:build !linux

package bluetooth

import (
	"context"
	"fmt"
)

// NativeEnumerator stands in for macOS's IOBluetooth paired-device
// list and Windows's BluetoothFindFirstDevice/Next enumeration (spec
// 4.6). Both require platform frameworks (cgo + IOBluetooth.framework,
// or the Win32 Bluetooth API) this build doesn't link; wiring them is
// a straightforward Enumerator implementation behind this same
// interface, left for a platform-specific build.
type NativeEnumerator struct{}

func NewNativeEnumerator() (*NativeEnumerator, error) { return &NativeEnumerator{}, nil }

func (e *NativeEnumerator) Paired(ctx context.Context) ([]PairedDevice, error) {
	return nil, fmt.Errorf("bluetooth: paired-device enumeration not implemented on this platform build")
}

var _ Enumerator = (*NativeEnumerator)(nil)
