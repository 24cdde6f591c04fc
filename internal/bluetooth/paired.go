// Package bluetooth implements the platform paired-device enumeration
// spec 4.6 describes. SDP lookup is not part of this package; it lives
// in btutils and internal/sdp.
package bluetooth

import "context"

// PairedDevice is one entry from the platform's paired-device list.
type PairedDevice struct {
	MAC   string // colon-separated, e.g. "AA:BB:CC:DD:EE:FF"
	Name  string
	Alias string
}

// Enumerator is satisfied by each platform's paired-device source
// (BlueZ D-Bus on Linux; on other platforms NativeEnumerator, whose
// Paired returns an error).
type Enumerator interface {
	Paired(ctx context.Context) ([]PairedDevice, error)
}
