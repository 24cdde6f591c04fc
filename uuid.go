package corenet

import (
	"encoding/hex"
	"fmt"

	"github.com/corenet-go/corenet/internal/constants"
)

// UUID128 is a fixed 16-byte Bluetooth UUID in big-endian (network)
// order (spec 3).
type UUID128 [16]byte

// String renders the canonical 8-4-4-4-12 hyphenated form.
func (u UUID128) String() string {
	b := u[:]
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(b[0:4]),
		hex.EncodeToString(b[4:6]),
		hex.EncodeToString(b[6:8]),
		hex.EncodeToString(b[8:10]),
		hex.EncodeToString(b[10:16]),
	)
}

// UUIDFromBase16 expands a 16-bit Bluetooth UUID into 128-bit form by
// overlaying it onto the Bluetooth base UUID (spec 3, 4.6).
func UUIDFromBase16(short uint16) UUID128 {
	var u UUID128
	copy(u[:], constants.BluetoothBaseUUID[:])
	u[2] = byte(short >> 8)
	u[3] = byte(short)
	return u
}

// UUIDFromBase32 expands a 32-bit Bluetooth UUID into 128-bit form.
func UUIDFromBase32(short uint32) UUID128 {
	var u UUID128
	copy(u[:], constants.BluetoothBaseUUID[:])
	u[0] = byte(short >> 24)
	u[1] = byte(short >> 16)
	u[2] = byte(short >> 8)
	u[3] = byte(short)
	return u
}

// uuidFromBase is the package-internal convenience referenced in spec 8
// ("uuidFromBase(0x1101)"); exported as UUIDFromBase16.
func uuidFromBase(short uint16) UUID128 { return UUIDFromBase16(short) }

// ProfileDescriptor is one entry of an SDP record's profile descriptor
// list (spec 3): a 16-bit profile UUID split into a major.minor
// version.
type ProfileDescriptor struct {
	UUID  uint16
	Major uint8
	Minor uint8
}

// SDPResult is the semantic output of one SDP service record walk
// (spec 3, 4.6).
type SDPResult struct {
	ProtoUUIDs   []uint16
	ServiceUUIDs []UUID128
	ProfileDescs []ProfileDescriptor
	Port         uint16
	Name         string
	Desc         string
}

// UsesRFCOMM reports whether this record's protocol descriptor list
// named RFCOMM (0x0003), in which case Port is an 8-bit channel.
func (r SDPResult) UsesRFCOMM() bool {
	return containsUUID(r.ProtoUUIDs, constants.ProtoUUIDRFCOMM) && r.Port <= 0xFF
}

// UsesL2CAP reports whether this record's protocol descriptor list
// named L2CAP (0x0100), in which case Port is a 16-bit PSM.
func (r SDPResult) UsesL2CAP() bool {
	return containsUUID(r.ProtoUUIDs, constants.ProtoUUIDL2CAP)
}

func containsUUID(list []uint16, want uint16) bool {
	for _, u := range list {
		if u == want {
			return true
		}
	}
	return false
}
