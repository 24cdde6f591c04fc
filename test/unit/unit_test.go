//go:build !integration

// Package unit holds cross-package tests for invariants that span more
// than one internal package, so they don't fit naturally inside any
// single package's own _test.go file. These run without any real OS
// socket or kernel privilege.
package unit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corenet-go/corenet"
	"github.com/corenet-go/corenet/internal/delegate"
	"github.com/corenet-go/corenet/internal/shandle"
)

// TestUUIDFromBase16RoundTrip verifies spec 8's "UUID round-trip"
// property: uuidFromBase(0x1101) expands to the canonical Serial Port
// Profile UUID over the Bluetooth base UUID.
func TestUUIDFromBase16RoundTrip(t *testing.T) {
	u := corenet.UUIDFromBase16(0x1101)
	assert.Equal(t, "00001101-0000-1000-8000-00805f9b34fb", u.String())
}

// TestHandleCloseIsIdempotent verifies spec 8's "Handle uniqueness"
// property: repeated Close calls invoke the underlying release exactly
// once.
func TestHandleCloseIsIdempotent(t *testing.T) {
	closes := 0
	h := shandle.New(42, func(raw uintptr) error {
		closes++
		return nil
	})

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 1, closes)
}

// TestHandleMoveSafety verifies spec 8's "Move safety" property: after
// Take transfers ownership out of a Handle, the source no longer owns
// (and will not close) the underlying resource.
func TestHandleMoveSafety(t *testing.T) {
	closes := 0
	h := shandle.New(7, func(raw uintptr) error {
		closes++
		return nil
	})

	raw := h.Take()
	assert.Equal(t, uintptr(7), raw)
	assert.False(t, h.Valid())

	// The source is left closed without invoking its closer -- the
	// caller that took raw is now responsible for releasing it.
	require.NoError(t, h.Close())
	assert.Equal(t, 0, closes)
}

// TestSystemErrorCancellationClassification verifies spec 8's
// cancellation property at the error-taxonomy level: a cancellation
// error reports IsCanceled()==true and IsFatal(code)==true.
func TestSystemErrorCancellationClassification(t *testing.T) {
	err := corenet.NewCancellationError("recv")
	assert.True(t, err.IsCanceled())
	assert.True(t, corenet.IsCanceled(err))
	assert.True(t, corenet.IsFatal(err.Code))
}

// TestSDPResultProtocolClassification verifies spec 8's "SDP shape"
// property: a record naming RFCOMM in its protocol descriptor list
// reports UsesRFCOMM with an 8-bit channel, one naming L2CAP reports
// UsesL2CAP with a 16-bit PSM.
func TestSDPResultProtocolClassification(t *testing.T) {
	rfcomm := corenet.SDPResult{ProtoUUIDs: []uint16{0x0003}, Port: 5}
	assert.True(t, rfcomm.UsesRFCOMM())
	assert.False(t, rfcomm.UsesL2CAP())

	l2cap := corenet.SDPResult{ProtoUUIDs: []uint16{0x0100}, Port: 0x1001}
	assert.True(t, l2cap.UsesL2CAP())
	assert.False(t, l2cap.UsesRFCOMM())
}

// TestLoopbackEchoRoundTrip exercises spec 8's "Echo round-trip"
// property at the IODelegate level, without a real socket: whatever
// bytes go in one end of a Loopback pair come out the other unchanged.
func TestLoopbackEchoRoundTrip(t *testing.T) {
	a, b := delegate.NewLoopbackPair()
	defer a.CloseLoopback()
	defer b.CloseLoopback()

	want := []byte("the quick brown fox")
	ctx := context.Background()
	n, err := a.Send(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	outcome, err := b.Recv(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, want, got[:outcome.N])
}

// TestLoopbackOrderlyClose verifies spec 8's "Orderly close" property
// at the IODelegate level: once one end closes, the peer's Recv
// returns immediately instead of blocking forever.
func TestLoopbackOrderlyClose(t *testing.T) {
	a, b := delegate.NewLoopbackPair()
	a.CloseLoopback()

	buf := make([]byte, 16)
	outcome, err := b.Recv(context.Background(), buf)
	require.NoError(t, err)
	assert.True(t, outcome.Closed)
}
