package btutils

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/corenet-go/corenet"
	"github.com/corenet-go/corenet/internal/delegate"
	"github.com/corenet-go/corenet/internal/sdp"
)

func TestParseMACRoundTrip(t *testing.T) {
	mac, err := parseMAC("01:02:03:04:05:06")
	if err != nil {
		t.Fatalf("parseMAC: %v", err)
	}
	want := [6]byte{1, 2, 3, 4, 5, 6}
	if mac != want {
		t.Errorf("expected %v, got %v", want, mac)
	}
	if _, err := parseMAC("bad"); err == nil {
		t.Error("expected error for malformed MAC")
	}
}

func TestBuildServiceSearchAttributeRequestWellFormed(t *testing.T) {
	uuid := corenet.UUIDFromBase16(0x1101)
	pdu := buildServiceSearchAttributeRequest(uuid)
	if pdu[0] != 0x06 {
		t.Errorf("expected PDU ID 0x06, got %#x", pdu[0])
	}
	paramLen := int(binary.BigEndian.Uint16(pdu[3:5]))
	if len(pdu) != 5+paramLen {
		t.Errorf("declared param length %d does not match actual PDU size %d", paramLen, len(pdu)-5)
	}
}

func TestReadAttributeListExtractsPayload(t *testing.T) {
	a, b := delegate.NewLoopbackPair()
	defer a.CloseLoopback()
	defer b.CloseLoopback()

	payload := []byte{0x35, 0x03, 0x09, 0x00, 0x01} // a trivial DES sequence

	go func() {
		var params []byte
		var countBytes [2]byte
		binary.BigEndian.PutUint16(countBytes[:], uint16(len(payload)))
		params = append(params, countBytes[:]...)
		params = append(params, payload...)
		params = append(params, 0x00)

		header := make([]byte, 5)
		header[0] = 0x07
		binary.BigEndian.PutUint16(header[1:3], 1)
		binary.BigEndian.PutUint16(header[3:5], uint16(len(params)))

		b.Send(context.Background(), header)
		b.Send(context.Background(), params)
	}()

	got, err := readAttributeList(context.Background(), a)
	if err != nil {
		t.Fatalf("readAttributeList: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("expected %d bytes, got %d", len(payload), len(got))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("payload mismatch at %d: want %#x got %#x", i, payload[i], got[i])
		}
	}
}

func TestRecordToResultConvertsTypes(t *testing.T) {
	r := sdp.Record{
		ProtoUUIDs:   []uint16{0x0003},
		ServiceUUIDs: []sdp.UUID128{{0x01}},
		ProfileDescs: []sdp.ProfileDescriptor{{UUID: 0x1101, Major: 1, Minor: 0}},
		Port:         3,
		Name:         "Serial Port",
	}
	result := recordToResult(r)
	if result.Port != 3 || result.Name != "Serial Port" {
		t.Errorf("unexpected result: %+v", result)
	}
	if !result.UsesRFCOMM() {
		t.Error("expected UsesRFCOMM() to be true")
	}
}
