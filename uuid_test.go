package corenet

import "testing"

func TestUUIDFromBaseRoundTrip(t *testing.T) {
	u := uuidFromBase(0x1101)
	want := "00001101-0000-1000-8000-00805f9b34fb"
	if got := u.String(); got != want {
		t.Errorf("uuidFromBase(0x1101) = %s, want %s", got, want)
	}
}

func TestUUIDFromBase32(t *testing.T) {
	u := UUIDFromBase32(0x00011101)
	want := "00011101-0000-1000-8000-00805f9b34fb"
	if got := u.String(); got != want {
		t.Errorf("UUIDFromBase32 = %s, want %s", got, want)
	}
}

func TestSDPResultShape(t *testing.T) {
	rfcomm := SDPResult{ProtoUUIDs: []uint16{0x0003}, Port: 22}
	if !rfcomm.UsesRFCOMM() {
		t.Error("expected UsesRFCOMM() to be true")
	}
	if rfcomm.UsesL2CAP() {
		t.Error("expected UsesL2CAP() to be false")
	}

	l2cap := SDPResult{ProtoUUIDs: []uint16{0x0100}, Port: 4113}
	if !l2cap.UsesL2CAP() {
		t.Error("expected UsesL2CAP() to be true")
	}
}
