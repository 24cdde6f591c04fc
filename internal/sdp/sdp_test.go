package sdp

import "testing"

// Minimal DES (Data Element Sequence) builders, used only to
// construct fixtures for ParseServiceRecord -- a real record comes
// off the wire from SDP_ServiceAttributeResponse.
func deUUID16(v uint16) []byte {
	return []byte{(deTypeUUID << 3) | 1, byte(v >> 8), byte(v)}
}

func deUint8(v uint8) []byte {
	return []byte{(deTypeUint << 3) | 0, v}
}

func deUint16(v uint16) []byte {
	return []byte{(deTypeUint << 3) | 1, byte(v >> 8), byte(v)}
}

func deText(s string) []byte {
	b := []byte{(deTypeText << 3) | 5, byte(len(s))}
	return append(b, s...)
}

func deSeq(children ...[]byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	return append([]byte{(deTypeSequence << 3) | 5, byte(len(payload))}, payload...)
}

func TestParseServiceRecordRFCOMM(t *testing.T) {
	record := deSeq(
		deUint16(0x0001), deSeq(deUUID16(0x1101)), // ServiceClassIDList: SPP
		deUint16(0x0004), deSeq( // ProtocolDescriptorList
			deSeq(deUUID16(0x0100)),         // L2CAP
			deSeq(deUUID16(0x0003), deUint8(22)), // RFCOMM channel 22
		),
		deUint16(0x0100), deText("Serial Port"),
	)

	rec, err := ParseServiceRecord(record)
	if err != nil {
		t.Fatalf("ParseServiceRecord: %v", err)
	}
	if len(rec.ServiceUUIDs) != 1 {
		t.Fatalf("expected 1 service UUID, got %d", len(rec.ServiceUUIDs))
	}
	want := uuidFromBase16(0x1101)
	if rec.ServiceUUIDs[0] != want {
		t.Errorf("expected SPP UUID %x, got %x", want, rec.ServiceUUIDs[0])
	}
	if rec.Port != 22 {
		t.Errorf("expected RFCOMM channel 22, got %d", rec.Port)
	}
	if rec.Name != "Serial Port" {
		t.Errorf("expected name %q, got %q", "Serial Port", rec.Name)
	}
	foundRFCOMM := false
	for _, id := range rec.ProtoUUIDs {
		if id == 0x0003 {
			foundRFCOMM = true
		}
	}
	if !foundRFCOMM {
		t.Error("expected RFCOMM (0x0003) in ProtoUUIDs")
	}
}

func TestParseServiceRecordL2CAP(t *testing.T) {
	record := deSeq(
		deUint16(0x0004), deSeq(
			deSeq(deUUID16(0x0100), deUint16(4113)), // L2CAP PSM 4113
		),
	)

	rec, err := ParseServiceRecord(record)
	if err != nil {
		t.Fatalf("ParseServiceRecord: %v", err)
	}
	if rec.Port != 4113 {
		t.Errorf("expected PSM 4113, got %d", rec.Port)
	}
}
