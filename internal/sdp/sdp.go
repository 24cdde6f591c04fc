// Package sdp decodes Bluetooth Service Discovery Protocol attribute
// streams (spec 4.6): a Data Element Sequence (DES) TLV encoding of a
// service record's protocol descriptor list, service class UUIDs,
// profile descriptors, and textual attributes.
//
// The element walk below follows the same manual
// decode-one-field-at-a-time discipline as the teacher's
// internal/uapi/marshal.go, adapted from a little-endian fixed-struct
// unmarshal to SDP's variable-length, big-endian DES format.
package sdp

import (
	"encoding/binary"
	"fmt"

	"github.com/corenet-go/corenet/internal/constants"
)

// UUID128 is this package's own copy of the root corenet.UUID128
// shape: internal/sdp does not import the root package, so Record is
// converted to corenet.SDPResult one level up, in the btutils package.
type UUID128 [16]byte

// ProfileDescriptor mirrors corenet.ProfileDescriptor.
type ProfileDescriptor struct {
	UUID  uint16
	Major uint8
	Minor uint8
}

// Record is the decoded form of one SDP service record (spec 4.6).
type Record struct {
	ProtoUUIDs   []uint16
	ServiceUUIDs []UUID128
	ProfileDescs []ProfileDescriptor
	Port         uint16
	Name         string
	Desc         string
}

func uuidFromBase16(short uint16) UUID128 {
	u := UUID128(constants.BluetoothBaseUUID)
	u[2] = byte(short >> 8)
	u[3] = byte(short)
	return u
}

func uuidFromBase32(short uint32) UUID128 {
	u := UUID128(constants.BluetoothBaseUUID)
	u[0] = byte(short >> 24)
	u[1] = byte(short >> 16)
	u[2] = byte(short >> 8)
	u[3] = byte(short)
	return u
}

// SDP attribute IDs (Bluetooth Assigned Numbers).
const (
	attrServiceClassIDList          = 0x0001
	attrProtocolDescriptorList      = 0x0004
	attrBluetoothProfileDescList    = 0x0009
	attrServiceName                 = 0x0100
	attrServiceDescription          = 0x0101
)

// Data element type/size descriptor: top 5 bits are type, bottom 3
// bits are size index (or an explicit additional-length encoding for
// variable-length types).
const (
	deTypeNil      = 0
	deTypeUint     = 1
	deTypeUUID     = 3
	deTypeText     = 4
	deTypeBoolean  = 5
	deTypeSequence = 6
	deTypeAlt      = 7
)

type element struct {
	typ   uint8
	raw   []byte     // payload bytes for scalar types
	elems []element  // children for Sequence/Alternative
}

// ParseServiceRecord decodes one SDP service record's attribute list
// (the byte stream SDP_ServiceAttributeResponse carries, beginning
// with the record's own outer Data Element Sequence) into a Record.
func ParseServiceRecord(data []byte) (Record, error) {
	el, _, err := decodeElement(data)
	if err != nil {
		return Record{}, fmt.Errorf("sdp: decode record: %w", err)
	}
	if el.typ != deTypeSequence {
		return Record{}, fmt.Errorf("sdp: expected outer sequence, got type %d", el.typ)
	}

	var out Record
	// Attribute lists alternate attribute-id (uint16) / value.
	for i := 0; i+1 < len(el.elems); i += 2 {
		idEl := el.elems[i]
		valEl := el.elems[i+1]
		if idEl.typ != deTypeUint || len(idEl.raw) != 2 {
			continue
		}
		attrID := binary.BigEndian.Uint16(idEl.raw)
		switch attrID {
		case attrServiceClassIDList:
			out.ServiceUUIDs = collectUUIDs(valEl)
		case attrProtocolDescriptorList:
			protos, port := parseProtocolDescriptorList(valEl)
			out.ProtoUUIDs = protos
			out.Port = port
		case attrBluetoothProfileDescList:
			out.ProfileDescs = parseProfileDescriptors(valEl)
		case attrServiceName:
			out.Name = string(valEl.raw)
		case attrServiceDescription:
			out.Desc = string(valEl.raw)
		}
	}
	return out, nil
}

// decodeElement reads one data element starting at data[0], returning
// it and the number of bytes consumed.
func decodeElement(data []byte) (element, int, error) {
	if len(data) < 1 {
		return element{}, 0, fmt.Errorf("sdp: truncated element header")
	}
	typ := data[0] >> 3
	sizeIdx := data[0] & 0x7

	headerLen := 1
	var length int
	switch sizeIdx {
	case 0:
		length = fixedSizeFor(typ)
	case 1:
		length = 2
	case 2:
		length = 4
	case 3:
		length = 8
	case 4:
		length = 16
	case 5:
		if len(data) < 2 {
			return element{}, 0, fmt.Errorf("sdp: truncated 1-byte length")
		}
		length = int(data[1])
		headerLen = 2
	case 6:
		if len(data) < 3 {
			return element{}, 0, fmt.Errorf("sdp: truncated 2-byte length")
		}
		length = int(binary.BigEndian.Uint16(data[1:3]))
		headerLen = 3
	case 7:
		if len(data) < 5 {
			return element{}, 0, fmt.Errorf("sdp: truncated 4-byte length")
		}
		length = int(binary.BigEndian.Uint32(data[1:5]))
		headerLen = 5
	}

	total := headerLen + length
	if total > len(data) {
		return element{}, 0, fmt.Errorf("sdp: element length %d exceeds buffer", total)
	}
	payload := data[headerLen:total]

	el := element{typ: typ, raw: payload}
	if typ == deTypeSequence || typ == deTypeAlt {
		children, err := decodeAll(payload)
		if err != nil {
			return element{}, 0, err
		}
		el.elems = children
	}
	return el, total, nil
}

func decodeAll(data []byte) ([]element, error) {
	var out []element
	for len(data) > 0 {
		el, n, err := decodeElement(data)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
		data = data[n:]
	}
	return out, nil
}

func fixedSizeFor(typ uint8) int {
	switch typ {
	case deTypeNil:
		return 0
	case deTypeBoolean:
		return 1
	default:
		return 1 // uint/int "size index 0" is a single byte per the spec's 8-bit variants
	}
}

// collectUUIDs walks a sequence of UUID elements (16-, 32-, or
// 128-bit) and expands the short forms onto the Bluetooth base UUID.
func collectUUIDs(seq element) []UUID128 {
	var out []UUID128
	for _, el := range seq.elems {
		if el.typ != deTypeUUID {
			continue
		}
		switch len(el.raw) {
		case 2:
			out = append(out, uuidFromBase16(binary.BigEndian.Uint16(el.raw)))
		case 4:
			out = append(out, uuidFromBase32(binary.BigEndian.Uint32(el.raw)))
		case 16:
			var u UUID128
			copy(u[:], el.raw)
			out = append(out, u)
		}
	}
	return out
}

// parseProtocolDescriptorList walks ProtocolDescriptorList's sequence
// of (protocol UUID, params...) sequences and extracts the RFCOMM
// channel or L2CAP PSM parameter alongside the UUID list (spec 4.6).
func parseProtocolDescriptorList(seq element) ([]uint16, uint16) {
	var protoUUIDs []uint16
	var port uint16

	for _, protoSeq := range seq.elems {
		if protoSeq.typ != deTypeSequence || len(protoSeq.elems) == 0 {
			continue
		}
		uuidEl := protoSeq.elems[0]
		if uuidEl.typ != deTypeUUID {
			continue
		}
		var id uint16
		switch len(uuidEl.raw) {
		case 2:
			id = binary.BigEndian.Uint16(uuidEl.raw)
		case 4:
			id = uint16(binary.BigEndian.Uint32(uuidEl.raw))
		}
		protoUUIDs = append(protoUUIDs, id)

		if len(protoSeq.elems) < 2 {
			continue
		}
		param := protoSeq.elems[1]
		switch id {
		case constants.ProtoUUIDRFCOMM:
			if len(param.raw) >= 1 {
				port = uint16(param.raw[len(param.raw)-1])
			}
		case constants.ProtoUUIDL2CAP:
			if len(param.raw) >= 2 {
				port = binary.BigEndian.Uint16(param.raw[len(param.raw)-2:])
			}
		}
	}
	return protoUUIDs, port
}

// parseProfileDescriptors walks BluetoothProfileDescriptorList's
// sequence of (UUID, version uint16) pairs.
func parseProfileDescriptors(seq element) []ProfileDescriptor {
	var out []ProfileDescriptor
	for _, profSeq := range seq.elems {
		if profSeq.typ != deTypeSequence || len(profSeq.elems) < 2 {
			continue
		}
		uuidEl, verEl := profSeq.elems[0], profSeq.elems[1]
		var id uint16
		switch len(uuidEl.raw) {
		case 2:
			id = binary.BigEndian.Uint16(uuidEl.raw)
		case 4:
			id = uint16(binary.BigEndian.Uint32(uuidEl.raw))
		}
		var major, minor uint8
		if len(verEl.raw) == 2 {
			major = verEl.raw[0]
			minor = verEl.raw[1]
		}
		out = append(out, ProfileDescriptor{UUID: id, Major: major, Minor: minor})
	}
	return out
}
