// Package btutils is the public Bluetooth discovery surface spec
// §4.6/§6 names as btutils::getPaired/btutils::sdpLookup. It is the
// one place allowed to import both the root corenet package and the
// internal/sdp and internal/bluetooth packages: internal/sdp defines
// its own local Record/UUID128 types precisely so it never has to
// import corenet, avoiding an import cycle with this package.
package btutils

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/corenet-go/corenet"
	"github.com/corenet-go/corenet/internal/bluetooth"
	"github.com/corenet-go/corenet/internal/delegate"
	"github.com/corenet-go/corenet/internal/executor"
	"github.com/corenet-go/corenet/internal/sdp"
)

// parseMAC parses a colon-separated Bluetooth MAC address, duplicated
// from the root package's unexported helper since this package cannot
// reach into corenet's internals and the root package doesn't export
// one (spec §3's Device.Address format for Bluetooth transports).
func parseMAC(mac string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("btutils: invalid MAC address %q", mac)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("btutils: invalid MAC address %q: %w", mac, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// sdpPSM is the well-known L2CAP PSM the SDP server listens on (spec
// §4.6: "libbluetooth's SDP APIs" on Linux resolve to exactly this
// protocol on the wire — a raw L2CAP connection on PSM 1 carrying
// SDP_ServiceSearchAttributeRequest/Response PDUs).
const sdpPSM = 0x0001

// GetPaired enumerates paired Bluetooth devices through the OS API
// (spec §4.6): BlueZ D-Bus on Linux, a platform stub elsewhere (see
// internal/bluetooth/paired_stub.go). Returned Devices have
// Type=ConnNone, a name, and a colon-separated MAC; callers choose
// RFCOMM or L2CAP at connection time.
func GetPaired(ctx context.Context) ([]corenet.Device, error) {
	enum, err := newEnumerator()
	if err != nil {
		return nil, corenet.WrapSystemError("getPaired", corenet.ErrTypeSystem, err)
	}
	if closer, ok := enum.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	devices, err := enum.Paired(ctx)
	if err != nil {
		return nil, corenet.WrapSystemError("getPaired", corenet.ErrTypeSystem, err)
	}

	out := make([]corenet.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, corenet.Device{Type: corenet.ConnNone, Name: d.Name, Address: d.MAC})
	}
	return out, nil
}

// SDPLookup performs a Service Discovery Protocol inquiry against
// address for the given service uuid (spec §4.6). flushCache is
// accepted for API parity with the original getaddrinfo-style caching
// knob but is a no-op here: spec.md's Non-goals exclude any
// name-service caching beyond what the OS provides, so there is no
// cache to flush.
func SDPLookup(ctx context.Context, ex *executor.Executor, address string, uuid corenet.UUID128, flushCache bool) ([]corenet.SDPResult, error) {
	client, err := delegate.NewBTClient(ex, false) // L2CAP
	if err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}
	defer client.Close(ctx)

	mac, err := parseMAC(address)
	if err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}
	if err := client.Connect(ctx, delegate.RemoteAddr{MAC: mac, Port: sdpPSM, IsBT: true}); err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}

	io := delegate.NewStreamIO(ex, client.Handle())
	req := buildServiceSearchAttributeRequest(uuid)
	if _, err := io.Send(ctx, req); err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}

	attrBytes, err := readAttributeList(ctx, io)
	if err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}
	// An empty attribute list means the server has no record matching
	// the search pattern: "service not found" is an empty result, not
	// an error (spec 4.6).
	if len(attrBytes) == 0 {
		return nil, nil
	}

	record, err := sdp.ParseServiceRecord(attrBytes)
	if err != nil {
		return nil, corenet.WrapSystemError("sdpLookup", corenet.ErrTypeSystem, err)
	}
	// A record missing the protocol descriptor list has no usable port
	// and is skipped (spec 4.6); an inquiry that turns up nothing is
	// reported as an empty list, not an error.
	if len(record.ProtoUUIDs) == 0 {
		return nil, nil
	}
	return []corenet.SDPResult{recordToResult(record)}, nil
}

func recordToResult(r sdp.Record) corenet.SDPResult {
	uuids := make([]corenet.UUID128, len(r.ServiceUUIDs))
	for i, u := range r.ServiceUUIDs {
		uuids[i] = corenet.UUID128(u)
	}
	descs := make([]corenet.ProfileDescriptor, len(r.ProfileDescs))
	for i, d := range r.ProfileDescs {
		descs[i] = corenet.ProfileDescriptor{UUID: d.UUID, Major: d.Major, Minor: d.Minor}
	}
	return corenet.SDPResult{
		ProtoUUIDs:   r.ProtoUUIDs,
		ServiceUUIDs: uuids,
		ProfileDescs: descs,
		Port:         r.Port,
		Name:         r.Name,
		Desc:         r.Desc,
	}
}

// buildServiceSearchAttributeRequest constructs a minimal
// SDP_ServiceSearchAttributeRequest PDU (SDP protocol, not BlueZ
// D-Bus): ServiceSearchPattern is a one-element UUID128 sequence,
// MaximumAttributeByteCount is maxed out, and the AttributeIDList
// requests the full 0x0000-0xFFFF range via a single attribute-range
// element, matching the wire format libbluetooth's sdp_service_search
// _attr_req builds.
func buildServiceSearchAttributeRequest(uuid corenet.UUID128) []byte {
	const pduServiceSearchAttributeRequest = 0x06
	const transactionID = 0x0001

	searchPattern := []byte{0x35, 17, 0x1c} // DES header + UUID128 element header
	searchPattern = append(searchPattern, uuid[:]...)

	attrRange := []byte{0x0A, 0x00, 0x00, 0xFF, 0xFF} // uint32 attribute range element
	attrList := append([]byte{0x35, byte(len(attrRange))}, attrRange...)

	params := append([]byte{}, searchPattern...)
	var maxBytes [2]byte
	binary.BigEndian.PutUint16(maxBytes[:], 0xFFFF)
	params = append(params, maxBytes[:]...)
	params = append(params, attrList...)
	params = append(params, 0x00) // no continuation state

	pdu := make([]byte, 0, 5+len(params))
	pdu = append(pdu, pduServiceSearchAttributeRequest)
	pdu = append(pdu, byte(transactionID>>8), byte(transactionID))
	pdu = append(pdu, byte(len(params)>>8), byte(len(params)))
	pdu = append(pdu, params...)
	return pdu
}

// readAttributeList reads an SDP_ServiceSearchAttributeResponse PDU
// and returns the AttributeList payload (a DES sequence suitable for
// internal/sdp.ParseServiceRecord). It ignores server-side
// continuation (a real device returning more than one response
// segment would need repeated requests; scoped out here as this
// module only ever issues one request per lookup).
func readAttributeList(ctx context.Context, io delegate.IODelegate) ([]byte, error) {
	header := make([]byte, 5)
	if err := readFull(ctx, io, header); err != nil {
		return nil, fmt.Errorf("sdp: read header: %w", err)
	}
	paramLen := int(binary.BigEndian.Uint16(header[3:5]))
	params := make([]byte, paramLen)
	if err := readFull(ctx, io, params); err != nil {
		return nil, fmt.Errorf("sdp: read params: %w", err)
	}
	if len(params) < 2 {
		return nil, fmt.Errorf("sdp: response too short")
	}
	attrByteCount := int(binary.BigEndian.Uint16(params[0:2]))
	if 2+attrByteCount > len(params) {
		return nil, fmt.Errorf("sdp: truncated attribute list")
	}
	return params[2 : 2+attrByteCount], nil
}

// readFull loops Recv until buf is completely filled, since an
// IODelegate's Recv has raw-stream semantics and may hand back fewer
// bytes than requested on any single call.
func readFull(ctx context.Context, io delegate.IODelegate, buf []byte) error {
	for total := 0; total < len(buf); {
		outcome, err := io.Recv(ctx, buf[total:])
		if err != nil {
			return err
		}
		if outcome.Closed || outcome.N == 0 {
			return fmt.Errorf("sdp: connection closed mid-read")
		}
		total += outcome.N
	}
	return nil
}

func newEnumerator() (bluetooth.Enumerator, error) {
	return newPlatformEnumerator()
}
