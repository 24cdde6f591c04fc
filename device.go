package corenet

import "fmt"

// ConnectionType identifies the transport a Device describes (spec 3).
type ConnectionType int

const (
	ConnNone ConnectionType = iota
	ConnTCP
	ConnUDP
	ConnL2CAP
	ConnRFCOMM
)

func (t ConnectionType) String() string {
	switch t {
	case ConnTCP:
		return "tcp"
	case ConnUDP:
		return "udp"
	case ConnL2CAP:
		return "l2cap"
	case ConnRFCOMM:
		return "rfcomm"
	default:
		return "none"
	}
}

// IsBluetooth reports whether t is one of the two Bluetooth transports.
func (t ConnectionType) IsBluetooth() bool {
	return t == ConnL2CAP || t == ConnRFCOMM
}

// IsInternet reports whether t is one of the two IP transports.
func (t ConnectionType) IsInternet() bool {
	return t == ConnTCP || t == ConnUDP
}

// Device is an immutable remote endpoint descriptor (spec 3). Address is
// a numeric IP for Internet types and a colon-separated MAC for
// Bluetooth types. Port is a TCP/UDP port, an L2CAP PSM, or an RFCOMM
// channel depending on Type.
type Device struct {
	Type    ConnectionType
	Name    string
	Address string
	Port    uint16
}

func (d Device) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s(%s:%d %q)", d.Type, d.Address, d.Port, d.Name)
	}
	return fmt.Sprintf("%s(%s:%d)", d.Type, d.Address, d.Port)
}

// NewIPDevice builds a Device for a TCP or UDP endpoint.
func NewIPDevice(typ ConnectionType, address string, port uint16) Device {
	return Device{Type: typ, Address: address, Port: port}
}

// NewBluetoothDevice builds a Device for an RFCOMM or L2CAP endpoint.
// port is a channel number for RFCOMM and a PSM for L2CAP.
func NewBluetoothDevice(typ ConnectionType, name, mac string, port uint16) Device {
	return Device{Type: typ, Name: name, Address: mac, Port: port}
}
