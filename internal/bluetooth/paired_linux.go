//go:build linux

package bluetooth

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// objectManager is BlueZ's org.freedesktop.DBus.ObjectManager return
// shape: object path -> interface name -> property name -> value.
type objectManager = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZEnumerator lists paired devices via BlueZ's D-Bus API, the
// same GetManagedObjects/org.bluez.Device1 walk the example pack's
// connmgr Mgr interface is built around.
type BlueZEnumerator struct {
	conn *dbus.Conn
}

// NewBlueZEnumerator connects to the system bus, where bluetoothd
// publishes org.bluez.
func NewBlueZEnumerator() (*BlueZEnumerator, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluetooth: connect system bus: %w", err)
	}
	return &BlueZEnumerator{conn: conn}, nil
}

func (e *BlueZEnumerator) Close() error {
	return e.conn.Close()
}

func (e *BlueZEnumerator) Paired(ctx context.Context) ([]PairedDevice, error) {
	obj := e.conn.Object("org.bluez", dbus.ObjectPath("/"))
	var managed objectManager
	call := obj.CallWithContext(ctx, "org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if err := call.Store(&managed); err != nil {
		return nil, fmt.Errorf("bluetooth: GetManagedObjects: %w", err)
	}

	var out []PairedDevice
	for _, ifaces := range managed {
		props, ok := ifaces["org.bluez.Device1"]
		if !ok {
			continue
		}
		paired, _ := props["Paired"].Value().(bool)
		if !paired {
			continue
		}
		dev := PairedDevice{}
		if v, ok := props["Address"].Value().(string); ok {
			dev.MAC = v
		}
		if v, ok := props["Name"].Value().(string); ok {
			dev.Name = v
		}
		if v, ok := props["Alias"].Value().(string); ok {
			dev.Alias = v
		}
		out = append(out, dev)
	}
	return out, nil
}

var _ Enumerator = (*BlueZEnumerator)(nil)
