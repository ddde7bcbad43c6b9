//go:build linux

package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// BlueZ D-Bus names.
const (
	bluezBus      = "org.bluez"
	bluezAdapter1 = "org.bluez.Adapter1"
)

func (a *TinyGoAdapter) adapterObject() (dbus.BusObject, error) {
	// SystemBus is a shared connection and must not be closed.
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("ble: system bus: %w", err)
	}
	return conn.Object(bluezBus, dbus.ObjectPath("/org/bluez/"+a.hci)), nil
}

func getAdapterProperty[T any](obj dbus.BusObject, property string) (T, error) {
	var zero T
	variant, err := obj.GetProperty(bluezAdapter1 + "." + property)
	if err != nil {
		return zero, err
	}
	val, ok := variant.Value().(T)
	if !ok {
		return zero, fmt.Errorf("property %s.%s has unexpected type %T", bluezAdapter1, property, variant.Value())
	}
	return val, nil
}

// Present reports whether BlueZ knows the configured adapter.
func (a *TinyGoAdapter) Present() bool {
	obj, err := a.adapterObject()
	if err != nil {
		slog.Warn("[BLE] adapter lookup", "adapter", a.hci, "error", err)
		return false
	}
	if _, err := getAdapterProperty[string](obj, "Address"); err != nil {
		slog.Debug("[BLE] adapter not found", "adapter", a.hci, "error", err)
		return false
	}
	return true
}

// Powered reads org.bluez.Adapter1.Powered.
func (a *TinyGoAdapter) Powered() bool {
	obj, err := a.adapterObject()
	if err != nil {
		return false
	}
	powered, err := getAdapterProperty[bool](obj, "Powered")
	if err != nil {
		slog.Warn("[BLE] read Powered", "adapter", a.hci, "error", err)
		return false
	}
	return powered
}

// RequestEnable sets Powered=true. BlueZ refuses when the radio is blocked
// (rfkill) or the caller lacks permission; both count as declined.
func (a *TinyGoAdapter) RequestEnable(ctx context.Context) error {
	obj, err := a.adapterObject()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}

	call := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Set", 0,
		bluezAdapter1, "Powered", dbus.MakeVariant(true))
	if call.Err != nil {
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) {
			return fmt.Errorf("%w: %s", ErrRadioDeclined, dbusErr.Name)
		}
		return fmt.Errorf("%w: %v", ErrRadioDeclined, call.Err)
	}
	slog.Info("[BLE] adapter powered on", "adapter", a.hci)
	return nil
}
