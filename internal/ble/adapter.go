// Package ble implements the central-role client for the Pulse Oximeter ESP32
// peripheral: adapter readiness, name-filtered scanning, the single GATT link,
// notification subscription and dispatch of readings to a display sink.
//
// All state transitions happen on one goroutine owned by Monitor. Radio
// callbacks are converted into events and posted to that goroutine.
package ble

import "context"

// Pulse Oximeter ESP32 GATT layout.
const (
	DeviceName       = "Pulse Oximeter ESP32"
	ServiceUUID      = "13f7b509-a5e3-4469-9308-4b219e12c53b"
	HeartRateUUID    = "17c0efa6-c395-4294-b463-5c6cd560bf91"
	OxygenUUID       = "63438932-e944-4ba5-a56a-2deb646a5cd2"
	ClientConfigUUID = "00002902-0000-1000-8000-00805f9b34fb"
)

// EnableNotificationValue is written to the client characteristic
// configuration descriptor to turn notifications on.
var EnableNotificationValue = []byte{0x01, 0x00}

// DisableNotificationValue turns notifications off again.
var DisableNotificationValue = []byte{0x00, 0x00}

// Status is the result code the radio stack attaches to link callbacks.
// Zero is success; anything else is stack specific.
type Status int

// StatusSuccess mirrors GATT_SUCCESS.
const StatusSuccess Status = 0

// LinkState is the connection state reported by the radio stack.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnected
)

func (s LinkState) String() string {
	if s == LinkConnected {
		return "connected"
	}
	return "disconnected"
}

// Device is one advertisement match returned by a scan.
type Device struct {
	// Name is the advertised local name, empty when the advertisement has none.
	Name    string
	Address string
	RSSI    int

	// ref is the backend's connectable handle.
	ref any
}

// Descriptor is a GATT descriptor on a discovered characteristic.
type Descriptor interface {
	UUID() string
	// Write sends value to the peripheral. A nil error means the write was
	// issued, not that the peripheral acknowledged it.
	Write(value []byte) error
}

// Characteristic is a discovered GATT characteristic.
type Characteristic interface {
	UUID() string
	// Descriptor finds a descriptor by UUID.
	Descriptor(uuid string) (Descriptor, bool)
}

// Service is a discovered GATT service.
type Service interface {
	UUID() string
	// Characteristic finds a characteristic by UUID.
	Characteristic(uuid string) (Characteristic, bool)
}

// Link is one GATT connection attempt. Close must be safe to call more than
// once and must stop further callbacks from being delivered.
type Link interface {
	// DiscoverServices starts service enumeration; completion is reported
	// through LinkHandler.OnServicesDiscovered.
	DiscoverServices() error
	// Service returns a discovered service by UUID.
	Service(uuid string) (Service, bool)
	// SetNotify enables local delivery of notifications for c.
	SetNotify(c Characteristic, enable bool) error
	Close() error
}

// LinkHandler receives the asynchronous callbacks of a Link.
type LinkHandler interface {
	OnConnectionStateChange(status Status, state LinkState)
	OnServicesDiscovered(status Status)
	OnNotification(charUUID string, payload []byte)
}

// ScanHandler receives the asynchronous callbacks of a scan.
type ScanHandler interface {
	OnScanResult(d Device)
	OnScanFailed(code int)
}

// Adapter abstracts the local BLE radio for testing.
type Adapter interface {
	// Present reports whether a BLE radio exists at all.
	Present() bool
	// Powered reports whether the radio is switched on.
	Powered() bool
	// RequestEnable asks the system to power the radio on. It blocks until
	// the request is answered and returns ErrRadioDeclined when refused.
	RequestEnable(ctx context.Context) error
	// StartScan begins discovery. Results arrive on h until StopScan.
	StartScan(h ScanHandler) error
	StopScan() error
	// Connect starts a link to d. The returned Link exists immediately; the
	// outcome arrives through h.
	Connect(d Device, h LinkHandler) (Link, error)
}
