package ble

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// statusGATTError is reported when the stack fails a link operation without
// a more specific code (GATT_ERROR).
const statusGATTError Status = 0x85

// TinyGoAdapter implements Adapter on top of tinygo-org/bluetooth. Blocking
// library calls run on their own goroutines and report back through the
// handlers, so no callback is ever invoked from inside an Adapter method.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter
	hci     string // BlueZ adapter id, used on Linux only

	// mu protects enabled and links.
	mu      sync.Mutex
	enabled bool
	links   map[string]*tinyGoLink // keyed by device address
}

// NewTinyGoAdapter wraps the default system adapter. hci names the BlueZ
// adapter on Linux (for example "hci0") and is ignored elsewhere.
func NewTinyGoAdapter(hci string) *TinyGoAdapter {
	if hci == "" {
		hci = "hci0"
	}
	return &TinyGoAdapter{
		adapter: bluetooth.DefaultAdapter,
		hci:     hci,
		links:   make(map[string]*tinyGoLink),
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

// enable brings up the library's adapter once and installs the disconnect
// handler. A failed attempt is retried on the next call.
func (a *TinyGoAdapter) enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return nil
	}
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// The library reports peripheral-initiated disconnects here
	// (connected=false) rather than on the device.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		a.mu.Lock()
		link, ok := a.links[device.Address.String()]
		a.mu.Unlock()
		if ok {
			link.remoteDisconnected()
		}
	})
	a.enabled = true
	return nil
}

func (a *TinyGoAdapter) StartScan(h ScanHandler) error {
	if err := a.enable(); err != nil {
		return err
	}
	go func() {
		err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			h.OnScanResult(Device{
				Name:    result.LocalName(),
				Address: result.Address.String(),
				RSSI:    int(result.RSSI),
				ref:     result.Address,
			})
		})
		if err != nil {
			slog.Warn("[BLE] scan ended with error", "error", err)
			h.OnScanFailed(int(statusGATTError))
		}
	}()
	return nil
}

func (a *TinyGoAdapter) StopScan() error {
	return a.adapter.StopScan()
}

func (a *TinyGoAdapter) Connect(d Device, h LinkHandler) (Link, error) {
	addr, ok := d.ref.(bluetooth.Address)
	if !ok {
		return nil, fmt.Errorf("ble: device %q was not discovered by this adapter", d.Address)
	}
	if err := a.enable(); err != nil {
		return nil, err
	}

	link := &tinyGoLink{
		owner:    a,
		key:      addr.String(),
		handler:  h,
		services: make(map[string]*tinyGoService),
	}
	a.mu.Lock()
	a.links[link.key] = link
	a.mu.Unlock()

	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		link.connected(device, err)
	}()
	return link, nil
}

func (a *TinyGoAdapter) forget(l *tinyGoLink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.links[l.key] == l {
		delete(a.links, l.key)
	}
}

type tinyGoLink struct {
	owner   *TinyGoAdapter
	key     string
	handler LinkHandler

	mu       sync.Mutex
	device   *bluetooth.Device
	closed   bool
	services map[string]*tinyGoService
}

// deliver runs fn unless the link has been closed.
func (l *tinyGoLink) deliver(fn func(LinkHandler)) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if !closed {
		fn(l.handler)
	}
}

func (l *tinyGoLink) connected(device bluetooth.Device, err error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		if err == nil {
			// Closed while the connect was in flight.
			_ = device.Disconnect()
		}
		return
	}
	if err != nil {
		l.mu.Unlock()
		slog.Warn("[BLE] connect failed", "address", l.key, "error", err)
		l.deliver(func(h LinkHandler) { h.OnConnectionStateChange(statusGATTError, LinkDisconnected) })
		return
	}
	l.device = &device
	l.mu.Unlock()
	l.deliver(func(h LinkHandler) { h.OnConnectionStateChange(StatusSuccess, LinkConnected) })
}

func (l *tinyGoLink) remoteDisconnected() {
	l.deliver(func(h LinkHandler) { h.OnConnectionStateChange(StatusSuccess, LinkDisconnected) })
}

func (l *tinyGoLink) DiscoverServices() error {
	l.mu.Lock()
	device := l.device
	l.mu.Unlock()
	if device == nil {
		return errors.New("ble: discover services: not connected")
	}

	go func() {
		svcs, err := device.DiscoverServices(nil)
		if err != nil {
			slog.Warn("[BLE] discover services", "address", l.key, "error", err)
			l.deliver(func(h LinkHandler) { h.OnServicesDiscovered(statusGATTError) })
			return
		}

		found := make(map[string]*tinyGoService, len(svcs))
		for i := range svcs {
			svc := &tinyGoService{
				uuid:  svcs[i].UUID().String(),
				chars: make(map[string]*tinyGoCharacteristic),
			}
			chars, err := svcs[i].DiscoverCharacteristics(nil)
			if err != nil {
				slog.Warn("[BLE] discover characteristics", "service", svc.uuid, "error", err)
			}
			for j := range chars {
				c := &tinyGoCharacteristic{
					link: l,
					char: chars[j],
					uuid: chars[j].UUID().String(),
				}
				svc.chars[normalizeUUID(c.uuid)] = c
			}
			found[normalizeUUID(svc.uuid)] = svc
		}

		l.mu.Lock()
		l.services = found
		l.mu.Unlock()
		l.deliver(func(h LinkHandler) { h.OnServicesDiscovered(StatusSuccess) })
	}()
	return nil
}

func (l *tinyGoLink) Service(uuid string) (Service, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[normalizeUUID(uuid)]
	if !ok {
		return nil, false
	}
	return svc, true
}

func (l *tinyGoLink) SetNotify(c Characteristic, enable bool) error {
	tc, ok := c.(*tinyGoCharacteristic)
	if !ok || tc.link != l {
		return fmt.Errorf("ble: characteristic %s does not belong to this link", c.UUID())
	}
	tc.mu.Lock()
	tc.notify = enable
	tc.mu.Unlock()
	return nil
}

func (l *tinyGoLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	device := l.device
	l.device = nil
	l.mu.Unlock()

	l.owner.forget(l)
	if device == nil {
		return nil
	}
	return device.Disconnect()
}

type tinyGoService struct {
	uuid  string
	chars map[string]*tinyGoCharacteristic
}

func (s *tinyGoService) UUID() string { return s.uuid }

func (s *tinyGoService) Characteristic(uuid string) (Characteristic, bool) {
	c, ok := s.chars[normalizeUUID(uuid)]
	if !ok {
		return nil, false
	}
	return c, true
}

type tinyGoCharacteristic struct {
	link *tinyGoLink
	char bluetooth.DeviceCharacteristic
	uuid string

	mu     sync.Mutex
	notify bool
}

func (c *tinyGoCharacteristic) UUID() string { return c.uuid }

// Descriptor only knows the client characteristic configuration descriptor:
// the library does not enumerate descriptors and writes the CCCD itself when
// notifications are enabled.
func (c *tinyGoCharacteristic) Descriptor(uuid string) (Descriptor, bool) {
	if !sameUUID(uuid, ClientConfigUUID) {
		return nil, false
	}
	return &tinyGoConfigDescriptor{char: c}, true
}

type tinyGoConfigDescriptor struct {
	char *tinyGoCharacteristic
}

func (d *tinyGoConfigDescriptor) UUID() string { return ClientConfigUUID }

func (d *tinyGoConfigDescriptor) Write(value []byte) error {
	c := d.char
	c.mu.Lock()
	notify := c.notify
	c.mu.Unlock()

	switch {
	case bytes.Equal(value, EnableNotificationValue):
		if !notify {
			return errors.New("ble: notifications not enabled locally")
		}
		return c.char.EnableNotifications(func(buf []byte) {
			c.link.deliver(func(h LinkHandler) { h.OnNotification(c.uuid, buf) })
		})
	case bytes.Equal(value, DisableNotificationValue):
		return c.char.EnableNotifications(nil)
	default:
		return fmt.Errorf("ble: unsupported configuration value %x", value)
	}
}

// normalizeUUID returns the canonical form of s, or s unchanged when it does
// not parse.
func normalizeUUID(s string) string {
	if u, err := canonicalUUID(s); err == nil {
		return u
	}
	return s
}
