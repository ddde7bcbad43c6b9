package ble

import (
	"fmt"
	"log/slog"
)

// ConnEventKind is the kind of a ConnEvent.
type ConnEventKind int

const (
	EventConnected ConnEventKind = iota + 1
	EventServicesReady
	EventDisconnected
	EventError
)

func (k ConnEventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventServicesReady:
		return "services-ready"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnEvent is the outcome of a link callback.
type ConnEvent struct {
	Kind    ConnEventKind
	Service Service // set for EventServicesReady
	Err     error   // set for EventError
}

// activeConnection is the single live link. gen identifies the attempt so
// callbacks from a superseded link can be told apart.
type activeConnection struct {
	gen        uint64
	link       Link
	device     Device
	subscribed map[string]boundCharacteristic // keyed by canonical UUID
}

// ConnectionManager owns the one active link. Like Scanner it is driven only
// from Monitor's event loop.
type ConnectionManager struct {
	adapter  Adapter
	gate     CapabilityGate
	identity DeviceIdentity

	// handler builds the callback sink for the link of a given generation.
	handler func(gen uint64) LinkHandler

	gen    uint64
	active *activeConnection
}

// NewConnectionManager creates a manager. handler is invoked once per
// connection attempt with that attempt's generation.
func NewConnectionManager(adapter Adapter, gate CapabilityGate, identity DeviceIdentity, handler func(gen uint64) LinkHandler) *ConnectionManager {
	if gate == nil {
		gate = GrantAll
	}
	return &ConnectionManager{
		adapter:  adapter,
		gate:     gate,
		identity: identity,
		handler:  handler,
	}
}

// Connect closes any existing link and starts a new one to d.
func (m *ConnectionManager) Connect(d Device) error {
	if !m.gate.Granted(CapabilityConnect) {
		return &CapabilityError{Capability: CapabilityConnect}
	}

	m.Close()

	m.gen++
	gen := m.gen
	link, err := m.adapter.Connect(d, m.handler(gen))
	if err != nil {
		return &LinkError{Op: "connect", Err: err}
	}
	m.active = &activeConnection{
		gen:        gen,
		link:       link,
		device:     d,
		subscribed: make(map[string]boundCharacteristic),
	}
	slog.Info("[BLE] connecting", "name", d.Name, "address", d.Address)
	return nil
}

// Current reports whether gen belongs to the live link.
func (m *ConnectionManager) Current(gen uint64) bool {
	return m.active != nil && m.active.gen == gen
}

// Active reports whether a link is held.
func (m *ConnectionManager) Active() bool {
	return m.active != nil
}

// Link returns the live link, or nil.
func (m *ConnectionManager) Link() Link {
	if m.active == nil {
		return nil
	}
	return m.active.link
}

// HandleConnectionState processes a connection state callback. ok is false
// when the callback belongs to a closed or superseded link.
func (m *ConnectionManager) HandleConnectionState(gen uint64, status Status, state LinkState) (ev ConnEvent, ok bool) {
	if !m.Current(gen) {
		slog.Debug("[BLE] dropping stale connection callback", "gen", gen, "state", state)
		return ConnEvent{}, false
	}

	if status != StatusSuccess {
		m.release(false)
		return ConnEvent{Kind: EventError, Err: &LinkError{Op: "connect", Status: status}}, true
	}

	switch state {
	case LinkConnected:
		if err := m.active.link.DiscoverServices(); err != nil {
			m.Close()
			return ConnEvent{Kind: EventError, Err: &LinkError{Op: "discover services", Err: err}}, true
		}
		return ConnEvent{Kind: EventConnected}, true
	default:
		m.release(false)
		return ConnEvent{Kind: EventDisconnected}, true
	}
}

// HandleServicesDiscovered processes the end of service discovery and looks
// up the target service.
func (m *ConnectionManager) HandleServicesDiscovered(gen uint64, status Status) (ev ConnEvent, ok bool) {
	if !m.Current(gen) {
		slog.Debug("[BLE] dropping stale discovery callback", "gen", gen)
		return ConnEvent{}, false
	}

	if status != StatusSuccess {
		m.Close()
		return ConnEvent{Kind: EventError, Err: &LinkError{Op: "discover services", Status: status}}, true
	}

	svc, found := m.active.link.Service(m.identity.ServiceUUID)
	if !found {
		m.Close()
		return ConnEvent{Kind: EventError, Err: fmt.Errorf("%w: %s", ErrServiceNotFound, m.identity.ServiceUUID)}, true
	}
	return ConnEvent{Kind: EventServicesReady, Service: svc}, true
}

// boundCharacteristic pairs a discovered characteristic with its spec.
type boundCharacteristic struct {
	spec CharacteristicSpec
	char Characteristic
}

// Characteristics looks up every target characteristic on svc. Missing ones
// are returned as ChannelErrors; the rest are returned for subscription.
func (m *ConnectionManager) Characteristics(svc Service) ([]boundCharacteristic, []error) {
	var (
		found []boundCharacteristic
		errs  []error
	)
	for _, spec := range m.identity.Characteristics {
		c, ok := svc.Characteristic(spec.UUID)
		if !ok {
			errs = append(errs, &ChannelError{Channel: spec.Channel})
			continue
		}
		found = append(found, boundCharacteristic{spec: spec, char: c})
	}
	return found, errs
}

// MarkSubscribed records that notifications for b are expected on the live
// link. Close turns them off again.
func (m *ConnectionManager) MarkSubscribed(b boundCharacteristic) {
	if m.active == nil {
		return
	}
	if u, err := canonicalUUID(b.spec.UUID); err == nil {
		m.active.subscribed[u] = b
	}
}

// ChannelFor maps a notification from link gen to a subscribed channel.
func (m *ConnectionManager) ChannelFor(gen uint64, charUUID string) (Channel, bool) {
	if !m.Current(gen) {
		return 0, false
	}
	u, err := canonicalUUID(charUUID)
	if err != nil {
		return 0, false
	}
	if _, ok := m.active.subscribed[u]; !ok {
		return 0, false
	}
	return m.identity.channelFor(u)
}

// Close turns off notifications on the live link, then releases it. It
// returns false when there was none.
func (m *ConnectionManager) Close() bool {
	return m.release(true)
}

// release drops the live link. unsubscribe is false when the link is already
// gone and nothing can be written to it.
func (m *ConnectionManager) release(unsubscribe bool) bool {
	if m.active == nil {
		return false
	}
	a := m.active
	m.active = nil
	if unsubscribe {
		for _, b := range a.subscribed {
			if err := (SubscriptionManager{}).Unsubscribe(a.link, b.spec, b.char); err != nil {
				slog.Debug("[BLE] unsubscribe", "channel", b.spec.Channel, "error", err)
			}
		}
	}
	if err := a.link.Close(); err != nil {
		slog.Warn("[BLE] close link", "address", a.device.Address, "error", err)
	}
	return true
}
