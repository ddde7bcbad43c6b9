package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Gate      CapabilityGate // defaults to GrantAll
	Notifier  Notifier       // receives user-facing notices
	QueueSize int            // event queue depth (default 64)
}

// DefaultMonitorOptions returns sensible defaults.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		Gate:      GrantAll,
		QueueSize: 64,
	}
}

// Events posted to the loop.
type startRequest struct{}

type disconnectRequest struct{}

type adapterResult struct {
	attempt uint64
	err     error
}

type scanResult struct {
	device Device
}

type scanFailed struct {
	code int
}

type connStateChange struct {
	gen    uint64
	status Status
	state  LinkState
}

type servicesDiscovered struct {
	gen    uint64
	status Status
}

type notification struct {
	gen      uint64
	charUUID string
	payload  []byte
}

// Monitor runs the discover, connect, subscribe flow for one peripheral.
// Every state change happens on the goroutine running Run; the other
// methods only post requests to it.
type Monitor struct {
	identity DeviceIdentity
	values   ValueSink
	notices  Notifier
	gate     CapabilityGate

	guard   *AdapterGuard
	scanner *Scanner
	conns   *ConnectionManager
	subs    SubscriptionManager

	events   chan any
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	state atomic.Int32

	// preparing is set while the adapter guard is waiting on an enable
	// request; attempt numbers each Start so a result that arrives after a
	// Disconnect is ignored. Both are owned by the loop.
	preparing bool
	attempt   uint64
}

// NewMonitor creates a Monitor for the device described by identity.
// Readings are delivered to values.
func NewMonitor(adapter Adapter, identity DeviceIdentity, values ValueSink, opts MonitorOptions) *Monitor {
	if opts.Gate == nil {
		opts.Gate = GrantAll
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	m := &Monitor{
		identity: identity,
		values:   values,
		notices:  opts.Notifier,
		gate:     opts.Gate,
		guard:    NewAdapterGuard(adapter),
		scanner:  NewScanner(adapter, opts.Gate, identity.Name),
		events:   make(chan any, opts.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.conns = NewConnectionManager(adapter, opts.Gate, identity, func(gen uint64) LinkHandler {
		return &linkHandler{m: m, gen: gen}
	})
	return m
}

// State returns the current connection state. Safe for concurrent use.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Done is closed once Run has returned and the link is released.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Start requests a new discover-connect-subscribe attempt. It is ignored
// while a scan or an adapter enable request is in progress.
func (m *Monitor) Start() {
	m.post(startRequest{})
}

// Disconnect stops any scan and closes the link, leaving the monitor in
// StateDisconnected. Run keeps going and a later Start begins a new attempt.
func (m *Monitor) Disconnect() {
	m.post(disconnectRequest{})
}

// Stop makes Run release everything and return. It is safe to call
// multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Run processes events until ctx is cancelled or Stop is called. It must be
// called exactly once.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(m.done)
	defer m.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// post queues ev for the loop. Events posted after Run has returned are
// dropped.
func (m *Monitor) post(ev any) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Monitor) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case startRequest:
		m.start(ctx)

	case disconnectRequest:
		m.disconnect()

	case adapterResult:
		if ev.attempt != m.attempt {
			return
		}
		m.preparing = false
		if ev.err != nil {
			m.fail(ev.err)
			return
		}
		m.beginScan()

	case scanResult:
		d, ok := m.scanner.Match(ev.device)
		if !ok {
			return
		}
		m.setState(StateConnecting)
		m.notify(fmt.Sprintf("Connecting to %s", d.Name))
		if err := m.conns.Connect(d); err != nil {
			m.fail(err)
		}

	case scanFailed:
		if !m.scanner.Scanning() {
			return
		}
		m.fail(m.scanner.Failed(ev.code))

	case connStateChange:
		if cev, ok := m.conns.HandleConnectionState(ev.gen, ev.status, ev.state); ok {
			m.apply(cev)
		}

	case servicesDiscovered:
		if cev, ok := m.conns.HandleServicesDiscovered(ev.gen, ev.status); ok {
			m.apply(cev)
		}

	case notification:
		ch, ok := m.conns.ChannelFor(ev.gen, ev.charUUID)
		if !ok {
			return
		}
		if r, ok := decodeReading(ch, ev.payload); ok {
			m.values.Present(r)
		}

	default:
		slog.Warn("[BLE] unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

func (m *Monitor) start(ctx context.Context) {
	if m.preparing || m.scanner.Scanning() {
		slog.Debug("[BLE] start ignored, attempt already in progress", "state", m.State())
		return
	}
	if !m.gate.Granted(CapabilityScan) {
		m.fail(&CapabilityError{Capability: CapabilityScan})
		return
	}

	m.preparing = true
	m.attempt++
	attempt := m.attempt
	go func() {
		m.post(adapterResult{attempt: attempt, err: m.guard.EnsureReady(ctx)})
	}()
}

func (m *Monitor) beginScan() {
	started, err := m.scanner.Start(scanHandler{m})
	if err != nil {
		m.fail(err)
		return
	}
	if !started {
		return
	}
	m.values.Clear()
	m.setState(StateScanning)
	m.notify("Scanning...")
}

func (m *Monitor) apply(ev ConnEvent) {
	switch ev.Kind {
	case EventConnected:
		m.setState(StateServiceDiscovery)
		m.notify("Connected")
	case EventServicesReady:
		m.subscribeAll(ev.Service)
	case EventDisconnected:
		m.setState(StateDisconnected)
		m.notify("Disconnected")
	case EventError:
		m.fail(ev.Err)
	}
}

// subscribeAll subscribes every target characteristic found on svc. A
// channel that cannot be set up is reported and skipped.
func (m *Monitor) subscribeAll(svc Service) {
	m.setState(StateSubscribing)

	found, errs := m.conns.Characteristics(svc)
	for _, err := range errs {
		m.report(err)
	}

	link := m.conns.Link()
	subscribed := 0
	for _, b := range found {
		if err := m.subs.Subscribe(link, b.spec, b.char); err != nil {
			m.report(err)
			continue
		}
		m.conns.MarkSubscribed(b)
		subscribed++
	}

	if subscribed == 0 {
		m.fail(fmt.Errorf("%w: no channel available", ErrSubscriptionFailed))
		return
	}
	m.setState(StateStreaming)
}

func (m *Monitor) disconnect() {
	wasActive := m.preparing || m.scanner.Scanning() || m.conns.Active()
	m.preparing = false
	m.attempt++
	m.scanner.Stop()
	m.conns.Close()
	if !wasActive {
		return
	}
	m.setState(StateDisconnected)
	m.notify("Disconnected")
}

// fail ends the current attempt: scan stopped, link released, state Error.
func (m *Monitor) fail(err error) {
	m.scanner.Stop()
	m.conns.Close()
	m.setState(StateError)
	m.report(err)
}

func (m *Monitor) teardown() {
	m.scanner.Stop()
	closed := m.conns.Close()
	if s := m.State(); closed || (s != StateIdle && !s.Terminal()) {
		m.setState(StateDisconnected)
	}
	slog.Debug("[BLE] monitor stopped")
}

func (m *Monitor) setState(s State) {
	if old := State(m.state.Swap(int32(s))); old != s {
		slog.Debug("[BLE] state", "from", old, "to", s)
	}
}

func (m *Monitor) notify(msg string) {
	slog.Info("[BLE] " + msg)
	m.notices.Notify(Notice{Message: msg})
}

func (m *Monitor) report(err error) {
	slog.Warn("[BLE] failure", "error", err, "state", m.State())
	m.notices.Notify(Notice{Message: err.Error(), Err: err})
}

type scanHandler struct{ m *Monitor }

func (h scanHandler) OnScanResult(d Device) { h.m.post(scanResult{device: d}) }

func (h scanHandler) OnScanFailed(code int) { h.m.post(scanFailed{code: code}) }

// linkHandler tags every callback with the generation of its link.
type linkHandler struct {
	m   *Monitor
	gen uint64
}

func (h *linkHandler) OnConnectionStateChange(status Status, state LinkState) {
	h.m.post(connStateChange{gen: h.gen, status: status, state: state})
}

func (h *linkHandler) OnServicesDiscovered(status Status) {
	h.m.post(servicesDiscovered{gen: h.gen, status: status})
}

func (h *linkHandler) OnNotification(charUUID string, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	h.m.post(notification{gen: h.gen, charUUID: charUUID, payload: buf})
}
