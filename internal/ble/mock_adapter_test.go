package ble

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockDescriptor records writes.
type mockDescriptor struct {
	mu     sync.Mutex
	uuid   string
	writes [][]byte
	err    error
}

func (d *mockDescriptor) UUID() string { return d.uuid }

func (d *mockDescriptor) Write(value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	d.writes = append(d.writes, cp)
	return d.err
}

func (d *mockDescriptor) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

type mockCharacteristic struct {
	uuid        string
	descriptors map[string]*mockDescriptor
}

func newMockCharacteristic(uuid string, withConfig bool) *mockCharacteristic {
	c := &mockCharacteristic{uuid: uuid, descriptors: make(map[string]*mockDescriptor)}
	if withConfig {
		c.descriptors[ClientConfigUUID] = &mockDescriptor{uuid: ClientConfigUUID}
	}
	return c
}

func (c *mockCharacteristic) UUID() string { return c.uuid }

func (c *mockCharacteristic) Descriptor(uuid string) (Descriptor, bool) {
	d, ok := c.descriptors[uuid]
	if !ok {
		return nil, false
	}
	return d, true
}

func (c *mockCharacteristic) config() *mockDescriptor {
	return c.descriptors[ClientConfigUUID]
}

type mockService struct {
	uuid  string
	chars map[string]*mockCharacteristic
}

func (s *mockService) UUID() string { return s.uuid }

func (s *mockService) Characteristic(uuid string) (Characteristic, bool) {
	c, ok := s.chars[uuid]
	if !ok {
		return nil, false
	}
	return c, true
}

// layout describes what a mock peripheral exposes.
type layout struct {
	noService     bool
	noHeartRate   bool
	noOxygen      bool
	noConfig      map[string]bool  // characteristic UUID -> CCCD missing
	notifyErr     map[string]error // characteristic UUID -> SetNotify error
	discoverError error
}

func (l layout) build() map[string]*mockService {
	if l.noService {
		return map[string]*mockService{}
	}
	svc := &mockService{uuid: ServiceUUID, chars: make(map[string]*mockCharacteristic)}
	if !l.noHeartRate {
		svc.chars[HeartRateUUID] = newMockCharacteristic(HeartRateUUID, !l.noConfig[HeartRateUUID])
	}
	if !l.noOxygen {
		svc.chars[OxygenUUID] = newMockCharacteristic(OxygenUUID, !l.noConfig[OxygenUUID])
	}
	return map[string]*mockService{ServiceUUID: svc}
}

// mockLink simulates one GATT connection.
type mockLink struct {
	mu            sync.Mutex
	adapter       *mockAdapter
	device        Device
	handler       LinkHandler
	services      map[string]*mockService
	notifyErr     map[string]error
	discoverErr   error
	notifying     map[string]bool
	discoverCalls int
	closeCount    int
}

func (l *mockLink) DiscoverServices() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discoverCalls++
	return l.discoverErr
}

func (l *mockLink) Service(uuid string) (Service, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.services[uuid]
	if !ok {
		return nil, false
	}
	return s, true
}

func (l *mockLink) SetNotify(c Characteristic, enable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.notifyErr[c.UUID()]; err != nil {
		return err
	}
	l.notifying[c.UUID()] = enable
	return nil
}

func (l *mockLink) Close() error {
	l.mu.Lock()
	l.closeCount++
	l.mu.Unlock()
	l.adapter.record("close " + l.device.Address)
	return nil
}

func (l *mockLink) closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCount
}

func (l *mockLink) discovers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discoverCalls
}

// characteristic returns the mock characteristic for uuid, or nil.
func (l *mockLink) characteristic(uuid string) *mockCharacteristic {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[ServiceUUID]
	if !ok {
		return nil
	}
	return svc.chars[uuid]
}

func (l *mockLink) configWrites() int {
	n := 0
	for _, uuid := range []string{HeartRateUUID, OxygenUUID} {
		if c := l.characteristic(uuid); c != nil && c.config() != nil {
			n += c.config().writeCount()
		}
	}
	return n
}

// SimulateConnectionState delivers a connection state callback.
func (l *mockLink) SimulateConnectionState(status Status, state LinkState) {
	l.handler.OnConnectionStateChange(status, state)
}

// SimulateServicesDiscovered delivers the end of service discovery.
func (l *mockLink) SimulateServicesDiscovered(status Status) {
	l.handler.OnServicesDiscovered(status)
}

// SimulateNotification delivers a notification for charUUID.
func (l *mockLink) SimulateNotification(charUUID string, payload []byte) {
	l.handler.OnNotification(charUUID, payload)
}

// mockAdapter simulates the BLE radio.
type mockAdapter struct {
	mu         sync.Mutex
	present    bool
	powered    bool
	enableErr  error
	enableReq  int
	scanErr    error
	scanStarts int
	scanStops  int
	scan       ScanHandler
	layout     layout
	links      []*mockLink
	calls      []string
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{present: true, powered: true}
}

func (a *mockAdapter) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *mockAdapter) Present() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.present
}

func (a *mockAdapter) Powered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.powered
}

func (a *mockAdapter) RequestEnable(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enableReq++
	if a.enableErr != nil {
		return a.enableErr
	}
	a.powered = true
	return nil
}

func (a *mockAdapter) StartScan(h ScanHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanStarts++
	a.calls = append(a.calls, "start-scan")
	if a.scanErr != nil {
		return a.scanErr
	}
	a.scan = h
	return nil
}

func (a *mockAdapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanStops++
	a.calls = append(a.calls, "stop-scan")
	return nil
}

func (a *mockAdapter) Connect(d Device, h LinkHandler) (Link, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "connect "+d.Address)
	link := &mockLink{
		adapter:     a,
		device:      d,
		handler:     h,
		services:    a.layout.build(),
		notifyErr:   a.layout.notifyErr,
		discoverErr: a.layout.discoverError,
		notifying:   make(map[string]bool),
	}
	a.links = append(a.links, link)
	return link, nil
}

// SimulateScanResult delivers an advertisement to the active scan handler.
func (a *mockAdapter) SimulateScanResult(d Device) {
	a.mu.Lock()
	h := a.scan
	a.mu.Unlock()
	if h != nil {
		h.OnScanResult(d)
	}
}

// SimulateScanFailed delivers a scan failure.
func (a *mockAdapter) SimulateScanFailed(code int) {
	a.mu.Lock()
	h := a.scan
	a.mu.Unlock()
	if h != nil {
		h.OnScanFailed(code)
	}
}

func (a *mockAdapter) counts() (starts, stops, connects int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanStarts, a.scanStops, len(a.links)
}

func (a *mockAdapter) link(i int) *mockLink {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i >= len(a.links) {
		return nil
	}
	return a.links[i]
}

func (a *mockAdapter) callLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

// recordingSink captures readings and notices.
type recordingSink struct {
	mu       sync.Mutex
	values   map[Channel]string
	presents int
	clears   int
	notices  []Notice
}

func newRecordingSink() *recordingSink {
	return &recordingSink{values: make(map[Channel]string)}
}

func (s *recordingSink) Present(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[r.Channel] = fmt.Sprint(r.Value)
	s.presents++
}

func (s *recordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[Channel]string)
	s.clears++
}

func (s *recordingSink) Notify(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) value(ch Channel) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[ch]
}

func (s *recordingSink) presentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// errorNotices returns the errors surfaced so far.
func (s *recordingSink) errorNotices() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, n := range s.notices {
		if n.Err != nil {
			errs = append(errs, n.Err)
		}
	}
	return errs
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}

func TestMockLinkImplementsInterface(t *testing.T) {
	var _ Link = (*mockLink)(nil)
}

func TestRecordingSinkImplementsInterfaces(t *testing.T) {
	var _ ValueSink = (*recordingSink)(nil)
	var _ Notifier = (*recordingSink)(nil)
}
