package ble

import (
	"fmt"
	"log/slog"
)

// Scanner looks for a single device advertising an exact name and stops
// itself on the first match. It is not safe for concurrent use; Monitor
// drives it from its event loop.
type Scanner struct {
	adapter  Adapter
	gate     CapabilityGate
	name     string
	scanning bool
}

// NewScanner creates a Scanner matching the advertised name exactly.
func NewScanner(adapter Adapter, gate CapabilityGate, name string) *Scanner {
	if gate == nil {
		gate = GrantAll
	}
	return &Scanner{adapter: adapter, gate: gate, name: name}
}

// Scanning reports whether a scan is active.
func (s *Scanner) Scanning() bool {
	return s.scanning
}

// Start begins a scan delivering results to h. It returns false without
// touching the radio when a scan is already active.
func (s *Scanner) Start(h ScanHandler) (bool, error) {
	if s.scanning {
		return false, nil
	}
	if !s.gate.Granted(CapabilityScan) {
		return false, &CapabilityError{Capability: CapabilityScan}
	}
	s.scanning = true
	if err := s.adapter.StartScan(h); err != nil {
		s.scanning = false
		return false, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}
	slog.Debug("[BLE] scan started", "name", s.name)
	return true, nil
}

// Stop ends the scan. Calling it when no scan is active does nothing.
func (s *Scanner) Stop() {
	if !s.scanning {
		return
	}
	s.scanning = false
	if err := s.adapter.StopScan(); err != nil {
		slog.Warn("[BLE] stop scan", "error", err)
	}
}

// Match filters one scan result. On the first device whose name equals the
// target the scan is stopped and the device returned with true. Results
// arriving while no scan is active are ignored.
func (s *Scanner) Match(d Device) (Device, bool) {
	if !s.scanning || d.Name == "" || d.Name != s.name {
		return Device{}, false
	}
	s.Stop()
	slog.Info("[BLE] found device", "name", d.Name, "address", d.Address, "rssi", d.RSSI)
	return d, true
}

// Failed records a scan failure reported by the radio stack.
func (s *Scanner) Failed(code int) error {
	s.scanning = false
	return &ScanError{Code: code}
}
