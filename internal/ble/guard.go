package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// AdapterGuard checks that the radio exists and is powered before a scan.
type AdapterGuard struct {
	adapter Adapter
}

// NewAdapterGuard creates a guard for adapter.
func NewAdapterGuard(adapter Adapter) *AdapterGuard {
	return &AdapterGuard{adapter: adapter}
}

// EnsureReady returns nil when the radio can scan. A missing radio fails with
// ErrRadioUnavailable. A powered-off radio triggers one enable request; a
// refusal fails with ErrRadioDeclined. EnsureReady blocks while the request
// is pending.
func (g *AdapterGuard) EnsureReady(ctx context.Context) error {
	if !g.adapter.Present() {
		return ErrRadioUnavailable
	}
	if g.adapter.Powered() {
		return nil
	}

	slog.Info("[BLE] radio is off, requesting enable")
	if err := g.adapter.RequestEnable(ctx); err != nil {
		if errors.Is(err, ErrRadioDeclined) || errors.Is(err, ErrRadioUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRadioDeclined, err)
	}
	return nil
}
