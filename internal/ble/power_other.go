//go:build !linux

package ble

import (
	"context"
	"fmt"
)

// Present is always true: CoreBluetooth and WinRT only report a missing
// radio by failing Enable.
func (a *TinyGoAdapter) Present() bool {
	return true
}

// Powered reports whether the library's adapter could be enabled.
func (a *TinyGoAdapter) Powered() bool {
	return a.enable() == nil
}

// RequestEnable retries enabling the adapter. The operating system owns the
// power switch, so a failure means the user left it off.
func (a *TinyGoAdapter) RequestEnable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.enable(); err != nil {
		return fmt.Errorf("%w: %v", ErrRadioDeclined, err)
	}
	return nil
}
