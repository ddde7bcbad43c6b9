// Package display renders oximeter readings as a single status line.
package display

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/chaz8081/pulseox-ble/internal/ble"
)

// Board holds the last value of each channel and redraws the status line
// on every change. It implements ble.ValueSink and ble.Notifier.
type Board struct {
	mu          sync.Mutex
	out         io.Writer
	placeholder string
	slots       map[ble.Channel]string
	status      string
}

// Compile-time interface satisfaction checks.
var (
	_ ble.ValueSink = (*Board)(nil)
	_ ble.Notifier  = (*Board)(nil)
)

// NewBoard creates a Board writing to out. An empty placeholder defaults to
// "--".
func NewBoard(out io.Writer, placeholder string) *Board {
	if placeholder == "" {
		placeholder = "--"
	}
	b := &Board{
		out:         out,
		placeholder: placeholder,
		slots:       make(map[ble.Channel]string),
	}
	b.reset()
	return b
}

// Present replaces the value of one channel.
func (b *Board) Present(r ble.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[r.Channel] = strconv.Itoa(int(r.Value))
	b.render()
}

// Clear puts every channel back to the placeholder.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	b.render()
}

// Notify shows the notice next to the readings until the next notice. The
// monitor has already logged it.
func (b *Board) Notify(n ble.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = n.Message
	b.render()
}

// Slot returns the text currently shown for ch.
func (b *Board) Slot(ch ble.Channel) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[ch]
}

// Line returns the status line as last rendered.
func (b *Board) Line() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line()
}

func (b *Board) reset() {
	b.slots[ble.HeartRate] = b.placeholder
	b.slots[ble.OxygenSaturation] = b.placeholder
}

func (b *Board) line() string {
	s := fmt.Sprintf("HR %s bpm  SpO2 %s %%", b.slots[ble.HeartRate], b.slots[ble.OxygenSaturation])
	if b.status != "" {
		s += "  [" + b.status + "]"
	}
	return s
}

// render must be called with mu held.
func (b *Board) render() {
	if b.out == nil {
		return
	}
	if _, err := fmt.Fprintln(b.out, b.line()); err != nil {
		slog.Warn("[DISPLAY] write failed", "error", err)
	}
}
