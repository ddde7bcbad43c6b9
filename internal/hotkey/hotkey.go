// Package hotkey provides a global hotkey listener using gohook.
// It supports "toggle" mode (press to connect, press again to disconnect)
// and "press" mode (every press starts a fresh connection attempt).
package hotkey

import (
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether monitoring should start or stop.
type EventType int

const (
	// EventStart asks for a new connection attempt.
	EventStart EventType = iota
	// EventStop asks for the current link to be closed.
	EventStop
)

func (t EventType) String() string {
	if t == EventStop {
		return "stop"
	}
	return "start"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys []string
	mode string // "toggle" or "press"
	ch   chan Event
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	active bool // toggle mode: last emitted event was EventStart
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "o"]).
// mode must be "toggle" or "press".
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys: keys,
		mode: mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
		l.press()
	})

	slog.Debug("[HOTKEY] listening", "keys", strings.Join(l.keys, "+"), "mode", l.mode)
	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Reset puts a toggle listener back in its idle position, so the next press
// emits EventStart. Used when the link ends without a key press.
func (l *Listener) Reset() {
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()
}

// press handles one key-combo press.
func (l *Listener) press() {
	l.mu.Lock()
	ev := Event{Type: EventStart}
	if l.mode == "toggle" {
		if l.active {
			ev.Type = EventStop
		}
		l.active = !l.active
	}
	l.mu.Unlock()

	slog.Debug("[HOTKEY] pressed", "event", ev.Type)
	select {
	case l.ch <- ev:
	default: // don't block if channel is full
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
