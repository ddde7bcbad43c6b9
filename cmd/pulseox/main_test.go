package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/pulseox-ble/internal/ble"
)

// stubAdapter is a radio that never finds anything.
type stubAdapter struct {
	present bool
}

func (a *stubAdapter) Present() bool                       { return a.present }
func (a *stubAdapter) Powered() bool                       { return true }
func (a *stubAdapter) RequestEnable(context.Context) error { return nil }
func (a *stubAdapter) StartScan(ble.ScanHandler) error     { return nil }
func (a *stubAdapter) StopScan() error                     { return nil }

func (a *stubAdapter) Connect(ble.Device, ble.LinkHandler) (ble.Link, error) {
	return nil, errors.New("stub adapter cannot connect")
}

type stubNotifier struct {
	mu      sync.Mutex
	notices []ble.Notice
}

func (n *stubNotifier) Notify(notice ble.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *stubNotifier) has(msg string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.Message == msg {
			return true
		}
	}
	return false
}

type countingResetter struct {
	mu     sync.Mutex
	resets int
}

func (r *countingResetter) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func (r *countingResetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// runWatched starts a monitor whose notices go through an endWatcher.
func runWatched(t *testing.T, adapter ble.Adapter, trigger resetter) (*ble.Monitor, *stubNotifier) {
	t.Helper()
	inner := &stubNotifier{}
	w := &endWatcher{Notifier: inner, trigger: trigger}

	opts := ble.DefaultMonitorOptions()
	opts.Notifier = w
	m := ble.NewMonitor(adapter, ble.DefaultIdentity(), nopSink{}, opts)
	w.state = m.State

	go m.Run(context.Background())
	t.Cleanup(func() {
		m.Stop()
		<-m.Done()
	})
	return m, inner
}

type nopSink struct{}

func (nopSink) Present(ble.Reading) {}
func (nopSink) Clear()              {}

func waitUntil(t *testing.T, what string, cond func() bool) {
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

func TestEndWatcherResetsToggleAfterFailedAttempt(t *testing.T) {
	trigger := &countingResetter{}
	m, notices := runWatched(t, &stubAdapter{present: false}, trigger)

	m.Start()
	waitUntil(t, "error state", func() bool { return m.State() == ble.StateError })
	waitUntil(t, "toggle reset", func() bool { return trigger.count() == 1 })

	if !notices.has(ble.ErrRadioUnavailable.Error()) {
		t.Error("radio unavailable notice was not forwarded")
	}
}

func TestEndWatcherKeepsToggleWhileScanning(t *testing.T) {
	trigger := &countingResetter{}
	m, notices := runWatched(t, &stubAdapter{present: true}, trigger)

	m.Start()
	waitUntil(t, "scanning notice", func() bool { return notices.has("Scanning...") })

	if m.State() != ble.StateScanning {
		t.Errorf("state = %v, want scanning", m.State())
	}
	if got := trigger.count(); got != 0 {
		t.Errorf("resets = %d, want 0 while an attempt is running", got)
	}
}

func TestEndWatcherResetsAfterDisconnect(t *testing.T) {
	trigger := &countingResetter{}
	m, notices := runWatched(t, &stubAdapter{present: true}, trigger)

	m.Start()
	waitUntil(t, "scanning notice", func() bool { return notices.has("Scanning...") })
	m.Disconnect()
	waitUntil(t, "toggle reset", func() bool { return trigger.count() == 1 })

	if m.State() != ble.StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestEndWatcherWithoutHotkey(t *testing.T) {
	inner := &stubNotifier{}
	w := &endWatcher{Notifier: inner, state: func() ble.State { return ble.StateError }}

	w.Notify(ble.Notice{Message: "Disconnected"})

	if !inner.has("Disconnected") {
		t.Error("notice was not forwarded")
	}
}
