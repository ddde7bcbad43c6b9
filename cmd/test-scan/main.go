// Command test-scan is a manual test for the BLE radio backend.
// It scans for a few seconds and lists every advertised name, marking the
// one the monitor would connect to.
//
// Usage:
//
//	go run ./cmd/test-scan [--adapter hci0] [--seconds 10] [--name "Pulse Oximeter ESP32"]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chaz8081/pulseox-ble/internal/ble"
)

// printer lists each address once.
type printer struct {
	mu     sync.Mutex
	target string
	seen   map[string]bool
	failed chan int
}

func (p *printer) OnScanResult(d ble.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[d.Address] {
		return
	}
	p.seen[d.Address] = true

	name := d.Name
	if name == "" {
		name = "(no name)"
	}
	mark := " "
	if d.Name == p.target {
		mark = "*"
	}
	fmt.Printf("%s %-17s %4d dBm  %s\n", mark, d.Address, d.RSSI, name)
}

func (p *printer) OnScanFailed(code int) {
	select {
	case p.failed <- code:
	default:
	}
}

func main() {
	hci := flag.String("adapter", "hci0", "BlueZ adapter id (Linux only)")
	seconds := flag.Int("seconds", 10, "how long to scan")
	name := flag.String("name", ble.DeviceName, "advertised name to highlight")
	flag.Parse()

	adapter := ble.NewTinyGoAdapter(*hci)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ble.NewAdapterGuard(adapter).EnsureReady(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	p := &printer{target: *name, seen: make(map[string]bool), failed: make(chan int, 1)}
	fmt.Printf("Scanning for %ds (target %q marked with *)...\n", *seconds, *name)
	if err := adapter.StartScan(p); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	select {
	case <-time.After(time.Duration(*seconds) * time.Second):
	case code := <-p.failed:
		fmt.Printf("Scan failed with code %d\n", code)
	}
	if err := adapter.StopScan(); err != nil {
		fmt.Printf("Error stopping scan: %v\n", err)
	}

	p.mu.Lock()
	fmt.Printf("\nDone! %d devices seen.\n", len(p.seen))
	p.mu.Unlock()
}
