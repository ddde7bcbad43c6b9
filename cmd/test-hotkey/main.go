// Command test-hotkey is a manual test for the connect/disconnect trigger.
// It prints what the monitor would be asked to do on each press. With
// --reset-after N, every Nth START is followed by a simulated failed
// attempt, which puts a toggle trigger back to idle.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode toggle|press] [--keys ctrl,shift,o] [--reset-after N]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/pulseox-ble/internal/hotkey"
)

func main() {
	mode := flag.String("mode", "toggle", "trigger mode: toggle or press")
	keyList := flag.String("keys", "ctrl,shift,o", "comma-separated key combo")
	resetAfter := flag.Int("reset-after", 0, "simulate a failed attempt after every Nth START (0 disables)")
	flag.Parse()

	keys := strings.Split(*keyList, ",")
	listener := hotkey.NewListener(keys, *mode)
	go listener.Start()

	fmt.Printf("Trigger %s in %s mode. Ctrl+C to quit.\n", strings.Join(keys, "+"), *mode)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	starts := 0
	for {
		select {
		case ev, ok := <-listener.Events():
			if !ok {
				fmt.Println("Listener stopped.")
				return
			}
			if ev.Type == hotkey.EventStop {
				fmt.Println("STOP  -> monitor.Disconnect()")
				continue
			}

			starts++
			fmt.Printf("START -> monitor.Start() (attempt %d)\n", starts)
			if *resetAfter > 0 && starts%*resetAfter == 0 {
				listener.Reset()
				fmt.Println("      attempt failed without a key press; trigger reset, next press emits START again")
			}

		case <-sig:
			fmt.Printf("\n%d attempts requested.\n", starts)
			listener.Stop()
			// Exit directly to avoid gohook's C cleanup crash.
			os.Exit(0)
		}
	}
}
