package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/pulseox-ble/internal/ble"
	"github.com/chaz8081/pulseox-ble/internal/config"
	"github.com/chaz8081/pulseox-ble/internal/display"
	"github.com/chaz8081/pulseox-ble/internal/hotkey"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/pulseox-ble/config.yaml)")
	initConfig := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Println("Config file already exists, leaving it untouched.")
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	identity, err := cfg.Identity()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	printBanner(cfg)

	board := display.NewBoard(os.Stdout, cfg.Display.Placeholder)
	adapter := ble.NewTinyGoAdapter(cfg.Device.Adapter)

	notices := &endWatcher{Notifier: board}
	var listener *hotkey.Listener
	if cfg.Trigger.Mode != "auto" {
		listener = hotkey.NewListener(cfg.Trigger.Keys, cfg.Trigger.Mode)
		notices.trigger = listener
	}

	opts := ble.DefaultMonitorOptions()
	opts.Notifier = notices
	monitor := ble.NewMonitor(adapter, identity, board, opts)
	notices.state = monitor.State

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("[BLE] monitor stopped", "error", err)
		}
	}()

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var events <-chan hotkey.Event
	if listener != nil {
		go listener.Start()
		events = listener.Events()
		log.Println("Ready! Press", strings.Join(cfg.Trigger.Keys, "+"), "to connect. Ctrl+C to quit.")
	} else {
		monitor.Start()
		log.Println("Ready! Ctrl+C to quit.")
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Println("Hotkey listener stopped")
				shutdown(monitor, cancel)
				return
			}

			switch ev.Type {
			case hotkey.EventStart:
				monitor.Start()
			case hotkey.EventStop:
				monitor.Disconnect()
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			shutdown(monitor, cancel)
			log.Println("Goodbye!")
			if listener != nil {
				// Exit directly to avoid gohook's C cleanup crash.
				// The OS reclaims the event hook on process exit.
				os.Exit(0)
			}
			return
		}
	}
}

// shutdown stops the monitor and waits briefly for the link to be released.
func shutdown(monitor *ble.Monitor, cancel context.CancelFunc) {
	monitor.Stop()
	select {
	case <-monitor.Done():
	case <-time.After(2 * time.Second):
		log.Println("Timed out waiting for the link to close")
	}
	cancel()
}

// resetter is the part of the hotkey listener endWatcher needs.
type resetter interface {
	Reset()
}

// endWatcher forwards notices and resets a toggle hotkey once an attempt
// has ended, so the next press starts a new one.
type endWatcher struct {
	ble.Notifier
	trigger resetter // nil without a hotkey
	state   func() ble.State
}

func (w *endWatcher) Notify(n ble.Notice) {
	w.Notifier.Notify(n)
	if w.trigger != nil && w.state != nil && w.state().Terminal() {
		w.trigger.Reset()
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== pulseox-ble ===")
	fmt.Printf("  Device:  %s\n", cfg.Device.Name)
	fmt.Printf("  Service: %s\n", cfg.Device.ServiceUUID)
	fmt.Printf("  Adapter: %s\n", cfg.Device.Adapter)
	if cfg.Trigger.Mode == "auto" {
		fmt.Println("  Trigger: auto")
	} else {
		fmt.Printf("  Trigger: %s (%s mode)\n", strings.Join(cfg.Trigger.Keys, "+"), cfg.Trigger.Mode)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("===================")
}
