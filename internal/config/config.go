package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/pulseox-ble/internal/ble"
)

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Trigger  TriggerConfig `yaml:"trigger"`
	Display  DisplayConfig `yaml:"display"`
	LogLevel string        `yaml:"log_level"`
}

// DeviceConfig identifies the peripheral and the local radio.
type DeviceConfig struct {
	Name          string `yaml:"name"`
	ServiceUUID   string `yaml:"service_uuid"`
	HeartRateUUID string `yaml:"heart_rate_uuid"`
	SpO2UUID      string `yaml:"spo2_uuid"`
	Adapter       string `yaml:"adapter"` // BlueZ adapter id, e.g. "hci0"
}

// TriggerConfig controls how a connection attempt is started.
type TriggerConfig struct {
	Mode string   `yaml:"mode"` // "auto", "toggle" or "press"
	Keys []string `yaml:"keys"`
}

// DisplayConfig holds rendering settings.
type DisplayConfig struct {
	Placeholder string `yaml:"placeholder"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pulseox-ble")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config for the stock Pulse Oximeter ESP32 firmware.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:          ble.DeviceName,
			ServiceUUID:   ble.ServiceUUID,
			HeartRateUUID: ble.HeartRateUUID,
			SpO2UUID:      ble.OxygenUUID,
			Adapter:       "hci0",
		},
		Trigger: TriggerConfig{
			Mode: "auto",
			Keys: []string{"ctrl", "shift", "o"},
		},
		Display: DisplayConfig{
			Placeholder: "--",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A path starting with ~ is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}

	uuids := []struct {
		field, value string
	}{
		{"device.service_uuid", c.Device.ServiceUUID},
		{"device.heart_rate_uuid", c.Device.HeartRateUUID},
		{"device.spo2_uuid", c.Device.SpO2UUID},
	}
	for _, u := range uuids {
		if err := uuid.Validate(u.value); err != nil {
			return fmt.Errorf("%s: %q is not a UUID: %w", u.field, u.value, err)
		}
	}

	switch c.Trigger.Mode {
	case "auto":
	case "toggle", "press":
		if len(c.Trigger.Keys) == 0 {
			return fmt.Errorf("trigger.keys must not be empty in %s mode", c.Trigger.Mode)
		}
	default:
		return fmt.Errorf("trigger.mode must be \"auto\", \"toggle\" or \"press\", got %q", c.Trigger.Mode)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if _, err := c.Identity(); err != nil {
		return err
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// default to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Identity builds the device identity the monitor scans and subscribes for.
func (c *Config) Identity() (ble.DeviceIdentity, error) {
	return ble.NewDeviceIdentity(c.Device.Name, c.Device.ServiceUUID, c.Device.HeartRateUUID, c.Device.SpO2UUID)
}

const defaultFileHeader = `# pulseox-ble configuration
#
# device:   advertised name and GATT UUIDs of the oximeter
# trigger:  auto connects on launch; toggle and press wait for the hotkey
# log_level: debug, info, warn or error
`

// WriteDefault writes the default config to path, or to DefaultConfigPath
// when path is empty, creating parent directories. It returns the path
// written, or "" when a file already exists there.
func WriteDefault(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	path = expandTilde(path)
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultFileHeader+"\n"), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
