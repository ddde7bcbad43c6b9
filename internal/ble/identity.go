package ble

import (
	"fmt"

	"github.com/google/uuid"
)

// Channel identifies one of the monitored data streams.
type Channel int

const (
	HeartRate Channel = iota
	OxygenSaturation
)

func (c Channel) String() string {
	switch c {
	case HeartRate:
		return "heart-rate"
	case OxygenSaturation:
		return "spo2"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// CharacteristicSpec describes one monitored characteristic.
type CharacteristicSpec struct {
	Channel    Channel
	UUID       string
	ConfigUUID string // client characteristic configuration descriptor
}

// DeviceIdentity is the scan filter and service lookup key for the target
// peripheral, plus the characteristics to subscribe to.
type DeviceIdentity struct {
	Name            string
	ServiceUUID     string
	Characteristics []CharacteristicSpec
}

// DefaultIdentity returns the identity of the stock Pulse Oximeter ESP32
// firmware.
func DefaultIdentity() DeviceIdentity {
	return DeviceIdentity{
		Name:        DeviceName,
		ServiceUUID: ServiceUUID,
		Characteristics: []CharacteristicSpec{
			{Channel: HeartRate, UUID: HeartRateUUID, ConfigUUID: ClientConfigUUID},
			{Channel: OxygenSaturation, UUID: OxygenUUID, ConfigUUID: ClientConfigUUID},
		},
	}
}

// NewDeviceIdentity builds an identity from a device name and UUID strings in
// any form accepted by uuid.Parse. UUIDs are stored canonical (lowercase,
// hyphenated).
func NewDeviceIdentity(name, serviceUUID, heartRateUUID, oxygenUUID string) (DeviceIdentity, error) {
	if name == "" {
		return DeviceIdentity{}, fmt.Errorf("ble: device name must not be empty")
	}
	svc, err := canonicalUUID(serviceUUID)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("ble: service uuid: %w", err)
	}
	hr, err := canonicalUUID(heartRateUUID)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("ble: heart rate uuid: %w", err)
	}
	ox, err := canonicalUUID(oxygenUUID)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("ble: spo2 uuid: %w", err)
	}
	if hr == ox {
		return DeviceIdentity{}, fmt.Errorf("ble: heart rate and spo2 characteristics share uuid %s", hr)
	}
	return DeviceIdentity{
		Name:        name,
		ServiceUUID: svc,
		Characteristics: []CharacteristicSpec{
			{Channel: HeartRate, UUID: hr, ConfigUUID: ClientConfigUUID},
			{Channel: OxygenSaturation, UUID: ox, ConfigUUID: ClientConfigUUID},
		},
	}, nil
}

// channelFor maps a characteristic UUID to its channel.
func (id DeviceIdentity) channelFor(charUUID string) (Channel, bool) {
	u, err := canonicalUUID(charUUID)
	if err != nil {
		return 0, false
	}
	for _, spec := range id.Characteristics {
		if spec.UUID == u {
			return spec.Channel, true
		}
	}
	return 0, false
}

func canonicalUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// sameUUID compares two UUID strings ignoring case and formatting.
func sameUUID(a, b string) bool {
	ua, err := uuid.Parse(a)
	if err != nil {
		return false
	}
	ub, err := uuid.Parse(b)
	if err != nil {
		return false
	}
	return ua == ub
}
