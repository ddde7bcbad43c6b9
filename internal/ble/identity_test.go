package ble

import "testing"

func TestDefaultIdentity(t *testing.T) {
	id := DefaultIdentity()
	if id.Name != "Pulse Oximeter ESP32" {
		t.Errorf("Name = %q", id.Name)
	}
	if len(id.Characteristics) != 2 {
		t.Fatalf("Characteristics = %d, want 2", len(id.Characteristics))
	}
	for _, spec := range id.Characteristics {
		if spec.ConfigUUID != ClientConfigUUID {
			t.Errorf("%s ConfigUUID = %q, want %q", spec.Channel, spec.ConfigUUID, ClientConfigUUID)
		}
	}
}

func TestNewDeviceIdentityCanonicalises(t *testing.T) {
	id, err := NewDeviceIdentity(DeviceName,
		"13F7B509-A5E3-4469-9308-4B219E12C53B",
		"{17c0efa6-c395-4294-b463-5c6cd560bf91}",
		"urn:uuid:63438932-e944-4ba5-a56a-2deb646a5cd2")
	if err != nil {
		t.Fatalf("NewDeviceIdentity() error = %v", err)
	}
	if id.ServiceUUID != ServiceUUID {
		t.Errorf("ServiceUUID = %q, want %q", id.ServiceUUID, ServiceUUID)
	}
	if id.Characteristics[0].UUID != HeartRateUUID || id.Characteristics[1].UUID != OxygenUUID {
		t.Errorf("characteristics = %+v", id.Characteristics)
	}
}

func TestNewDeviceIdentityRejects(t *testing.T) {
	tests := []struct {
		name                string
		device, svc, hr, ox string
	}{
		{"empty name", "", ServiceUUID, HeartRateUUID, OxygenUUID},
		{"bad service", DeviceName, "not-a-uuid", HeartRateUUID, OxygenUUID},
		{"bad heart rate", DeviceName, ServiceUUID, "", OxygenUUID},
		{"bad spo2", DeviceName, ServiceUUID, HeartRateUUID, "1234"},
		{"duplicate characteristic", DeviceName, ServiceUUID, HeartRateUUID, HeartRateUUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDeviceIdentity(tt.device, tt.svc, tt.hr, tt.ox); err == nil {
				t.Error("NewDeviceIdentity() error = nil, want error")
			}
		})
	}
}

func TestChannelFor(t *testing.T) {
	id := DefaultIdentity()
	if ch, ok := id.channelFor(OxygenUUID); !ok || ch != OxygenSaturation {
		t.Errorf("channelFor(spo2) = %v, %v", ch, ok)
	}
	if _, ok := id.channelFor(ServiceUUID); ok {
		t.Error("channelFor(service uuid) = true, want false")
	}
}

func TestStateString(t *testing.T) {
	if StateServiceDiscovery.String() != "service-discovery" {
		t.Errorf("String() = %q", StateServiceDiscovery.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("String() = %q, want unknown", State(99).String())
	}
	if !StateError.Terminal() || !StateDisconnected.Terminal() || StateStreaming.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
