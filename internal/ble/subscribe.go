package ble

import "log/slog"

// SubscriptionManager turns on notifications for one characteristic at a
// time. A failure only affects the channel being subscribed.
type SubscriptionManager struct{}

// Subscribe enables local delivery for c on link, then writes the enable
// value to its configuration descriptor. The write is not acknowledged; the
// first notification is the only confirmation that it took effect.
func (SubscriptionManager) Subscribe(link Link, spec CharacteristicSpec, c Characteristic) error {
	if err := link.SetNotify(c, true); err != nil {
		return &ChannelError{Channel: spec.Channel, Reason: LocalEnableFailed, Err: err}
	}

	d, ok := c.Descriptor(spec.ConfigUUID)
	if !ok {
		return &ChannelError{Channel: spec.Channel, Reason: DescriptorMissing}
	}

	if err := d.Write(EnableNotificationValue); err != nil {
		return &ChannelError{Channel: spec.Channel, Reason: DescriptorWriteFailed, Err: err}
	}

	slog.Info("[BLE] subscribed", "channel", spec.Channel)
	return nil
}

// Unsubscribe reverses Subscribe: the disable value goes to the
// configuration descriptor, then local delivery is turned off.
func (SubscriptionManager) Unsubscribe(link Link, spec CharacteristicSpec, c Characteristic) error {
	if d, ok := c.Descriptor(spec.ConfigUUID); ok {
		if err := d.Write(DisableNotificationValue); err != nil {
			return &ChannelError{Channel: spec.Channel, Reason: DescriptorWriteFailed, Err: err}
		}
	}
	if err := link.SetNotify(c, false); err != nil {
		return &ChannelError{Channel: spec.Channel, Reason: LocalEnableFailed, Err: err}
	}
	return nil
}

// decodeReading extracts the value carried by a notification payload. Empty
// payloads carry nothing.
func decodeReading(ch Channel, payload []byte) (Reading, bool) {
	if len(payload) == 0 {
		return Reading{}, false
	}
	return Reading{Channel: ch, Value: payload[0]}, true
}
