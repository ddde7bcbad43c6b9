package ble

import (
	"errors"
	"fmt"
)

var (
	ErrCapabilityDenied       = errors.New("ble: capability denied")
	ErrRadioUnavailable       = errors.New("ble: radio unavailable")
	ErrRadioDeclined          = errors.New("ble: radio enable declined")
	ErrScanFailed             = errors.New("ble: scan failed")
	ErrLinkError              = errors.New("ble: link error")
	ErrServiceNotFound        = errors.New("ble: service not found")
	ErrCharacteristicNotFound = errors.New("ble: characteristic not found")
	ErrSubscriptionFailed     = errors.New("ble: subscription failed")
)

// CapabilityError reports a capability the gate refused.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("ble: missing %s capability", e.Capability)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapabilityDenied }

// ScanError carries the radio stack's scan failure code.
type ScanError struct {
	Code int
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("ble: scan failed: code %d", e.Code)
}

func (e *ScanError) Is(target error) bool { return target == ErrScanFailed }

// LinkError reports a non-success status or a failed link operation.
type LinkError struct {
	Op     string
	Status Status
	Err    error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ble: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ble: %s: status %d", e.Op, e.Status)
}

func (e *LinkError) Is(target error) bool { return target == ErrLinkError }

func (e *LinkError) Unwrap() error { return e.Err }

// SubscriptionReason says which step of a subscription failed.
type SubscriptionReason int

const (
	LocalEnableFailed SubscriptionReason = iota + 1
	DescriptorMissing
	DescriptorWriteFailed
)

func (r SubscriptionReason) String() string {
	switch r {
	case LocalEnableFailed:
		return "local enable failed"
	case DescriptorMissing:
		return "descriptor missing"
	case DescriptorWriteFailed:
		return "descriptor write failed"
	default:
		return "unknown"
	}
}

// ChannelError is a failure scoped to one channel. It matches
// ErrCharacteristicNotFound when Reason is zero and ErrSubscriptionFailed
// otherwise.
type ChannelError struct {
	Channel Channel
	Reason  SubscriptionReason
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Reason == 0 {
		return fmt.Sprintf("ble: %s characteristic not found", e.Channel)
	}
	if e.Err != nil {
		return fmt.Sprintf("ble: %s subscription failed: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("ble: %s subscription failed: %s", e.Channel, e.Reason)
}

func (e *ChannelError) Is(target error) bool {
	if e.Reason == 0 {
		return target == ErrCharacteristicNotFound
	}
	return target == ErrSubscriptionFailed
}

func (e *ChannelError) Unwrap() error { return e.Err }
