package ble

// Capability is a privilege the runtime must grant before a radio operation.
type Capability int

const (
	CapabilityScan Capability = iota
	CapabilityConnect
)

func (c Capability) String() string {
	if c == CapabilityConnect {
		return "connect"
	}
	return "scan"
}

// CapabilityGate answers whether a capability is currently granted.
type CapabilityGate interface {
	Granted(c Capability) bool
}

// GateFunc adapts a function to CapabilityGate.
type GateFunc func(Capability) bool

func (f GateFunc) Granted(c Capability) bool { return f(c) }

// GrantAll is the gate for platforms without runtime BLE permissions.
var GrantAll CapabilityGate = GateFunc(func(Capability) bool { return true })
