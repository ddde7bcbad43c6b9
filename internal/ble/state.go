package ble

// State is the connection state of the monitor.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateServiceDiscovery
	StateSubscribing
	StateStreaming
	StateDisconnected
	StateError
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateScanning:         "scanning",
	StateConnecting:       "connecting",
	StateServiceDiscovery: "service-discovery",
	StateSubscribing:      "subscribing",
	StateStreaming:        "streaming",
	StateDisconnected:     "disconnected",
	StateError:            "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends an attempt. A new Start is required to
// leave a terminal state.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateError
}
