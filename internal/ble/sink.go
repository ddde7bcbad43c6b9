package ble

// Reading is one decoded notification value.
type Reading struct {
	Channel Channel
	Value   uint8
}

// ValueSink receives readings for display. Implementations must not block.
type ValueSink interface {
	Present(r Reading)
	// Clear resets every channel to its "no value yet" placeholder.
	Clear()
}

// Notice is a transient, dismissible message for the user. Err is nil for
// informational notices.
type Notice struct {
	Message string
	Err     error
}

// Notifier surfaces notices to the user. Implementations must not block.
type Notifier interface {
	Notify(n Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
