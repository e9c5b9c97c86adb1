package midi

// Input is a connected MIDI input device feeding held notes
type Input interface {
	ID() string

	// Note and control-change events from the device
	Events() <-chan Event

	// Lifecycle
	Close() error
}

// DeviceEvent is emitted when inputs connect/disconnect
type DeviceEvent struct {
	Type  DeviceEventType
	Input Input
	ID    string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)
