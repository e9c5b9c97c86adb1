package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-feather/debug"
)

// KeyboardInput handles a standard MIDI keyboard
type KeyboardInput struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	mu     sync.Mutex
	closed bool
	events chan Event
}

// NewKeyboardInput starts listening on the port
func NewKeyboardInput(id string, inPort drivers.In) (*KeyboardInput, error) {
	kb := &KeyboardInput{
		id:     id,
		inPort: inPort,
		events: make(chan Event, 128),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			if ev, ok := ParseEvent(msg); ok {
				kb.deliver(ev)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

// deliver queues ev without blocking the driver; events arriving after
// Close are dropped
func (kb *KeyboardInput) deliver(ev Event) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.events <- ev:
	default:
		debug.LogEvery(50, "input", "%s: event dropped, queue full", kb.id)
	}
}

func (kb *KeyboardInput) ID() string {
	return kb.id
}

func (kb *KeyboardInput) Events() <-chan Event {
	return kb.events
}

func (kb *KeyboardInput) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.events)
	}
	return nil
}
