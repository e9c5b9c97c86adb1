package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-feather/debug"
)

// DeviceManager handles hot-plug detection of MIDI inputs. Every input port
// that matches the preferred patterns (all ports when none are given) and
// none of the excluded ones is opened.
type DeviceManager struct {
	inputs   map[string]Input
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration

	preferred []string
	excluded  []string
}

// DefaultExcluded are virtual/system ports that are never auto-connected
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

// NewDeviceManager creates a new device manager
func NewDeviceManager(preferred, excluded []string) *DeviceManager {
	if excluded == nil {
		excluded = DefaultExcluded
	}
	return &DeviceManager{
		inputs:    make(map[string]Input),
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
		preferred: preferred,
		excluded:  excluded,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Inputs returns a snapshot of connected inputs
func (dm *DeviceManager) Inputs() map[string]Input {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Input, len(dm.inputs))
	for k, v := range dm.inputs {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	var inPorts []drivers.In
	select {
	case inPorts = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("devices", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for _, inPort := range inPorts {
		id := inPort.String()
		if !MatchPort(id, dm.preferred, dm.excluded) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.inputs[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardInput(id, inPort)
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.inputs[id] = kb
		dm.mu.Unlock()

		debug.Log("devices", "input connected: %s", id)
		dm.events <- DeviceEvent{
			Type:  DeviceConnected,
			Input: kb,
			ID:    id,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.inputs {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		dm.inputs[id].Close()
		delete(dm.inputs, id)
		debug.Log("devices", "input disconnected: %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, in := range dm.inputs {
		in.Close()
	}
	dm.inputs = make(map[string]Input)
}

// MatchPort reports whether a port name should be auto-connected
func MatchPort(name string, preferred, excluded []string) bool {
	lower := strings.ToLower(name)
	for _, p := range excluded {
		if strings.Contains(lower, strings.ToLower(p)) {
			return false
		}
	}
	if len(preferred) == 0 {
		return true
	}
	for _, p := range preferred {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// InPortNames lists the system input ports
func InPortNames() []string {
	ins := gomidi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}
