package midi

import (
	"errors"
	"sync"
	"testing"

	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// fakePorts is an Opener backed by in-memory ports
type fakePorts struct {
	mu     sync.Mutex
	opened map[string]int
	closed map[string]int
	sent   map[string][]gomidi.Message
	fail   map[string]bool
}

func newFakePorts() *fakePorts {
	return &fakePorts{
		opened: map[string]int{},
		closed: map[string]int{},
		sent:   map[string][]gomidi.Message{},
		fail:   map[string]bool{},
	}
}

func (f *fakePorts) open(name string) (func(gomidi.Message) error, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[name] {
		return nil, nil, errors.New("no such port")
	}
	f.opened[name]++
	send := func(msg gomidi.Message) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sent[name] = append(f.sent[name], msg)
		return nil
	}
	closeFn := func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed[name]++
		return nil
	}
	return send, closeFn, nil
}

func TestOutputStateMachine(t *testing.T) {
	ports := newFakePorts()
	out := NewOutput(ports.open)

	var states []ConnState
	out.OnState = func(s ConnState, _ string) { states = append(states, s) }

	if s, _ := out.State(); s != Disconnected {
		t.Fatalf("initial state = %v", s)
	}
	if err := out.Connect("synth"); err != nil {
		t.Fatal(err)
	}
	if s, name := out.State(); s != Connected || name != "synth" {
		t.Fatalf("state = %v %q, want connected synth", s, name)
	}
	want := []ConnState{Connecting, Connected}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Errorf("transitions = %v, want %v", states, want)
	}

	// idempotent
	out.Connect("synth")
	if ports.opened["synth"] != 1 {
		t.Errorf("port opened %d times, want 1", ports.opened["synth"])
	}

	if err := out.Send([]byte{0x90, 60, 100}); err != nil {
		t.Fatal(err)
	}
	if len(ports.sent["synth"]) != 1 {
		t.Errorf("sent %d messages", len(ports.sent["synth"]))
	}

	out.Disconnect()
	out.Disconnect()
	if ports.closed["synth"] != 1 {
		t.Errorf("port closed %d times, want 1", ports.closed["synth"])
	}
	if s, _ := out.State(); s != Disconnected {
		t.Errorf("state after disconnect = %v", s)
	}
}

func TestOutputSwitchPort(t *testing.T) {
	ports := newFakePorts()
	out := NewOutput(ports.open)

	out.Connect("a")
	out.Connect("b")
	if ports.closed["a"] != 1 {
		t.Error("previous port not closed on switch")
	}
	out.Send([]byte{0x80, 60, 0})
	if len(ports.sent["a"]) != 0 || len(ports.sent["b"]) != 1 {
		t.Errorf("sent a=%d b=%d, want only b", len(ports.sent["a"]), len(ports.sent["b"]))
	}
}

func TestOutputNoDevice(t *testing.T) {
	ports := newFakePorts()
	ports.fail["gone"] = true
	out := NewOutput(ports.open)

	err := out.Send([]byte{0x90, 60, 100})
	if ftag.Get(err) != NoDevice {
		t.Errorf("send while disconnected: kind %q, want %q", ftag.Get(err), NoDevice)
	}

	err = out.Connect("gone")
	if err == nil {
		t.Fatal("connect to missing port succeeded")
	}
	if ftag.Get(err) != NoDevice {
		t.Errorf("connect failure kind %q, want %q", ftag.Get(err), NoDevice)
	}
	if s, _ := out.State(); s != Disconnected {
		t.Errorf("state after failed connect = %v", s)
	}
}
