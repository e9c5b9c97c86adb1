package midi

import (
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-feather/debug"
)

// NoDevice tags errors caused by a missing or failed output device
const NoDevice ftag.Kind = "NO_DEVICE"

// ConnState is the lifecycle state of an output connection
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Opener opens an output port by name, returning its send and close functions
type Opener func(name string) (send func(gomidi.Message) error, close func() error, err error)

// Output is the MIDI destination for emitted notes. Connect and Disconnect are
// idempotent; Send fails with a NoDevice error while not connected.
type Output struct {
	open Opener

	mu      sync.RWMutex
	state   ConnState
	name    string
	gen     uint64 // bumped on every Connect/Disconnect, stale opens are discarded
	send    func(gomidi.Message) error
	closeFn func() error

	// Notified after every state change (optional)
	OnState func(state ConnState, name string)
}

// NewOutput creates a disconnected output. A nil opener uses the system driver.
func NewOutput(open Opener) *Output {
	if open == nil {
		open = OpenPort
	}
	return &Output{open: open}
}

// OpenPort opens a system output port through gomidi
func OpenPort(name string) (func(gomidi.Message) error, func() error, error) {
	port, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, nil, err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, nil, err
	}
	return send, port.Close, nil
}

// OutPortNames lists the system output ports
func OutPortNames() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// State returns the connection state and port name
func (o *Output) State() (ConnState, string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state, o.name
}

// Connect opens the named port, closing any other open port first.
// Connecting to the already connected port is a no-op.
func (o *Output) Connect(name string) error {
	o.mu.Lock()
	if o.state != Disconnected && o.name == name {
		o.mu.Unlock()
		return nil
	}
	o.closeLocked()
	o.gen++
	gen := o.gen
	o.state = Connecting
	o.name = name
	o.mu.Unlock()
	o.notify(Connecting, name)

	// Port lookup can block on some platforms; don't hold the lock
	send, closeFn, err := o.open(name)

	o.mu.Lock()
	if o.gen != gen {
		// Superseded by another Connect/Disconnect while opening
		o.mu.Unlock()
		if closeFn != nil {
			closeFn()
		}
		return nil
	}
	if err != nil {
		o.state = Disconnected
		o.mu.Unlock()
		o.notify(Disconnected, name)
		return fault.Wrap(err,
			ftag.With(NoDevice),
			fmsg.WithDesc("open output port", "Could not open MIDI output \""+name+"\""))
	}
	o.send = send
	o.closeFn = closeFn
	o.state = Connected
	o.mu.Unlock()

	debug.Log("output", "connected to %s", name)
	o.notify(Connected, name)
	return nil
}

// Disconnect closes the port. Safe to call when already disconnected.
func (o *Output) Disconnect() {
	o.mu.Lock()
	if o.state == Disconnected {
		o.mu.Unlock()
		return
	}
	name := o.name
	o.closeLocked()
	o.gen++
	o.mu.Unlock()

	debug.Log("output", "disconnected from %s", name)
	o.notify(Disconnected, name)
}

func (o *Output) closeLocked() {
	if o.closeFn != nil {
		if err := o.closeFn(); err != nil {
			debug.Log("output", "close %s: %v", o.name, err)
		}
	}
	o.send = nil
	o.closeFn = nil
	o.state = Disconnected
}

// Send writes a raw message to the connected port
func (o *Output) Send(msg []byte) error {
	o.mu.RLock()
	send, state, name := o.send, o.state, o.name
	o.mu.RUnlock()

	if state != Connected || send == nil {
		return fault.New("midi output not connected",
			ftag.With(NoDevice),
			fmsg.WithDesc("no output", "No MIDI output selected"))
	}
	if err := send(gomidi.Message(msg)); err != nil {
		return fault.Wrap(err,
			ftag.With(NoDevice),
			fmsg.WithDesc("send failed", "Sending to \""+name+"\" failed"))
	}
	return nil
}

func (o *Output) notify(state ConnState, name string) {
	if o.OnState != nil {
		o.OnState(state, name)
	}
}
