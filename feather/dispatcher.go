package feather

import (
	"slices"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-feather/debug"
	"go-feather/midi"
)

var errNoSender = fault.New("no output configured", ftag.With(midi.NoDevice))

// Sender writes raw MIDI messages to the output device
type Sender interface {
	Send(msg []byte) error
}

// Firing is one computed note to emit
type Firing struct {
	Pitch    uint8
	Velocity uint8
	Duration time.Duration
	Channel  uint8
}

// Voice is a currently sounding emitted note
type Voice struct {
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	Started  time.Time
}

// VoiceEventKind distinguishes lifecycle notifications
type VoiceEventKind int

const (
	NoteStarted VoiceEventKind = iota
	NoteStopped
)

// VoiceEvent is emitted when a voice starts or stops
type VoiceEvent struct {
	Kind     VoiceEventKind
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	At       time.Time
	Stolen   bool // stopped early by a new firing of the same pitch
}

type voice struct {
	Voice
	id    uint64
	timer clockwork.Timer
}

// Dispatcher sends fired notes and owns their note-off timers. At most one
// voice per pitch is sounding: a new firing of a sounding pitch stops the old
// one first, on its original channel.
type Dispatcher struct {
	out   Sender
	clock clockwork.Clock
	log   *log.Logger

	mu     sync.Mutex
	voices map[uint8]*voice
	nextID uint64

	listenersMu sync.RWMutex
	listeners   []func(VoiceEvent)

	sendErrors uint64
}

// NewDispatcher creates a dispatcher sending to out. A nil clock is the wall clock.
func NewDispatcher(out Sender, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		out:    out,
		clock:  clock,
		log:    debug.Logger("dispatch"),
		voices: make(map[uint8]*voice),
	}
}

// OnEvent registers a lifecycle listener. Listeners run outside the
// dispatcher lock and must not block.
func (d *Dispatcher) OnEvent(fn func(VoiceEvent)) {
	d.listenersMu.Lock()
	d.listeners = append(d.listeners, fn)
	d.listenersMu.Unlock()
}

// Fire starts a voice, stealing any voice already sounding on the same pitch.
// A send failure is returned and no voice is started.
func (d *Dispatcher) Fire(f Firing) error {
	now := d.clock.Now()
	var events []VoiceEvent

	d.mu.Lock()
	if old, ok := d.voices[f.Pitch]; ok {
		old.timer.Stop()
		delete(d.voices, f.Pitch)
		d.send(gomidi.NoteOff(old.Channel, old.Pitch))
		events = append(events, VoiceEvent{
			Kind: NoteStopped, Pitch: old.Pitch, Velocity: old.Velocity,
			Channel: old.Channel, At: now, Stolen: true,
		})
	}

	if err := d.send(gomidi.NoteOn(f.Channel, f.Pitch, f.Velocity)); err != nil {
		d.mu.Unlock()
		d.emit(events)
		return err
	}

	d.nextID++
	v := &voice{
		Voice: Voice{Pitch: f.Pitch, Velocity: f.Velocity, Channel: f.Channel, Started: now},
		id:    d.nextID,
	}
	id := v.id
	v.timer = d.clock.AfterFunc(f.Duration, func() { d.expire(f.Pitch, id) })
	d.voices[f.Pitch] = v
	d.mu.Unlock()

	events = append(events, VoiceEvent{
		Kind: NoteStarted, Pitch: f.Pitch, Velocity: f.Velocity, Channel: f.Channel, At: now,
	})
	d.emit(events)
	return nil
}

// expire ends voice id if it is still the one sounding on pitch
func (d *Dispatcher) expire(pitch uint8, id uint64) {
	d.mu.Lock()
	v, ok := d.voices[pitch]
	if !ok || v.id != id {
		// stolen or flushed meanwhile
		d.mu.Unlock()
		return
	}
	delete(d.voices, pitch)
	d.send(gomidi.NoteOff(v.Channel, v.Pitch))
	d.mu.Unlock()

	d.emit([]VoiceEvent{{
		Kind: NoteStopped, Pitch: v.Pitch, Velocity: v.Velocity, Channel: v.Channel, At: d.clock.Now(),
	}})
}

// FlushAll cancels every pending note-off timer and sends the note-offs now.
// Returns the number of voices stopped.
func (d *Dispatcher) FlushAll() int {
	now := d.clock.Now()

	d.mu.Lock()
	pitches := make([]uint8, 0, len(d.voices))
	for p := range d.voices {
		pitches = append(pitches, p)
	}
	slices.Sort(pitches)

	events := make([]VoiceEvent, 0, len(pitches))
	for _, p := range pitches {
		v := d.voices[p]
		v.timer.Stop()
		d.send(gomidi.NoteOff(v.Channel, v.Pitch))
		events = append(events, VoiceEvent{
			Kind: NoteStopped, Pitch: v.Pitch, Velocity: v.Velocity, Channel: v.Channel, At: now,
		})
	}
	clear(d.voices)
	d.mu.Unlock()

	if len(events) > 0 {
		d.log.Debug("flushed voices", "count", len(events))
	}
	d.emit(events)
	return len(events)
}

// Active returns the sounding voices ordered by pitch
func (d *Dispatcher) Active() []Voice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Voice, 0, len(d.voices))
	for _, v := range d.voices {
		out = append(out, v.Voice)
	}
	slices.SortFunc(out, func(a, b Voice) int { return int(a.Pitch) - int(b.Pitch) })
	return out
}

// SendErrors returns how many sends failed so far
func (d *Dispatcher) SendErrors() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendErrors
}

// send must be called with d.mu held
func (d *Dispatcher) send(msg []byte) error {
	if d.out == nil {
		d.sendErrors++
		return errNoSender
	}
	if err := d.out.Send(msg); err != nil {
		d.sendErrors++
		debug.LogEvery(100, "dispatch", "send failed: %v", err)
		return err
	}
	return nil
}

func (d *Dispatcher) emit(events []VoiceEvent) {
	if len(events) == 0 {
		return
	}
	d.listenersMu.RLock()
	listeners := d.listeners
	d.listenersMu.RUnlock()
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
