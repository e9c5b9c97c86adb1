package feather

import (
	"maps"
	"sync"
	"time"

	"go-feather/midi"
)

// Omni accepts input on every channel
const Omni = -1

// HeldNote is a note currently held on the input controller
type HeldNote struct {
	Pitch    uint8
	Velocity uint8
	Since    time.Time
	Source   string // input that pressed the note, empty for direct calls
}

// HeldSource provides the held notes read by the scheduler
type HeldSource interface {
	Snapshot() map[uint8]HeldNote
}

// NoteTracker keeps the set of held input notes. A pitch is either held or
// not; repeated note-ons and stray note-offs are ignored.
type NoteTracker struct {
	mu       sync.RWMutex
	held     map[uint8]HeldNote
	controls map[uint8]uint8
	channel  int

	changes chan struct{}
}

// NewNoteTracker tracks notes on channel (0-15) or every channel with Omni
func NewNoteTracker(channel int) *NoteTracker {
	return &NoteTracker{
		held:     make(map[uint8]HeldNote),
		controls: make(map[uint8]uint8),
		channel:  channel,
		changes:  make(chan struct{}, 1),
	}
}

// SetChannel changes the input channel filter
func (t *NoteTracker) SetChannel(channel int) {
	t.mu.Lock()
	t.channel = channel
	t.mu.Unlock()
}

// Channel returns the input channel filter
func (t *NoteTracker) Channel() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.channel
}

// Handle applies an input event; it returns true when the held set changed
func (t *NoteTracker) Handle(ev midi.Event, at time.Time) bool {
	return t.HandleFrom("", ev, at)
}

// HandleFrom applies an event received on the named input. A note-off
// releases the pitch whichever input pressed it.
func (t *NoteTracker) HandleFrom(source string, ev midi.Event, at time.Time) bool {
	t.mu.Lock()
	if t.channel != Omni && int(ev.Channel) != t.channel {
		t.mu.Unlock()
		return false
	}

	changed := false
	switch {
	case ev.Type == midi.CC:
		t.controls[ev.Note] = ev.Velocity
	case ev.IsRelease():
		if _, ok := t.held[ev.Note]; ok {
			delete(t.held, ev.Note)
			changed = true
		}
	case ev.Type == midi.NoteOn:
		if _, ok := t.held[ev.Note]; !ok {
			t.held[ev.Note] = HeldNote{Pitch: ev.Note, Velocity: ev.Velocity, Since: at, Source: source}
			changed = true
		}
	}
	t.mu.Unlock()

	if changed {
		t.notify()
	}
	return changed
}

// HandleRaw parses and applies a raw message; unknown messages are ignored
func (t *NoteTracker) HandleRaw(raw []byte, at time.Time) bool {
	ev, ok := midi.ParseEvent(raw)
	if !ok {
		return false
	}
	return t.Handle(ev, at)
}

// Consume applies events from the named input until the channel is closed,
// then releases the notes that input was holding.
func (t *NoteTracker) Consume(source string, events <-chan midi.Event, now func() time.Time) {
	for ev := range events {
		t.HandleFrom(source, ev, now())
	}
	t.ResetSource(source)
}

// Snapshot returns a copy of the held notes
func (t *NoteTracker) Snapshot() map[uint8]HeldNote {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.held)
}

// Controls returns the last value seen for each controller number
func (t *NoteTracker) Controls() map[uint8]uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.controls)
}

// Len returns the number of held notes
func (t *NoteTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.held)
}

// Reset releases every held note (input disconnected)
func (t *NoteTracker) Reset() {
	t.mu.Lock()
	n := len(t.held)
	clear(t.held)
	t.mu.Unlock()
	if n > 0 {
		t.notify()
	}
}

// ResetSource releases the notes pressed on one input and returns how many
// were released
func (t *NoteTracker) ResetSource(source string) int {
	t.mu.Lock()
	n := len(t.held)
	maps.DeleteFunc(t.held, func(_ uint8, h HeldNote) bool { return h.Source == source })
	n -= len(t.held)
	t.mu.Unlock()
	if n > 0 {
		t.notify()
	}
	return n
}

// Changes signals (coalesced) whenever the held set changes
func (t *NoteTracker) Changes() <-chan struct{} {
	return t.changes
}

func (t *NoteTracker) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}
