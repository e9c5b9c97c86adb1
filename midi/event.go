package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Event is a decoded channel message from an input port
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // 0-15
	Note     uint8 // controller number for CC
	Velocity uint8 // controller value for CC
}

// IsRelease reports whether the event ends a held note (note-off or note-on with velocity 0)
func (e Event) IsRelease() bool {
	return e.Type == NoteOff || (e.Type == NoteOn && e.Velocity == 0)
}

// ParseEvent decodes a raw 2-3 byte message. Anything other than note-on,
// note-off or control-change is reported with ok=false.
func ParseEvent(raw []byte) (ev Event, ok bool) {
	if len(raw) < 2 || raw[0]&0x80 == 0 {
		return Event{}, false
	}

	status := raw[0] & 0xF0
	channel := raw[0] & 0x0F

	switch status {
	case NoteOn, NoteOff:
		// Two byte note messages carry no velocity; treat them as velocity 1
		velocity := uint8(1)
		if len(raw) > 2 {
			velocity = raw[2] & 0x7F
		}
		return Event{Type: status, Channel: channel, Note: raw[1] & 0x7F, Velocity: velocity}, true
	case CC:
		if len(raw) < 3 {
			return Event{}, false
		}
		var ch, controller, value uint8
		if gomidi.Message(raw[:3]).GetControlChange(&ch, &controller, &value) {
			return Event{Type: CC, Channel: ch, Note: controller, Velocity: value}, true
		}
	}
	return Event{}, false
}

// Bytes encodes the event back to its raw form
func (e Event) Bytes() []byte {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	}
	return nil
}
