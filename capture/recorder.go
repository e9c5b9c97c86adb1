package capture

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-feather/debug"
	"go-feather/feather"
)

const (
	Resolution = smf.MetricTicks(960)
	TempoBPM   = 120.0
)

type recorded struct {
	at  time.Duration // since Start
	msg gomidi.Message
}

// Recorder captures the fired voices of a take so it can be saved as a
// Standard MIDI File. Register Handle as a dispatcher listener.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	start     time.Time
	stop      time.Time
	events    []recorded
	sounding  map[uint8]uint8 // pitch -> channel

	Now func() time.Time
}

// NewRecorder creates an idle recorder
func NewRecorder() *Recorder {
	return &Recorder{sounding: make(map[uint8]uint8)}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Start begins a new take, discarding the previous one
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.start = r.now()
	r.events = nil
	clear(r.sounding)
	debug.Log("capture", "take started")
}

// Stop ends the take; voices still sounding are closed at the stop time.
// Returns the number of recorded notes.
func (r *Recorder) Stop() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return r.notesLocked()
	}
	r.recording = false
	r.stop = r.now()
	at := r.stop.Sub(r.start)
	for pitch, ch := range r.sounding {
		r.events = append(r.events, recorded{at: at, msg: gomidi.NoteOff(ch, pitch)})
	}
	clear(r.sounding)
	n := r.notesLocked()
	debug.Log("capture", "take stopped with %d notes", n)
	return n
}

// Recording reports whether a take is in progress
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Notes returns the number of note-ons in the current take
func (r *Recorder) Notes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notesLocked()
}

func (r *Recorder) notesLocked() int {
	n := 0
	var ch, key, vel uint8
	for _, ev := range r.events {
		if ev.msg.GetNoteOn(&ch, &key, &vel) {
			n++
		}
	}
	return n
}

// Handle records a voice lifecycle event
func (r *Recorder) Handle(ev feather.VoiceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || ev.At.Before(r.start) {
		return
	}
	at := ev.At.Sub(r.start)
	switch ev.Kind {
	case feather.NoteStarted:
		// velocity 0 would read back as a note-off
		if ev.Velocity == 0 {
			return
		}
		r.events = append(r.events, recorded{at: at, msg: gomidi.NoteOn(ev.Channel, ev.Pitch, ev.Velocity)})
		r.sounding[ev.Pitch] = ev.Channel
	case feather.NoteStopped:
		if _, ok := r.sounding[ev.Pitch]; !ok {
			return
		}
		delete(r.sounding, ev.Pitch)
		r.events = append(r.events, recorded{at: at, msg: gomidi.NoteOff(ev.Channel, ev.Pitch)})
	}
}

func toTicks(d time.Duration) uint32 {
	quarter := time.Duration(float64(time.Minute) / TempoBPM)
	return uint32(float64(d) / float64(quarter) * float64(Resolution))
}

// SMF builds the file for the recorded take: a tempo track and a note track
func (r *Recorder) SMF() (*smf.SMF, error) {
	r.mu.Lock()
	events := append([]recorded(nil), r.events...)
	length := r.stop.Sub(r.start)
	if r.recording {
		length = r.now().Sub(r.start)
	}
	r.mu.Unlock()

	if len(events) == 0 {
		return nil, fault.New("empty take",
			ftag.With(ftag.NotFound),
			fmsg.WithDesc("empty take", "Nothing was captured"))
	}

	sm := smf.New()
	sm.TimeFormat = Resolution

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(TempoBPM))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return nil, fault.Wrap(err, fmsg.With("add tempo track"))
	}

	var notes smf.Track
	var last uint32
	for _, ev := range events {
		abs := toTicks(ev.at)
		if abs < last {
			abs = last
		}
		notes.Add(abs-last, ev.msg)
		last = abs
	}
	end := toTicks(length)
	if end < last {
		end = last
	}
	notes.Close(end - last)
	if err := sm.Add(notes); err != nil {
		return nil, fault.Wrap(err, fmsg.With("add note track"))
	}
	return sm, nil
}

// WriteFile saves the take to path
func (r *Recorder) WriteFile(path string) error {
	sm, err := r.SMF()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create capture dir"))
	}
	if err := sm.WriteFile(path); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write take", "Could not write "+path))
	}
	debug.Log("capture", "wrote %s", path)
	return nil
}

// Save writes the take into dir under a timestamped name and returns the path
func (r *Recorder) Save(dir string) (string, error) {
	r.mu.Lock()
	start := r.start
	r.mu.Unlock()
	path := filepath.Join(dir, "take_"+start.Format("2006-01-02_15-04-05")+".mid")
	return path, r.WriteFile(path)
}
