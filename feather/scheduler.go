package feather

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"go-feather/debug"
)

// FallbackDelay is used when the sampled rate is unusable or a tick failed
const FallbackDelay = 100 * time.Millisecond

// Firer receives the firings of a tick
type Firer interface {
	Fire(Firing) error
}

// Stats counts scheduler activity since creation
type Stats struct {
	Ticks    uint64
	Firings  uint64
	Repaired uint64 // pitches that needed clamping
	Panics   uint64
	Errors   uint64 // firings the output rejected
}

// Scheduler is the feathering loop: on every tick it re-fires some of the
// held notes with varied pitch, velocity and duration, then waits a randomly
// drawn interval before the next tick.
type Scheduler struct {
	held    HeldSource
	store   *Store
	out     Firer
	sampler *Sampler
	clock   clockwork.Clock
	log     *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	ticks, firings, repaired, panics, errors atomic.Uint64
}

// NewScheduler creates a stopped scheduler. A nil sampler or clock gets the
// random and wall-clock defaults.
func NewScheduler(held HeldSource, store *Store, out Firer, sampler *Sampler, clock clockwork.Clock) *Scheduler {
	if sampler == nil {
		sampler = NewRandomSampler()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		held:    held,
		store:   store,
		out:     out,
		sampler: sampler,
		clock:   clock,
		log:     debug.Logger("scheduler"),
	}
}

// Plan selects the pitches that fire for held and computes each firing.
// It does not send anything.
func (s *Scheduler) Plan(held map[uint8]HeldNote, settings *Settings) []Firing {
	if len(held) == 0 {
		return nil
	}
	if len(settings.OutputChannels) == 0 {
		debug.LogEvery(50, "scheduler", "no output channel selected, nothing fires")
		return nil
	}

	pitches := make([]uint8, 0, len(held))
	for p := range held {
		pitches = append(pitches, p)
	}
	slices.Sort(pitches)

	r := &settings.Ranges
	var selected []uint8
	switch r.PlayMode {
	case Mono:
		selected = []uint8{pitches[s.sampler.IntN(len(pitches))]}
	default:
		for _, p := range pitches {
			gate := s.sampler.Triangular(0, 1)
			if r.PolyphonyProbability.Min < gate && gate < r.PolyphonyProbability.Max {
				selected = append(selected, p)
			}
		}
	}

	firings := make([]Firing, 0, len(selected))
	for _, p := range selected {
		note := held[p]
		durationMs := s.sampler.Triangular(r.Speed.Min, r.Speed.Max)
		velocity := GenerateVelocity(s.sampler, int(note.Velocity), r.VelocityVariation)
		octave := OctaveDelta(s.sampler, r.OctaveShift)
		extension := ExtensionDelta(s.sampler, r.ExtensionProbability, settings.Extensions)

		pitch, clamped := RepairPitch(int(p), octave, extension)
		if clamped {
			s.repaired.Add(1)
			s.log.Warn("pitch clamped", "held", p, "octave", octave, "extension", extension, "pitch", pitch)
		}

		channel, _ := PickChannel(s.sampler, settings.OutputChannels)
		firings = append(firings, Firing{
			Pitch:    uint8(pitch),
			Velocity: uint8(velocity),
			Duration: msDuration(durationMs),
			Channel:  channel,
		})
	}
	return firings
}

// NextDelay draws the interval until the next tick from the bps range
func (s *Scheduler) NextDelay(bps Range) time.Duration {
	rate := s.sampler.Triangular(bps.Min, bps.Max)
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return FallbackDelay
	}
	return msDuration(1000 / rate)
}

// Tick runs one scheduler step and returns the delay before the next one.
// A panic inside the step is recovered and the fallback delay returned.
func (s *Scheduler) Tick() (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.log.Error("tick panicked", "panic", fmt.Sprint(r))
			next = FallbackDelay
		}
	}()

	s.ticks.Add(1)
	settings := s.store.Load()
	firings := s.Plan(s.held.Snapshot(), settings)

	// everything is computed before the first send of the tick
	for _, f := range firings {
		if err := s.out.Fire(f); err != nil {
			s.errors.Add(1)
			debug.LogEvery(50, "scheduler", "fire %d failed: %v", f.Pitch, err)
			continue
		}
		s.firings.Add(1)
	}
	return s.NextDelay(settings.Ranges.BPS)
}

// Start launches the loop. It returns false if the loop is already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		if s.running.Load() {
			return false
		}
		// loop ended with its parent context
		s.cancel()
		<-s.done
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	go s.loop(ctx, s.done)
	s.log.Info("started")
	return true
}

// loop ticks until ctx is done. However it ends, the sounding voices are
// released before Running reports false.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)
	defer s.flush()
	for {
		delay := s.Tick()
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
	}
}

// Stop cancels the pending wait and waits for the loop to exit, which flushes
// the sounding voices. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("stopped")
}

// flush sends the note-offs of every sounding voice if the output keeps voices
func (s *Scheduler) flush() {
	if f, ok := s.out.(interface{ FlushAll() int }); ok {
		if n := f.FlushAll(); n > 0 {
			s.log.Debug("released voices", "count", n)
		}
	}
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns the activity counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:    s.ticks.Load(),
		Firings:  s.firings.Load(),
		Repaired: s.repaired.Load(),
		Panics:   s.panics.Load(),
		Errors:   s.errors.Load(),
	}
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
