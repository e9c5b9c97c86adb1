package feather

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// pendingTimers counts the timers still waiting on the clock
func pendingTimers(c *clockwork.FakeClock) int {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := 0
	for c.BlockUntilContext(ctx, n+1) == nil {
		n++
	}
	return n
}

// waitTimers blocks until at least n timers are waiting on the clock
func waitTimers(t *testing.T, c *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

// eventually polls cond; timer callbacks of the fake clock run on their own goroutine
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// recordingSender keeps every message sent
type recordingSender struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (r *recordingSender) Send(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, slices.Clone(msg))
	return nil
}

func (r *recordingSender) sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.msgs)
}

// recordingFirer keeps every firing
type recordingFirer struct {
	mu      sync.Mutex
	firings []Firing
	flushes int
}

func (r *recordingFirer) Fire(f Firing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, f)
	return nil
}

func (r *recordingFirer) FlushAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return 0
}

func (r *recordingFirer) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func (r *recordingFirer) all() []Firing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.firings)
}

func (r *recordingFirer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.firings)
}

// staticHeld is a fixed HeldSource
type staticHeld map[uint8]HeldNote

func (h staticHeld) Snapshot() map[uint8]HeldNote { return h }

func heldPitches(pitches ...uint8) staticHeld {
	h := staticHeld{}
	for _, p := range pitches {
		h[p] = HeldNote{Pitch: p, Velocity: 100}
	}
	return h
}

// eventLog collects dispatcher events from any goroutine
type eventLog struct {
	mu     sync.Mutex
	events []VoiceEvent
}

func (l *eventLog) record(ev VoiceEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []VoiceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}
