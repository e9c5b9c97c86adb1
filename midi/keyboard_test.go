package midi

import (
	"sync"
	"testing"
)

func TestKeyboardInputDeliverAfterClose(t *testing.T) {
	kb, err := NewKeyboardInput("keys", nil)
	if err != nil {
		t.Fatal(err)
	}

	want := Event{Type: NoteOn, Channel: 1, Note: 60, Velocity: 100}
	kb.deliver(want)
	if got := <-kb.Events(); got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}

	// a driver callback racing Close must not send on the closed channel
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				kb.deliver(want)
			}
		}()
	}
	if err := kb.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	kb.deliver(want)

	if err := kb.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	for range kb.Events() {
	}
}

func TestKeyboardInputDropsWhenFull(t *testing.T) {
	kb, err := NewKeyboardInput("keys", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kb.Close()

	for i := 0; i < cap(kb.events)+10; i++ {
		kb.deliver(Event{Type: NoteOn, Note: uint8(i % 128), Velocity: 1})
	}
	if n := len(kb.events); n != cap(kb.events) {
		t.Errorf("queued = %d, want %d", n, cap(kb.events))
	}
}
