package feather

import (
	"math"
	"sync"
	"testing"

	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

func TestDefaultSettingsValid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if s.Ranges.PlayMode != Poly {
		t.Errorf("play mode = %v, want POLY", s.Ranges.PlayMode)
	}
	if len(s.OutputChannels) != 1 || s.OutputChannels[0] != DefaultOutputChannel {
		t.Errorf("channels = %v, want [%d]", s.OutputChannels, DefaultOutputChannel)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Settings)
	}{
		{"inverted", func(s *Settings) { s.Ranges.Speed = Range{500, 100} }},
		{"below extent", func(s *Settings) { s.Ranges.BPS = Range{0, 10} }},
		{"above extent", func(s *Settings) { s.Ranges.PolyphonyProbability = Range{0, 1.5} }},
		{"nan", func(s *Settings) { s.Ranges.VelocityVariation = Range{math.NaN(), 0} }},
		{"inf", func(s *Settings) { s.Ranges.OctaveShift = Range{0, math.Inf(1)} }},
		{"play mode", func(s *Settings) { s.Ranges.PlayMode = 7 }},
		{"channel", func(s *Settings) { s.OutputChannels = []uint8{16} }},
		{"extension bit 0", func(s *Settings) { s.Extensions = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.edit(&s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if ftag.Get(err) != ftag.InvalidArgument {
				t.Errorf("kind = %q, want %q", ftag.Get(err), ftag.InvalidArgument)
			}
			if fmsg.GetIssue(err) == "" {
				t.Error("missing user-facing message")
			}
		})
	}
}

func TestStoreRejectsInvalidEdit(t *testing.T) {
	store, err := NewStore(DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	before := store.Load()

	err = store.Update(func(s *Settings) { s.Ranges.BPS = Range{20, 5} })
	if err == nil {
		t.Fatal("inverted range accepted")
	}
	if store.Load() != before {
		t.Error("failed edit replaced the settings")
	}
	if store.Load().Ranges.BPS != Specs[KeyBPS].Extent {
		t.Errorf("bps = %v, want unchanged", store.Load().Ranges.BPS)
	}
}

func TestStoreUpdateNotifies(t *testing.T) {
	store, _ := NewStore(DefaultSettings())
	var got *Settings
	store.OnChange = func(s *Settings) { got = s }

	if err := store.Update(func(s *Settings) { s.Ranges.BPS = Range{4, 8} }); err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Ranges.BPS != (Range{4, 8}) {
		t.Errorf("OnChange got %+v", got)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	initial := DefaultSettings()
	store, _ := NewStore(initial)
	initial.OutputChannels[0] = 3
	if store.Load().OutputChannels[0] != DefaultOutputChannel {
		t.Error("store shares channel slice with caller")
	}

	snap := store.Load()
	store.Update(func(s *Settings) { s.OutputChannels = append(s.OutputChannels, 4) })
	if len(snap.OutputChannels) != 1 {
		t.Error("update modified an earlier snapshot")
	}
}

func TestStoreConcurrentEditsNeverTear(t *testing.T) {
	store, _ := NewStore(DefaultSettings())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			v := float64(i%20 + 1)
			store.Update(func(s *Settings) { s.Ranges.BPS = Range{v, v} })
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		r := store.Load().Ranges.BPS
		if r.Min != r.Max && r != Specs[KeyBPS].Extent {
			t.Fatalf("torn range %v", r)
		}
	}
}

func TestExtensionSet(t *testing.T) {
	var e ExtensionSet
	e = e.Enable(1).Enable(7).Toggle(11).Toggle(1)
	if got := e.Members(); len(got) != 2 || got[0] != 7 || got[1] != 11 {
		t.Errorf("members = %v, want [7 11]", got)
	}
	if e.String() != "V VII" {
		t.Errorf("String = %q", e.String())
	}
	if e.Enable(12) != e || e.Toggle(0) != e {
		t.Error("offsets outside 1-11 changed the set")
	}
}

func TestRangeConfigurationGetSet(t *testing.T) {
	c := DefaultRanges()
	for key := RangeKey(0); key < NumRangeKeys; key++ {
		c.Set(key, Range{0.25, 0.5})
		if c.Get(key) != (Range{0.25, 0.5}) {
			t.Errorf("key %s not stored", Specs[key].Name)
		}
	}
}
