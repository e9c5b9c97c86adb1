package feather

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Range is an inclusive [Min,Max] pair edited as a two-handle slider
type Range struct {
	Min float64 `json:"minValue" yaml:"minValue"`
	Max float64 `json:"maxValue" yaml:"maxValue"`
}

// Width returns Max-Min
func (r Range) Width() float64 { return r.Max - r.Min }

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Clamp limits v to the range
func (r Range) Clamp(v float64) float64 { return math.Min(math.Max(v, r.Min), r.Max) }

func (r Range) String() string {
	return fmt.Sprintf("%g..%g", r.Min, r.Max)
}

// RangeKey names one of the ranges of a RangeConfiguration
type RangeKey int

const (
	KeyBPS RangeKey = iota
	KeySpeed
	KeyVelocity
	KeyOctave
	KeyPolyphony
	KeyExtension
	NumRangeKeys
)

// RangeSpec describes the domain bounds and editing step of a range
type RangeSpec struct {
	Name   string
	Label  string
	Unit   string
	Extent Range
	Step   float64
}

// Specs lists every range in display order
var Specs = [NumRangeKeys]RangeSpec{
	KeyBPS:       {Name: "bps", Label: "Notes/sec", Extent: Range{1, 30}, Step: 1},
	KeySpeed:     {Name: "speed", Label: "Speed", Unit: "ms", Extent: Range{10, 6000}, Step: 10},
	KeyVelocity:  {Name: "velocityVariation", Label: "Velocity", Unit: "%", Extent: Range{-100, 100}, Step: 5},
	KeyOctave:    {Name: "octaveShift", Label: "Octaves", Extent: Range{-3, 3}, Step: 1},
	KeyPolyphony: {Name: "polyphonyProbability", Label: "Polyphony", Extent: Range{0, 1}, Step: 0.05},
	KeyExtension: {Name: "extensionProbability", Label: "Extensions", Extent: Range{0, 1}, Step: 0.05},
}

// PlayMode selects how many held notes fire per tick
type PlayMode int

const (
	Mono PlayMode = iota // exactly one held note per tick
	Poly                 // each held note gated independently
)

func (m PlayMode) String() string {
	if m == Mono {
		return "MONO"
	}
	return "POLY"
}

// RangeConfiguration is the set of ranges the scheduler samples from
type RangeConfiguration struct {
	BPS                  Range    `json:"bps" yaml:"bps"`
	Speed                Range    `json:"speed" yaml:"speed"`
	VelocityVariation    Range    `json:"velocityVariation" yaml:"velocityVariation"`
	OctaveShift          Range    `json:"octaveShift" yaml:"octaveShift"`
	PolyphonyProbability Range    `json:"polyphonyProbability" yaml:"polyphonyProbability"`
	ExtensionProbability Range    `json:"extensionProbability" yaml:"extensionProbability"`
	PlayMode             PlayMode `json:"playMode" yaml:"playMode"`
}

// Get returns the range for key
func (c *RangeConfiguration) Get(key RangeKey) Range {
	return *c.ptr(key)
}

// Set replaces the range for key (unvalidated)
func (c *RangeConfiguration) Set(key RangeKey, r Range) {
	*c.ptr(key) = r
}

func (c *RangeConfiguration) ptr(key RangeKey) *Range {
	switch key {
	case KeyBPS:
		return &c.BPS
	case KeySpeed:
		return &c.Speed
	case KeyVelocity:
		return &c.VelocityVariation
	case KeyOctave:
		return &c.OctaveShift
	case KeyPolyphony:
		return &c.PolyphonyProbability
	case KeyExtension:
		return &c.ExtensionProbability
	}
	panic(fmt.Sprintf("unknown range key %d", key))
}

// Validate checks every range against its extent
func (c *RangeConfiguration) Validate() error {
	for key := RangeKey(0); key < NumRangeKeys; key++ {
		spec := Specs[key]
		r := c.Get(key)
		switch {
		case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0):
			return invalid(fmt.Sprintf("%s range is not a number", spec.Label))
		case r.Min > r.Max:
			return invalid(fmt.Sprintf("%s range is inverted (%g > %g)", spec.Label, r.Min, r.Max))
		case !spec.Extent.Contains(r.Min) || !spec.Extent.Contains(r.Max):
			return invalid(fmt.Sprintf("%s range %s is outside %s", spec.Label, r, spec.Extent))
		}
	}
	if c.PlayMode != Mono && c.PlayMode != Poly {
		return invalid(fmt.Sprintf("unknown play mode %d", c.PlayMode))
	}
	return nil
}

func invalid(desc string) error {
	return fault.New("invalid range configuration",
		ftag.With(ftag.InvalidArgument),
		fmsg.WithDesc(desc, desc))
}

// ExtensionSet is a set of semitone offsets 1..11 (bit n set = offset n enabled)
type ExtensionSet uint16

const allExtensions ExtensionSet = 0x0FFE

// ExtensionLabels are the scale-degree names of offsets 1..11 (index 0 unused)
var ExtensionLabels = [12]string{"", "♭II", "II", "♭III", "III", "IV", "♭V", "V", "♭VI", "VI", "♭VII", "VII"}

// Has reports whether offset is enabled
func (e ExtensionSet) Has(offset int) bool {
	return offset >= 1 && offset <= 11 && e&(1<<offset) != 0
}

// Enable returns the set with offset added
func (e ExtensionSet) Enable(offset int) ExtensionSet {
	if offset < 1 || offset > 11 {
		return e
	}
	return e | 1<<offset
}

// Toggle returns the set with offset flipped
func (e ExtensionSet) Toggle(offset int) ExtensionSet {
	if offset < 1 || offset > 11 {
		return e
	}
	return e ^ 1<<offset
}

// Members lists the enabled offsets in ascending order
func (e ExtensionSet) Members() []int {
	var out []int
	for i := 1; i <= 11; i++ {
		if e.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

func (e ExtensionSet) String() string {
	var names []string
	for _, m := range e.Members() {
		names = append(names, ExtensionLabels[m])
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

// Settings is everything the scheduler reads on a tick
type Settings struct {
	Ranges         RangeConfiguration
	Extensions     ExtensionSet
	OutputChannels []uint8 // 0-based
}

// DefaultOutputChannel is MIDI channel 10, zero-based
const DefaultOutputChannel uint8 = 9

// DefaultRanges uses the full extent of every range
func DefaultRanges() RangeConfiguration {
	var c RangeConfiguration
	for key := RangeKey(0); key < NumRangeKeys; key++ {
		c.Set(key, Specs[key].Extent)
	}
	c.PlayMode = Poly
	return c
}

// DefaultSettings returns the startup settings
func DefaultSettings() Settings {
	return Settings{
		Ranges:         DefaultRanges(),
		OutputChannels: []uint8{DefaultOutputChannel},
	}
}

// Validate checks ranges, extensions and channels
func (s *Settings) Validate() error {
	if err := s.Ranges.Validate(); err != nil {
		return err
	}
	if s.Extensions&^allExtensions != 0 {
		return invalid("extension offsets must be 1-11")
	}
	for _, ch := range s.OutputChannels {
		if ch > 15 {
			return invalid(fmt.Sprintf("output channel %d is out of range 1-16", int(ch)+1))
		}
	}
	return nil
}

// Clone returns a deep copy
func (s Settings) Clone() Settings {
	s.OutputChannels = slices.Clone(s.OutputChannels)
	return s
}

// Store holds the current settings as an immutable snapshot. Readers never
// observe a partially applied edit.
type Store struct {
	cur atomic.Pointer[Settings]

	// Notified after every successful change (optional)
	OnChange func(*Settings)
}

// NewStore validates initial and stores it
func NewStore(initial Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	c := initial.Clone()
	s.cur.Store(&c)
	return s, nil
}

// Load returns the current snapshot; callers must not modify it
func (s *Store) Load() *Settings {
	return s.cur.Load()
}

// Update applies edit to a copy, validates it and swaps it in.
// On error the previous settings stay current.
func (s *Store) Update(edit func(*Settings)) error {
	for {
		old := s.cur.Load()
		next := old.Clone()
		edit(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		if s.cur.CompareAndSwap(old, &next) {
			if s.OnChange != nil {
				s.OnChange(&next)
			}
			return nil
		}
	}
}

// Replace validates and installs a complete settings value
func (s *Store) Replace(next Settings) error {
	return s.Update(func(cur *Settings) { *cur = next.Clone() })
}
