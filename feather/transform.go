package feather

import "math"

// Playable window for fired notes
const (
	LowestPitch  = 28
	HighestPitch = 126
)

// GenerateVelocity scales base by a factor drawn from 1+variation/100,
// clamped to a valid MIDI velocity. Zero is a legal result.
func GenerateVelocity(s *Sampler, base int, variation Range) int {
	factor := s.Triangular(1+variation.Min/100, 1+variation.Max/100)
	v := float64(base) * factor
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Min(math.Max(v, 0), 127))
}

// OctaveDelta returns the transposition in semitones. The -1 offset after
// flooring is long-standing behaviour and intentionally kept.
func OctaveDelta(s *Sampler, shift Range) int {
	value := shift.Min
	if shift.Min != shift.Max {
		value = s.Triangular(shift.Min, shift.Max)
	}
	return (int(math.Floor(value)) - 1) * 12
}

// ExtensionDelta returns a semitone offset from set, or 0. The gate is drawn
// from prob and an extension applies when a uniform draw exceeds it.
func ExtensionDelta(s *Sampler, prob Range, set ExtensionSet) int {
	gate := s.Triangular(prob.Min, prob.Max)
	if !(s.Float64() > gate) {
		return 0
	}
	members := set.Members()
	if len(members) == 0 {
		return 0
	}
	return members[s.IntN(len(members))]
}

// RepairPitch brings pitch+octave+extension into the playable window,
// dropping the octave first, then the extension, then clamping.
// clamped reports that the last resort was needed.
func RepairPitch(pitch, octave, extension int) (repaired int, clamped bool) {
	p := pitch + octave + extension
	if inWindow(p) {
		return p, false
	}
	p = pitch + extension
	if inWindow(p) {
		return p, false
	}
	p = pitch
	if inWindow(p) {
		return p, false
	}
	return min(max(p, LowestPitch), HighestPitch), true
}

func inWindow(p int) bool {
	return p >= LowestPitch && p <= HighestPitch
}

// PickChannel returns the only channel, or a uniform pick among several
func PickChannel(s *Sampler, channels []uint8) (uint8, bool) {
	switch len(channels) {
	case 0:
		return 0, false
	case 1:
		return channels[0], true
	}
	return channels[s.IntN(len(channels))], true
}
