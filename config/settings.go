package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-feather/feather"
)

// settingsFile is the on-disk form of feather.Settings. Ranges are pointers
// so a missing key can be told apart from a zero range.
type settingsFile struct {
	BPS            *feather.Range `json:"bpsRange" yaml:"bpsRange"`
	Speed          *feather.Range `json:"speedRange" yaml:"speedRange"`
	Velocity       *feather.Range `json:"velocityRange" yaml:"velocityRange"`
	Octave         *feather.Range `json:"octaveRange" yaml:"octaveRange"`
	PolyProb       *feather.Range `json:"polyProbRange" yaml:"polyProbRange"`
	ExtensionsProb *feather.Range `json:"extensionsProbRange" yaml:"extensionsProbRange"`
	OutputChannels []int          `json:"midiOutputChannels" yaml:"midiOutputChannels"` // 1-16
	PlayMode       string         `json:"playMode,omitempty" yaml:"playMode,omitempty"`
	Extensions     []int          `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

type rangeField struct {
	key  feather.RangeKey
	name string
	r    *feather.Range
}

func (f *settingsFile) ranges() []rangeField {
	return []rangeField{
		{feather.KeyBPS, "bpsRange", f.BPS},
		{feather.KeySpeed, "speedRange", f.Speed},
		{feather.KeyVelocity, "velocityRange", f.Velocity},
		{feather.KeyOctave, "octaveRange", f.Octave},
		{feather.KeyPolyphony, "polyProbRange", f.PolyProb},
		{feather.KeyExtension, "extensionsProbRange", f.ExtensionsProb},
	}
}

// LoadSettings reads a settings file (JSON, or YAML). Every range must be
// present with minValue <= maxValue; a bad file is rejected as a whole.
func LoadSettings(path string) (feather.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return feather.Settings{}, fault.Wrap(err,
				ftag.With(ftag.NotFound),
				fmsg.WithDesc("settings not found", "No settings file at "+path))
		}
		return feather.Settings{}, fault.Wrap(err, fmsg.With("read settings"))
	}
	return ParseSettings(path, data)
}

// ParseSettings decodes settings data; path only selects the format
func ParseSettings(path string, data []byte) (feather.Settings, error) {
	var f settingsFile
	if err := unmarshal(path, data, &f); err != nil {
		return feather.Settings{}, rejected(filepath.Base(path) + " is not valid JSON or YAML")
	}

	s := feather.Settings{}
	for _, r := range f.ranges() {
		if r.r == nil {
			return feather.Settings{}, rejected(fmt.Sprintf("%s is missing", r.name))
		}
		if r.r.Min > r.r.Max {
			return feather.Settings{}, rejected(fmt.Sprintf("%s minValue %g is greater than maxValue %g", r.name, r.r.Min, r.r.Max))
		}
		s.Ranges.Set(r.key, *r.r)
	}

	switch strings.ToUpper(f.PlayMode) {
	case "", "POLY":
		s.Ranges.PlayMode = feather.Poly
	case "MONO":
		s.Ranges.PlayMode = feather.Mono
	default:
		return feather.Settings{}, rejected(fmt.Sprintf("unknown playMode %q", f.PlayMode))
	}

	for _, ch := range f.OutputChannels {
		if ch < 1 || ch > 16 {
			return feather.Settings{}, rejected(fmt.Sprintf("output channel %d is out of range 1-16", ch))
		}
		s.OutputChannels = append(s.OutputChannels, uint8(ch-1))
	}
	for _, e := range f.Extensions {
		if e < 1 || e > 11 {
			return feather.Settings{}, rejected(fmt.Sprintf("extension %d is out of range 1-11", e))
		}
		s.Extensions = s.Extensions.Enable(e)
	}

	if err := s.Validate(); err != nil {
		return feather.Settings{}, err
	}
	return s, nil
}

// SaveSettings writes s as JSON, or YAML for .yaml/.yml paths
func SaveSettings(path string, s feather.Settings) error {
	r := s.Ranges
	f := settingsFile{
		BPS:            &r.BPS,
		Speed:          &r.Speed,
		Velocity:       &r.VelocityVariation,
		Octave:         &r.OctaveShift,
		PolyProb:       &r.PolyphonyProbability,
		ExtensionsProb: &r.ExtensionProbability,
		OutputChannels: []int{},
		PlayMode:       r.PlayMode.String(),
		Extensions:     s.Extensions.Members(),
	}
	for _, ch := range s.OutputChannels {
		f.OutputChannels = append(f.OutputChannels, int(ch)+1)
	}

	data, err := marshal(path, f)
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode settings"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create settings dir"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write settings", "Could not write "+path))
	}
	return nil
}

func rejected(desc string) error {
	return fault.New("invalid settings file",
		ftag.With(ftag.InvalidArgument),
		fmsg.WithDesc(desc, "Settings rejected: "+desc))
}
