package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-feather/feather"
)

const fullSettings = `{
  "bpsRange": {"minValue": 2, "maxValue": 8},
  "speedRange": {"minValue": 100, "maxValue": 400},
  "velocityRange": {"minValue": -20, "maxValue": 10},
  "octaveRange": {"minValue": 0, "maxValue": 2},
  "polyProbRange": {"minValue": 0.2, "maxValue": 0.9},
  "extensionsProbRange": {"minValue": 0, "maxValue": 0.5},
  "midiOutputChannels": [1, 10],
  "playMode": "MONO",
  "extensions": [4, 7]
}`

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings("settings.json", []byte(fullSettings))
	if err != nil {
		t.Fatal(err)
	}
	if s.Ranges.BPS != (feather.Range{Min: 2, Max: 8}) {
		t.Errorf("bps = %v", s.Ranges.BPS)
	}
	if s.Ranges.PlayMode != feather.Mono {
		t.Errorf("play mode = %v", s.Ranges.PlayMode)
	}
	if len(s.OutputChannels) != 2 || s.OutputChannels[0] != 0 || s.OutputChannels[1] != 9 {
		t.Errorf("channels = %v, want [0 9]", s.OutputChannels)
	}
	if !s.Extensions.Has(4) || !s.Extensions.Has(7) || s.Extensions.Has(5) {
		t.Errorf("extensions = %v", s.Extensions)
	}
}

func TestParseSettingsRejects(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		msg     string
	}{
		{"inverted", [2]string{`"minValue": 2, "maxValue": 8`, `"minValue": 9, "maxValue": 8`}, "bpsRange"},
		{"missing range", [2]string{`"octaveRange": {"minValue": 0, "maxValue": 2},`, ``}, "octaveRange is missing"},
		{"out of extent", [2]string{`"minValue": 100, "maxValue": 400`, `"minValue": 1, "maxValue": 400`}, "Speed"},
		{"bad channel", [2]string{`[1, 10]`, `[0]`}, "channel"},
		{"bad mode", [2]string{`"MONO"`, `"STEREO"`}, "playMode"},
		{"bad extension", [2]string{`[4, 7]`, `[12]`}, "extension"},
		{"garbage", [2]string{`{`, `{{`}, "not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(fullSettings, tt.replace[0], tt.replace[1], 1)
			_, err := ParseSettings("settings.json", []byte(data))
			if err == nil {
				t.Fatal("expected rejection")
			}
			if ftag.Get(err) != ftag.InvalidArgument {
				t.Errorf("kind = %q", ftag.Get(err))
			}
			if issue := fmsg.GetIssue(err); !strings.Contains(issue, tt.msg) {
				t.Errorf("message %q does not mention %q", issue, tt.msg)
			}
		})
	}
}

func TestSaveLoadSettings(t *testing.T) {
	want := feather.DefaultSettings()
	want.Ranges.Speed = feather.Range{Min: 40, Max: 90}
	want.Ranges.PlayMode = feather.Mono
	want.Extensions = want.Extensions.Enable(3).Enable(10)
	want.OutputChannels = []uint8{0, 15}

	for _, name := range []string{"s.json", "s.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SaveSettings(path, want); err != nil {
				t.Fatal(err)
			}
			got, err := LoadSettings(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Ranges != want.Ranges || got.Extensions != want.Extensions {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if len(got.OutputChannels) != 2 || got.OutputChannels[1] != 15 {
				t.Errorf("channels = %v", got.OutputChannels)
			}
		})
	}
}

func TestSaveSettingsWritesOneBasedChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	SaveSettings(path, feather.DefaultSettings())
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"midiOutputChannels": [`) || !strings.Contains(string(data), "10") {
		t.Errorf("file does not store channel 10:\n%s", data)
	}
}

func TestLoadSettingsMissing(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
	if ftag.Get(err) != ftag.NotFound {
		t.Errorf("kind = %q, want not found", ftag.Get(err))
	}
}

func TestPresets(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Presets{Dir: t.TempDir(), Now: func() time.Time { return clock }}

	if list, err := p.List(); err != nil || len(list) != 0 {
		t.Fatalf("empty dir: %v %v", list, err)
	}

	first := feather.DefaultSettings()
	first.Ranges.BPS = feather.Range{Min: 3, Max: 3}
	if _, err := p.Save("slow pad", first); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(time.Minute)
	second := feather.DefaultSettings()
	second.Ranges.BPS = feather.Range{Min: 20, Max: 25}
	name, err := p.Save("", second)
	if err != nil {
		t.Fatal(err)
	}
	if name != "2024-03-01_12-01-00.json" {
		t.Errorf("filename = %q", name)
	}

	list, err := p.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Filename != name || list[1].Name != "slow-pad" {
		t.Fatalf("list = %+v", list)
	}

	latest, err := p.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Ranges.BPS != second.Ranges.BPS {
		t.Errorf("latest bps = %v", latest.Ranges.BPS)
	}

	old, err := p.Load(list[1].Filename)
	if err != nil {
		t.Fatal(err)
	}
	if old.Ranges.BPS != first.Ranges.BPS {
		t.Errorf("old bps = %v", old.Ranges.BPS)
	}

	if err := p.Delete(list[1].Filename); err != nil {
		t.Fatal(err)
	}
	if list, _ := p.List(); len(list) != 1 {
		t.Errorf("after delete: %d presets", len(list))
	}
}
