package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

func TestLoadFileMissingGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InputChannel() != -1 {
		t.Errorf("input channel = %d, want omni", cfg.InputChannel())
	}
}

func TestLoadFileJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"config.json": `{"input":{"preferred":["keystep"],"channel":2},"output":{"portName":"Synth","channels":[1,10]}}`,
		"config.yaml": "input:\n  preferred: [keystep]\n  channel: 2\noutput:\n  portName: Synth\n  channels: [1, 10]\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			os.WriteFile(path, []byte(content), 0644)

			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.InputChannel() != 1 {
				t.Errorf("input channel = %d, want 1", cfg.InputChannel())
			}
			if cfg.Output.PortName != "Synth" {
				t.Errorf("port = %q", cfg.Output.PortName)
			}
			got := cfg.OutputChannels()
			if len(got) != 2 || got[0] != 0 || got[1] != 9 {
				t.Errorf("output channels = %v, want [0 9]", got)
			}
			if len(cfg.Input.Preferred) != 1 || cfg.Input.Preferred[0] != "keystep" {
				t.Errorf("preferred = %v", cfg.Input.Preferred)
			}
		})
	}
}

func TestLoadFileRejectsBadChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"output":{"channels":[17]}}`), 0644)

	_, err := LoadFile(path)
	if ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, _ := LoadFile(path)
	cfg.Output.PortName = "FluidSynth"
	cfg.Log.Enabled = true
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Output.PortName != "FluidSynth" || !loaded.Log.Enabled {
		t.Errorf("loaded = %+v", loaded)
	}
}
