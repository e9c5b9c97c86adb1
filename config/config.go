package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"
)

// InputConfig selects the controller the held notes come from
type InputConfig struct {
	Preferred []string `json:"preferred,omitempty" yaml:"preferred,omitempty"` // substrings, case-insensitive
	Excluded  []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Channel   int      `json:"channel" yaml:"channel"` // 1-16, 0 = omni
}

// OutputConfig defines the MIDI output for fired notes
type OutputConfig struct {
	PortName string `json:"portName,omitempty" yaml:"portName,omitempty"`
	Channels []int  `json:"channels,omitempty" yaml:"channels,omitempty"` // 1-16, used when no settings file exists
}

// LogConfig controls the debug log
type LogConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Input        InputConfig  `json:"input" yaml:"input"`
	Output       OutputConfig `json:"output" yaml:"output"`
	Log          LogConfig    `json:"log" yaml:"log"`
	SettingsPath string       `json:"settingsPath,omitempty" yaml:"settingsPath,omitempty"` // autosaved feathering settings
	CaptureDir   string       `json:"captureDir,omitempty" yaml:"captureDir,omitempty"`
	PalettePath  string       `json:"palette,omitempty" yaml:"palette,omitempty"` // GIMP .gpl file
	Seed         uint64       `json:"seed,omitempty" yaml:"seed,omitempty"`       // fixed random seed, 0 = random

	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{Channel: 0},
		Log:   LogConfig{Level: "info"},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-feather"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the default config file, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a JSON or YAML config. A missing file gives the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	if err := unmarshal(path, data, cfg); err != nil {
		return nil, fault.Wrap(err,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("parse config", "Config file "+filepath.Base(path)+" is malformed"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks channel numbers
func (c *Config) Validate() error {
	if c.Input.Channel < 0 || c.Input.Channel > 16 {
		return fault.New("bad input channel",
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("input channel", "Input channel must be 0 (omni) or 1-16"))
	}
	for _, ch := range c.Output.Channels {
		if ch < 1 || ch > 16 {
			return fault.New("bad output channel",
				ftag.With(ftag.InvalidArgument),
				fmsg.WithDesc("output channel", "Output channels must be 1-16"))
		}
	}
	return nil
}

// InputChannel returns the zero-based input channel, -1 for omni
func (c *Config) InputChannel() int {
	return c.Input.Channel - 1
}

// OutputChannels returns the configured output channels zero-based
func (c *Config) OutputChannels() []uint8 {
	out := make([]uint8, 0, len(c.Output.Channels))
	for _, ch := range c.Output.Channels {
		out = append(out, uint8(ch-1))
	}
	return out
}

// Path returns the file the config was loaded from (empty for defaults)
func (c *Config) Path() string {
	return c.path
}

// ResolvedSettingsPath returns the autosave path for feathering settings
func (c *Config) ResolvedSettingsPath() string {
	if c.SettingsPath != "" {
		return expandHome(c.SettingsPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "settings.json"
	}
	return filepath.Join(dir, "settings.json")
}

// ResolvedCaptureDir returns the directory captured takes are written to
func (c *Config) ResolvedCaptureDir() string {
	if c.CaptureDir != "" {
		return expandHome(c.CaptureDir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "captures"
	}
	return filepath.Join(dir, "captures")
}

// Save writes the config back to where it was loaded from, or the default path
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := marshal(path, c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// unmarshal tries JSON first and falls back to YAML
func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	jsonErr := json.Unmarshal(data, v)
	if jsonErr == nil {
		return nil
	}
	if yaml.Unmarshal(data, v) == nil {
		return nil
	}
	return jsonErr
}

func marshal(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
