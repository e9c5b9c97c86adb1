package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-feather/feather"
)

const timestampLayout = "2006-01-02_15-04-05"

// PresetInfo represents a saved preset file (for listing)
type PresetInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// PresetsDir returns the presets directory path
func PresetsDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "presets"), nil
}

// Presets stores timestamped settings files in one directory
type Presets struct {
	Dir string
	Now func() time.Time
}

// DefaultPresets uses ~/.config/go-feather/presets
func DefaultPresets() (*Presets, error) {
	dir, err := PresetsDir()
	if err != nil {
		return nil, err
	}
	return &Presets{Dir: dir}, nil
}

// List returns the saved presets, newest first
func (p *Presets) List() ([]PresetInfo, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []PresetInfo{}, nil
		}
		return nil, err
	}

	var presets []PresetInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < len(timestampLayout) {
			continue
		}
		ts, err := time.Parse(timestampLayout, baseName[:len(timestampLayout)])
		if err != nil {
			continue
		}

		presetName := ""
		if len(baseName) > len(timestampLayout)+1 && baseName[len(timestampLayout)] == '_' {
			presetName = baseName[len(timestampLayout)+1:]
		}

		presets = append(presets, PresetInfo{
			Filename:  name,
			Name:      presetName,
			Timestamp: ts,
		})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Timestamp.After(presets[j].Timestamp)
	})
	return presets, nil
}

// Save writes s as a new timestamped preset and returns its filename
func (p *Presets) Save(name string, s feather.Settings) (string, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	filename := now().Format(timestampLayout)
	if name != "" {
		filename += "_" + sanitizeFilename(name)
	}
	filename += ".json"

	if err := SaveSettings(filepath.Join(p.Dir, filename), s); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a preset (or the most recent one if filename is empty)
func (p *Presets) Load(filename string) (feather.Settings, error) {
	if filename == "" {
		presets, err := p.List()
		if err != nil {
			return feather.Settings{}, err
		}
		if len(presets) == 0 {
			return feather.Settings{}, fault.New("no presets",
				ftag.With(ftag.NotFound),
				fmsg.WithDesc("no presets", "No saved presets"))
		}
		filename = presets[0].Filename
	}
	return LoadSettings(filepath.Join(p.Dir, filename))
}

// Delete removes a preset file
func (p *Presets) Delete(filename string) error {
	return os.Remove(filepath.Join(p.Dir, filepath.Base(filename)))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	).Replace(name)
	return name
}
