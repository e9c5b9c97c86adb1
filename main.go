package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	tea "github.com/charmbracelet/bubbletea"

	"go-feather/capture"
	"go-feather/config"
	"go-feather/debug"
	"go-feather/feather"
	"go-feather/midi"
	"go-feather/theme"
	"go-feather/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-feather/config.json)")
	settingsPath := flag.String("settings", "", "feathering settings file to load and autosave")
	debugLog := flag.Bool("debug", false, "write a debug log to ~/.config/go-feather/debug.log")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", fmsg.GetIssue(err))
		os.Exit(1)
	}
	if *settingsPath != "" {
		cfg.SettingsPath = *settingsPath
	}

	// must run before any component grabs its logger
	if cfg.Log.Enabled || *debugLog {
		level := cfg.Log.Level
		if *debugLog {
			level = "debug"
		}
		if err := debug.Enable(cfg.Log.Path, level); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
	}
	defer debug.Disable()

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(cfg *config.Config) error {
	log := debug.Logger("main")

	store, err := feather.NewStore(initialSettings(cfg))
	if err != nil {
		return err
	}

	tracker := feather.NewNoteTracker(cfg.InputChannel())

	output := midi.NewOutput(nil)
	output.OnState = func(state midi.ConnState, name string) {
		log.Info("output", "state", state, "port", name)
	}
	if port := outputPort(cfg); port != "" {
		if err := output.Connect(port); err != nil {
			log.Warn("output connect failed", "port", port, "err", err)
		}
	}

	recorder := capture.NewRecorder()
	dispatcher := feather.NewDispatcher(output, nil)
	dispatcher.OnEvent(recorder.Handle)

	var sampler *feather.Sampler
	if cfg.Seed != 0 {
		sampler = feather.NewSampler(cfg.Seed)
	}
	scheduler := feather.NewScheduler(tracker, store, dispatcher, sampler, nil)

	presets, err := config.DefaultPresets()
	if err != nil {
		return err
	}

	palette, err := theme.LoadOrDefault(cfg.PalettePath)
	if err != nil {
		log.Warn("palette", "path", cfg.PalettePath, "err", err)
	}
	th := theme.New(palette)

	// Create MIDI device manager (handles hot-plug)
	devices := midi.NewDeviceManager(cfg.Input.Preferred, cfg.Input.Excluded)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go devices.Run(ctx)

	fmt.Println("go-feather")
	fmt.Println("Connect MIDI devices any time - they'll be detected automatically")
	fmt.Println("")

	engine := tui.Engine{
		Store:      store,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Output:     output,
		Devices:    devices,
		Recorder:   recorder,
		Presets:    presets,
		CaptureDir: cfg.ResolvedCaptureDir(),
		Autostart:  true,
	}
	m := tui.NewModel(ctx, engine, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()

	scheduler.Stop()
	dispatcher.FlushAll()
	if err := config.SaveSettings(cfg.ResolvedSettingsPath(), *store.Load()); err != nil {
		log.Error("autosave failed", "err", err)
	}
	output.Disconnect()
	return runErr
}

// initialSettings prefers the autosave file, then the configured channels,
// then the defaults
func initialSettings(cfg *config.Config) feather.Settings {
	log := debug.Logger("main")
	path := cfg.ResolvedSettingsPath()

	s, err := config.LoadSettings(path)
	if err == nil {
		return s
	}
	if ftag.Get(err) != ftag.NotFound {
		log.Warn("settings ignored", "path", path, "issue", fmsg.GetIssue(err))
	}

	s = feather.DefaultSettings()
	if chs := cfg.OutputChannels(); len(chs) > 0 {
		s.OutputChannels = chs
	}
	return s
}

// outputPort returns the configured port, or the first system output that
// isn't a loopback
func outputPort(cfg *config.Config) string {
	if cfg.Output.PortName != "" {
		return cfg.Output.PortName
	}
	for _, name := range midi.OutPortNames() {
		if midi.MatchPort(name, nil, midi.DefaultExcluded) {
			return name
		}
	}
	return ""
}
