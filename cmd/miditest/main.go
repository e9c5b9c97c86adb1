package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-feather/debug"
	"go-feather/feather"
	fmidi "go-feather/midi"
	"go-feather/widgets"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	debug.EnableWriter(os.Stderr, log.InfoLevel)
	defer midi.CloseDriver()

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		err = monitor(arg(2, ""))
	case "burst":
		err = burst(arg(2, ""), arg(3, "5"))
	case "panic":
		err = allNotesOff(arg(2, ""))
	case "poll":
		pollDevices()
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println(widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Commands:", Keys: []widgets.KeyBinding{
			{Key: "list", Desc: "List all MIDI ports"},
			{Key: "monitor IN", Desc: "Print note/CC events from the first input matching IN"},
			{Key: "burst OUT [s]", Desc: "Feather a C major chord to OUT for s seconds"},
			{Key: "panic OUT", Desc: "Send note-off for every pitch on every channel"},
			{Key: "poll", Desc: "Poll for device changes"},
		}},
	}))
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			marker := ""
			if fmidi.MatchPort(p.String(), nil, fmidi.DefaultExcluded) {
				marker = "  (auto)"
			}
			fmt.Printf("  %d: %s%s\n", i, p.String(), marker)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func findIn(pattern string) (drivers.In, error) {
	for _, p := range midi.GetInPorts() {
		if fmidi.MatchPort(p.String(), []string{pattern}, fmidi.DefaultExcluded) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no input port matching %q", pattern)
}

func findOut(pattern string) (string, error) {
	for _, name := range fmidi.OutPortNames() {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no output port matching %q", pattern)
}

func monitor(pattern string) error {
	in, err := findIn(pattern)
	if err != nil {
		return err
	}
	kb, err := fmidi.NewKeyboardInput(in.String(), in)
	if err != nil {
		return err
	}
	defer kb.Close()

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.String())
	tracker := feather.NewNoteTracker(feather.Omni)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-kb.Events():
			if !ok {
				return nil
			}
			tracker.Handle(ev, time.Now())
			fmt.Printf("%-8x %s ch%-2d %3d %3d   held:%d\n", ev.Bytes(), eventName(ev), ev.Channel+1, ev.Note, ev.Velocity, tracker.Len())
		}
	}
}

func eventName(ev fmidi.Event) string {
	switch {
	case ev.Type == fmidi.CC:
		return "CC  "
	case ev.IsRelease():
		return "OFF "
	}
	return "ON  "
}

// burst runs the real scheduler against a fixed chord
func burst(pattern, seconds string) error {
	name, err := findOut(pattern)
	if err != nil {
		return err
	}
	secs, err := strconv.Atoi(seconds)
	if err != nil || secs <= 0 {
		return fmt.Errorf("bad duration %q", seconds)
	}

	out := fmidi.NewOutput(nil)
	if err := out.Connect(name); err != nil {
		return err
	}
	defer out.Disconnect()

	settings := feather.DefaultSettings()
	settings.Ranges.BPS = feather.Range{Min: 4, Max: 12}
	settings.Ranges.Speed = feather.Range{Min: 80, Max: 400}
	settings.Ranges.OctaveShift = feather.Range{Min: 0, Max: 2}
	settings.OutputChannels = []uint8{0}
	store, err := feather.NewStore(settings)
	if err != nil {
		return err
	}

	tracker := feather.NewNoteTracker(feather.Omni)
	now := time.Now()
	for _, p := range []uint8{60, 64, 67} {
		tracker.Handle(fmidi.Event{Type: fmidi.NoteOn, Note: p, Velocity: 96}, now)
	}

	dispatcher := feather.NewDispatcher(out, nil)
	dispatcher.OnEvent(func(ev feather.VoiceEvent) {
		if ev.Kind == feather.NoteStarted {
			fmt.Printf("fire %3d vel %3d ch%d\n", ev.Pitch, ev.Velocity, ev.Channel+1)
		}
	})
	sched := feather.NewScheduler(tracker, store, dispatcher, nil, nil)

	fmt.Printf("Feathering C major to %s for %ds\n", name, secs)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sched.Start(ctx)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(secs) * time.Second):
	}
	sched.Stop()

	st := sched.Stats()
	fmt.Printf("ticks %d, fired %d, clamped %d\n", st.Ticks, st.Firings, st.Repaired)
	return nil
}

func allNotesOff(pattern string) error {
	name, err := findOut(pattern)
	if err != nil {
		return err
	}
	out := fmidi.NewOutput(nil)
	if err := out.Connect(name); err != nil {
		return err
	}
	defer out.Disconnect()

	for ch := uint8(0); ch < 16; ch++ {
		for key := uint8(0); key < 128; key++ {
			if err := out.Send(midi.NoteOff(ch, key)); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Sent note-off for all notes on %s\n", name)
	return nil
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		inNames := fmidi.InPortNames()
		outNames := fmidi.OutPortNames()

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			for _, name := range inNames {
				if fmidi.MatchPort(name, nil, fmidi.DefaultExcluded) {
					fmt.Printf("  -> would auto-connect %s\n", name)
				}
			}

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
