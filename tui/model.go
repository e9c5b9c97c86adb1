package tui

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-feather/capture"
	"go-feather/config"
	"go-feather/debug"
	"go-feather/feather"
	"go-feather/midi"
	"go-feather/theme"
	"go-feather/widgets"
)

const refreshInterval = 50 * time.Millisecond

// Engine is everything the screen drives and displays
type Engine struct {
	Store      *feather.Store
	Tracker    *feather.NoteTracker
	Dispatcher *feather.Dispatcher
	Scheduler  *feather.Scheduler
	Output     *midi.Output
	Devices    *midi.DeviceManager // optional
	Recorder   *capture.Recorder
	Presets    *config.Presets
	CaptureDir string

	OutPorts  func() []string // output ports to cycle through, nil lists the system ports
	Autostart bool            // start feathering as soon as the screen opens
}

type Model struct {
	Engine   Engine
	Theme    *theme.Theme
	ctx      context.Context
	help     help.Model
	selected feather.RangeKey
	status   string
	err      error
	input    string
	preset   string // filename of the loaded preset
	presets  []config.PresetInfo
	quitting bool
}

type refreshMsg time.Time

type heldMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(ctx context.Context, engine Engine, th *theme.Theme) Model {
	m := Model{
		Engine: engine,
		Theme:  th,
		ctx:    ctx,
		help:   help.New(),
	}
	m.refreshPresets()
	if engine.Autostart && engine.Scheduler.Start(ctx) {
		m.setStatus("Feathering")
	}
	return m
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func ListenForHeld(tracker *feather.NoteTracker) tea.Cmd {
	return func() tea.Msg {
		<-tracker.Changes()
		return heldMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{refresh(), ListenForHeld(m.Engine.Tracker)}
	if m.Engine.Devices != nil {
		cmds = append(cmds, ListenForDevices(m.Engine.Devices))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case refreshMsg:
		return m, refresh()

	case heldMsg:
		return m, ListenForHeld(m.Engine.Tracker)

	case DeviceEventMsg:
		m.handleDevice(midi.DeviceEvent(msg))
		if m.Engine.Devices == nil {
			return m, nil
		}
		return m, ListenForDevices(m.Engine.Devices)
	}
	return m, nil
}

func (m *Model) handleDevice(event midi.DeviceEvent) {
	switch event.Type {
	case midi.DeviceConnected:
		m.input = event.ID
		m.setStatus("Input connected: " + event.ID)
		go m.Engine.Tracker.Consume(event.ID, event.Input.Events(), time.Now)
	case midi.DeviceDisconnected:
		if m.input == event.ID {
			m.input = ""
		}
		// held notes from a vanished input would sound forever
		m.Engine.Tracker.ResetSource(event.ID)
		if m.Engine.Tracker.Len() == 0 {
			m.Engine.Dispatcher.FlushAll()
		}
		m.setStatus("Input disconnected: " + event.ID)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.Engine
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, keys.Up):
		m.selected = (m.selected + feather.NumRangeKeys - 1) % feather.NumRangeKeys
	case key.Matches(msg, keys.Down):
		m.selected = (m.selected + 1) % feather.NumRangeKeys

	case key.Matches(msg, keys.MinDown):
		m.nudge(-1, 0)
	case key.Matches(msg, keys.MinUp):
		m.nudge(1, 0)
	case key.Matches(msg, keys.MaxDown):
		m.nudge(0, -1)
	case key.Matches(msg, keys.MaxUp):
		m.nudge(0, 1)

	case key.Matches(msg, keys.PlayMode):
		m.apply(e.Store.Update(func(s *feather.Settings) {
			if s.Ranges.PlayMode == feather.Mono {
				s.Ranges.PlayMode = feather.Poly
			} else {
				s.Ranges.PlayMode = feather.Mono
			}
		}))

	case key.Matches(msg, keys.Extension):
		if off := extensionOffset(msg.String()); off > 0 {
			m.apply(e.Store.Update(func(s *feather.Settings) { s.Extensions = s.Extensions.Toggle(off) }))
		}

	case key.Matches(msg, keys.Channel):
		m.apply(e.Store.Update(func(s *feather.Settings) {
			next := feather.DefaultOutputChannel
			if len(s.OutputChannels) > 0 {
				next = (s.OutputChannels[0] + 1) % 16
			}
			s.OutputChannels = []uint8{next}
		}))
	case key.Matches(msg, keys.AddChannel):
		m.apply(e.Store.Update(func(s *feather.Settings) {
			for ch := uint8(0); ch < 16; ch++ {
				if !slices.Contains(s.OutputChannels, ch) {
					s.OutputChannels = append(s.OutputChannels, ch)
					slices.Sort(s.OutputChannels)
					return
				}
			}
		}))
	case key.Matches(msg, keys.DelChannel):
		m.apply(e.Store.Update(func(s *feather.Settings) {
			if n := len(s.OutputChannels); n > 0 {
				s.OutputChannels = s.OutputChannels[:n-1]
			}
		}))

	case key.Matches(msg, keys.Port):
		m.cycleOutput()
	case key.Matches(msg, keys.InChannel):
		ch := e.Tracker.Channel() + 1
		if ch > 15 {
			ch = feather.Omni
		}
		e.Tracker.SetChannel(ch)
		e.Tracker.Reset()
		m.setStatus("Input channel " + fmtInputChannel(ch))

	case key.Matches(msg, keys.Run):
		if e.Scheduler.Running() {
			e.Scheduler.Stop()
			m.setStatus("Stopped")
		} else {
			e.Scheduler.Start(m.ctx)
			m.setStatus("Feathering")
		}

	case key.Matches(msg, keys.Capture):
		m.toggleCapture()

	case key.Matches(msg, keys.Save):
		if e.Presets == nil {
			break
		}
		name, err := e.Presets.Save("", *e.Store.Load())
		if m.apply(err) {
			// the next load starts again from the newest
			m.preset = ""
			m.refreshPresets()
			m.setStatus("Saved preset " + name)
		}
	case key.Matches(msg, keys.Load):
		m.loadNextPreset()
	case key.Matches(msg, keys.DelPreset):
		m.deletePreset()
	}
	return m, nil
}

// cycleOutput connects the port after the current one
func (m *Model) cycleOutput() {
	ports := m.outPorts()
	if len(ports) == 0 {
		m.setStatus("No MIDI outputs")
		return
	}
	_, current := m.Engine.Output.State()
	next := ports[0]
	if i := slices.Index(ports, current); i >= 0 {
		next = ports[(i+1)%len(ports)]
	}
	m.switchOutput(next)
}

func (m *Model) outPorts() []string {
	if m.Engine.OutPorts != nil {
		return m.Engine.OutPorts()
	}
	return midi.OutPortNames()
}

// switchOutput releases every voice on the old port before connecting the
// new one, and resumes feathering if it was running
func (m *Model) switchOutput(name string) {
	e := m.Engine
	running := e.Scheduler.Running()
	e.Scheduler.Stop()
	e.Dispatcher.FlushAll()
	err := e.Output.Connect(name)
	if running {
		e.Scheduler.Start(m.ctx)
	}
	if m.apply(err) {
		m.setStatus("Output " + name)
	}
}

// loadNextPreset steps from the loaded preset to the next older one,
// wrapping to the newest
func (m *Model) loadNextPreset() {
	p := m.Engine.Presets
	if p == nil {
		return
	}
	m.refreshPresets()
	if len(m.presets) == 0 {
		_, err := p.Load("")
		m.apply(err)
		return
	}
	next := 0
	if i := slices.IndexFunc(m.presets, func(pi config.PresetInfo) bool { return pi.Filename == m.preset }); i >= 0 {
		next = (i + 1) % len(m.presets)
	}
	filename := m.presets[next].Filename
	s, err := p.Load(filename)
	if m.apply(err) && m.apply(m.Engine.Store.Replace(s)) {
		m.preset = filename
		m.setStatus("Loaded preset " + filename)
	}
}

func (m *Model) deletePreset() {
	p := m.Engine.Presets
	if p == nil {
		return
	}
	if m.preset == "" {
		m.setStatus("Load a preset to delete it")
		return
	}
	if m.apply(p.Delete(m.preset)) {
		m.setStatus("Deleted preset " + m.preset)
		m.preset = ""
		m.refreshPresets()
	}
}

func (m *Model) refreshPresets() {
	if m.Engine.Presets == nil {
		return
	}
	list, err := m.Engine.Presets.List()
	if err != nil {
		debug.Log("tui", "list presets: %v", err)
		return
	}
	m.presets = list
}

// nudge moves the min and/or max of the selected range by whole steps
func (m *Model) nudge(minSteps, maxSteps int) {
	spec := feather.Specs[m.selected]
	m.apply(m.Engine.Store.Update(func(s *feather.Settings) {
		r := s.Ranges.Get(m.selected)
		r.Min = spec.Extent.Clamp(roundStep(r.Min+float64(minSteps)*spec.Step, spec.Step))
		r.Max = spec.Extent.Clamp(roundStep(r.Max+float64(maxSteps)*spec.Step, spec.Step))
		s.Ranges.Set(m.selected, r)
	}))
}

// roundStep removes float drift from repeated step additions
func roundStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

func (m *Model) toggleCapture() {
	rec := m.Engine.Recorder
	if rec == nil {
		return
	}
	if !rec.Recording() {
		rec.Start()
		m.setStatus("Capturing")
		return
	}
	n := rec.Stop()
	if n == 0 {
		m.setStatus("Capture stopped, nothing played")
		return
	}
	path, err := rec.Save(m.Engine.CaptureDir)
	if m.apply(err) {
		m.setStatus(fmt.Sprintf("Captured %d notes to %s", n, path))
	}
}

// apply records err for the status line; it reports whether err was nil
func (m *Model) apply(err error) bool {
	if err != nil {
		m.err = err
		m.status = ""
		debug.Log("tui", "%v", err)
		return false
	}
	m.err = nil
	return true
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.err = nil
}

// Quitting reports whether the user asked to quit
func (m Model) Quitting() bool {
	return m.quitting
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	e := m.Engine
	th := m.Theme
	settings := e.Store.Load()

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(th.FG())
	selStyle := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())
	okStyle := lipgloss.NewStyle().Foreground(th.Success())

	var out strings.Builder
	out.WriteString("\n")

	// Header: run state, ports, capture
	runState := "STOP"
	if e.Scheduler.Running() {
		runState = "RUN "
	}
	state, port := e.Output.State()
	portStatus := fmt.Sprintf("out:%s (%s)", orNone(port), state)
	inStatus := "in:" + orNone(m.input) + " ch " + fmtInputChannel(e.Tracker.Channel())
	capStatus := ""
	if e.Recorder != nil && e.Recorder.Recording() {
		capStatus = warnStyle.Render(fmt.Sprintf("  ● REC %d", e.Recorder.Notes()))
	}
	out.WriteString(headerStyle.Render("go-feather  "+runState) + "  " + dimStyle.Render(inStatus+"  "+portStatus) + capStatus)
	out.WriteString("\n\n")

	// Ranges
	for k := feather.RangeKey(0); k < feather.NumRangeKeys; k++ {
		spec := feather.Specs[k]
		r := settings.Ranges.Get(k)
		label := fmt.Sprintf("%-11s", spec.Label)
		values := fmt.Sprintf("%7s %-3s", fmtValue(r.Min)+".."+fmtValue(r.Max), spec.Unit)
		bar := widgets.RenderRange(th, [2]float64{spec.Extent.Min, spec.Extent.Max}, [2]float64{r.Min, r.Max}, 30, k == m.selected)
		if k == m.selected {
			out.WriteString(selStyle.Render("▸ "+label) + " " + bar + " " + fgStyle.Render(values))
		} else {
			out.WriteString(dimStyle.Render("  "+label) + " " + bar + " " + dimStyle.Render(values))
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")

	// Mode, extensions, channels
	out.WriteString(dimStyle.Render("  Mode       ") + okStyle.Render(settings.Ranges.PlayMode.String()) + "\n")
	labels := feather.ExtensionLabels[1:]
	on := make([]bool, len(labels))
	for i := range labels {
		on[i] = settings.Extensions.Has(i + 1)
	}
	out.WriteString(dimStyle.Render("  Extensions ") + widgets.RenderToggles(th, labels, on) + "\n")
	out.WriteString(dimStyle.Render("  Channels   ") + fgStyle.Render(fmtChannels(settings.OutputChannels)) + "\n")
	if cc := fmtControls(e.Tracker.Controls()); cc != "" {
		out.WriteString(dimStyle.Render("  Controls   ") + fgStyle.Render(cc) + "\n")
	}
	if e.Presets != nil {
		presets := fmt.Sprintf("%d saved", len(m.presets))
		if m.preset != "" {
			presets += ", loaded " + m.preset
		}
		out.WriteString(dimStyle.Render("  Presets    ") + fgStyle.Render(presets) + "\n")
	}
	out.WriteString("\n")

	// Keyboard strip
	keysState := map[uint8]widgets.KeyState{}
	for p, n := range e.Tracker.Snapshot() {
		keysState[p] = widgets.KeyState{Held: true, Velocity: n.Velocity}
	}
	for _, v := range e.Dispatcher.Active() {
		k := keysState[v.Pitch]
		k.Sounding = true
		k.Velocity = v.Velocity
		keysState[v.Pitch] = k
	}
	strip := widgets.RenderKeyboard(th, feather.LowestPitch, feather.HighestPitch, keysState)
	out.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(strip))
	out.WriteString("\n\n")

	// Stats
	st := e.Scheduler.Stats()
	out.WriteString(dimStyle.Render(fmt.Sprintf("  ticks %d  fired %d  clamped %d  send errors %d  recovered %d",
		st.Ticks, st.Firings, st.Repaired, e.Dispatcher.SendErrors(), st.Panics)))
	out.WriteString("\n")

	// Status / error
	switch {
	case m.err != nil:
		msg := fmsg.GetIssue(m.err)
		if msg == "" {
			msg = m.err.Error()
		}
		out.WriteString(warnStyle.Render("  " + msg))
	case m.status != "":
		out.WriteString(fgStyle.Render("  " + m.status))
	}
	out.WriteString("\n\n")

	out.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(m.help.View(keys)))
	return out.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func fmtValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func fmtChannels(chs []uint8) string {
	if len(chs) == 0 {
		return "none (nothing will sound)"
	}
	parts := make([]string, len(chs))
	for i, ch := range chs {
		parts[i] = fmt.Sprintf("%d", int(ch)+1)
	}
	return strings.Join(parts, " ")
}

func fmtInputChannel(ch int) string {
	if ch == feather.Omni {
		return "omni"
	}
	return fmt.Sprintf("%d", ch+1)
}

// fmtControls lists the controller values seen on the input
func fmtControls(cc map[uint8]uint8) string {
	nums := slices.Sorted(maps.Keys(cc))
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("cc%d=%d", n, cc[n])
	}
	return strings.Join(parts, " ")
}
