package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-feather/theme"
)

// KeyState is what the keyboard strip shows for one pitch
type KeyState struct {
	Held     bool
	Sounding bool
	Velocity uint8 // of the sounding voice, or the held note
}

// RenderKeyboard draws pitches low..high as one row of symbols, coloured by
// velocity, with an octave marker under every C
func RenderKeyboard(th *theme.Theme, low, high uint8, keys map[uint8]KeyState) string {
	var top, bottom strings.Builder
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	for p := int(low); p <= int(high); p++ {
		k := keys[uint8(p)]
		switch {
		case k.Held && k.Sounding:
			top.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(k.Velocity)).Render(string(th.Symbols.KeyBoth)))
		case k.Sounding:
			top.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(k.Velocity)).Render(string(th.Symbols.KeyVoice)))
		case k.Held:
			top.WriteString(lipgloss.NewStyle().Foreground(th.Cursor()).Render(string(th.Symbols.KeyHeld)))
		default:
			top.WriteString(dim.Render(string(th.Symbols.KeyIdle)))
		}

		if p%12 == 0 {
			bottom.WriteString(dim.Render("C"))
		} else {
			bottom.WriteString(" ")
		}
	}
	return top.String() + "\n" + bottom.String()
}

// RenderRange draws r inside extent as a bar of width cells
func RenderRange(th *theme.Theme, extent, r [2]float64, width int, selected bool) string {
	if width < 2 {
		width = 2
	}
	span := extent[1] - extent[0]
	cell := func(v float64) int {
		if span <= 0 {
			return 0
		}
		i := int(math.Round((v - extent[0]) / span * float64(width-1)))
		return min(max(i, 0), width-1)
	}
	lo, hi := cell(r[0]), cell(r[1])

	fill := th.Muted()
	if selected {
		fill = th.Accent()
	}
	track := lipgloss.NewStyle().Foreground(th.Muted())
	inside := lipgloss.NewStyle().Foreground(fill)
	handle := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(selected)

	var out strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == lo || i == hi:
			out.WriteString(handle.Render(string(th.Symbols.BarHandle)))
		case i > lo && i < hi:
			out.WriteString(inside.Render(string(th.Symbols.BarFill)))
		default:
			out.WriteString(track.Render(string(th.Symbols.BarTrack)))
		}
	}
	return out.String()
}

// RenderToggles draws labelled on/off toggles, e.g. "■ V  □ VI"
func RenderToggles(th *theme.Theme, labels []string, on []bool) string {
	onStyle := lipgloss.NewStyle().Foreground(th.Success())
	offStyle := lipgloss.NewStyle().Foreground(th.Muted())
	parts := make([]string, len(labels))
	for i, label := range labels {
		if i < len(on) && on[i] {
			parts[i] = onStyle.Render(string(th.Symbols.Solid) + " " + label)
		} else {
			parts[i] = offStyle.Render(string(th.Symbols.Empty) + " " + label)
		}
	}
	return strings.Join(parts, "  ")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
