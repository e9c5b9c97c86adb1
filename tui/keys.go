package tui

import "github.com/charmbracelet/bubbles/key"

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	MinDown    key.Binding
	MinUp      key.Binding
	MaxDown    key.Binding
	MaxUp      key.Binding
	PlayMode   key.Binding
	Extension  key.Binding
	Channel    key.Binding
	AddChannel key.Binding
	DelChannel key.Binding
	Port       key.Binding
	InChannel  key.Binding
	Run        key.Binding
	Capture    key.Binding
	Save       key.Binding
	Load       key.Binding
	DelPreset  key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up:         Key("prev range", "up", "k"),
	Down:       Key("next range", "down", "j"),
	MinDown:    Key("min -", "h", "left"),
	MinUp:      Key("min +", "l", "right"),
	MaxDown:    Key("max -", "H", "shift+left"),
	MaxUp:      Key("max +", "L", "shift+right"),
	PlayMode:   Key("mono/poly", "m"),
	Extension:  Key("extensions", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-"),
	Channel:    Key("cycle channel", "c"),
	AddChannel: Key("add channel", "a"),
	DelChannel: Key("remove channel", "x"),
	Port:       Key("output port", "p"),
	InChannel:  Key("input channel", "i"),
	Run:        Key("start/stop", " "),
	Capture:    Key("capture", "r"),
	Save:       Key("save preset", "s"),
	Load:       Key("next preset", "o"),
	DelPreset:  Key("delete preset", "D"),
	Help:       Key("help", "?"),
	Quit:       Key("quit", "q", "ctrl+c"),
}

func init() {
	keys.Run.SetHelp("space", "start/stop")
	keys.Extension.SetHelp("1-9 0 -", "extensions")
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Up, k.MinUp, k.MaxUp, k.PlayMode, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.MinDown, k.MinUp, k.MaxDown, k.MaxUp},
		{k.PlayMode, k.Extension, k.Channel, k.AddChannel, k.DelChannel},
		{k.Port, k.InChannel, k.Run, k.Capture},
		{k.Save, k.Load, k.DelPreset, k.Help, k.Quit},
	}
}

// extensionOffset maps the extension keys to semitone offsets 1..11
func extensionOffset(k string) int {
	switch k {
	case "0":
		return 10
	case "-":
		return 11
	}
	if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
		return int(k[0] - '0')
	}
	return 0
}
