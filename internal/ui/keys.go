package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause key.Binding
	Stop      key.Binding
	SeekBack  key.Binding
	SeekFwd   key.Binding
	JumpBack  key.Binding
	JumpFwd   key.Binding
	Home      key.Binding
	JogLeft   key.Binding
	JogRight  key.Binding
	FastLeft  key.Binding
	FastRight key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	Up        key.Binding
	Down      key.Binding
	Mute      key.Binding
	Solo      key.Binding
	LoopIn    key.Binding
	LoopOut   key.Binding
	Loop      key.Binding
	Follow    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		SeekBack:  key.NewBinding(key.WithKeys(","), key.WithHelp(",", "-1s")),
		SeekFwd:   key.NewBinding(key.WithKeys("."), key.WithHelp(".", "+1s")),
		JumpBack:  key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "-10s")),
		JumpFwd:   key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "+10s")),
		Home:      key.NewBinding(key.WithKeys("home", "0"), key.WithHelp("0", "to start")),
		JogLeft:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "scroll")),
		JogRight:  key.NewBinding(key.WithKeys("right", "l")),
		FastLeft:  key.NewBinding(key.WithKeys("shift+left", "H"), key.WithHelp("shift+←/→", "page")),
		FastRight: key.NewBinding(key.WithKeys("shift+right", "L")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "zoom")),
		ZoomOut:   key.NewBinding(key.WithKeys("-")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "track")),
		Down:      key.NewBinding(key.WithKeys("down", "j")),
		Mute:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Solo:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "solo")),
		LoopIn:    key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "loop in/out")),
		LoopOut:   key.NewBinding(key.WithKeys("]")),
		Loop:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "loop on/off")),
		Follow:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Stop, k.SeekBack, k.ZoomIn, k.Loop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.SeekBack, k.SeekFwd, k.JumpBack, k.JumpFwd, k.Home},
		{k.JogLeft, k.FastLeft, k.ZoomIn, k.Follow},
		{k.Up, k.Mute, k.Solo},
		{k.LoopIn, k.Loop, k.Help, k.Quit},
	}
}
