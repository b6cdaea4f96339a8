package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type styles struct {
	Selected  lipgloss.Style
	Normal    lipgloss.Style
	Label     lipgloss.Style
	Container lipgloss.Style
	Playback  lipgloss.Style
	Playhead  lipgloss.Style
	Major     lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
}

func newStyles() styles {
	return styles{
		Selected:  lipgloss.NewStyle().Background(lipgloss.Color("7")).Foreground(lipgloss.Color("0")),
		Normal:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Container: lipgloss.NewStyle().Padding(1, 2),
		Playback:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Playhead:  lipgloss.NewStyle().Reverse(true),
		Major:     lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true),
	}
}

// ConfigureColor picks the terminal colour profile. noColor forces plain text.
func ConfigureColor(noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.ColorProfile())
}
