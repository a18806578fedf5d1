package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Kanagawa palette, dark and light variants.
const (
	darkGreen  = "#98BB6C"
	darkYellow = "#FF9E3B"
	darkRed    = "#FF5D62"
	darkOrange = "#FFA066"
	darkCyan   = "#7E9CD8"
	darkBlue   = "#7FB4CA"
	darkViolet = "#957FB8"
	darkMuted  = "#727169"
	darkBorder = "#363646"
	darkStripe = "#181820"

	lightGreen  = "#4E7C5A"
	lightYellow = "#A68A64"
	lightRed    = "#C34043"
	lightOrange = "#CC6B4E"
	lightCyan   = "#5B8BBE"
	lightBlue   = "#4F7CAC"
	lightViolet = "#674D7A"
	lightMuted  = "#6C7086"
	lightBorder = "#B5BDC5"
	lightStripe = "#EFF1F8"
)

// Colors is the palette a Theme is built from.
type Colors struct {
	Green                lipgloss.TerminalColor
	Yellow               lipgloss.TerminalColor
	Red                  lipgloss.TerminalColor
	Orange               lipgloss.TerminalColor
	Cyan                 lipgloss.TerminalColor
	Blue                 lipgloss.TerminalColor
	Violet               lipgloss.TerminalColor
	MutedText            lipgloss.TerminalColor
	Border               lipgloss.TerminalColor
	VerySubtleBackground lipgloss.TerminalColor
}

// Theme holds the styles used by command output and help.
type Theme struct {
	Colors Colors

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Bold    lipgloss.Style

	TableHeader        lipgloss.Style
	TableRow           lipgloss.Style
	UseAlternatingRows bool
}

// DefaultTheme is selected from BNB_THEME ("kanagawa" or "terminal").
var DefaultTheme = newTheme(os.Getenv("BNB_THEME"))

func newTheme(name string) *Theme {
	terminal := strings.EqualFold(strings.TrimSpace(name), "terminal")
	colors := kanagawaColors()
	if terminal {
		colors = terminalColors()
	}
	return &Theme{
		Colors:             colors,
		Success:            lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:              lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning:            lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Muted:              lipgloss.NewStyle().Foreground(colors.MutedText),
		Italic:             lipgloss.NewStyle().Italic(true),
		Bold:               lipgloss.NewStyle().Bold(true),
		TableHeader:        lipgloss.NewStyle().Bold(true).Foreground(colors.Orange).Padding(0, 1),
		TableRow:           lipgloss.NewStyle().Padding(0, 1),
		UseAlternatingRows: !terminal,
	}
}

func kanagawaColors() Colors {
	return Colors{
		Green:                lipgloss.AdaptiveColor{Light: lightGreen, Dark: darkGreen},
		Yellow:               lipgloss.AdaptiveColor{Light: lightYellow, Dark: darkYellow},
		Red:                  lipgloss.AdaptiveColor{Light: lightRed, Dark: darkRed},
		Orange:               lipgloss.AdaptiveColor{Light: lightOrange, Dark: darkOrange},
		Cyan:                 lipgloss.AdaptiveColor{Light: lightCyan, Dark: darkCyan},
		Blue:                 lipgloss.AdaptiveColor{Light: lightBlue, Dark: darkBlue},
		Violet:               lipgloss.AdaptiveColor{Light: lightViolet, Dark: darkViolet},
		MutedText:            lipgloss.AdaptiveColor{Light: lightMuted, Dark: darkMuted},
		Border:               lipgloss.AdaptiveColor{Light: lightBorder, Dark: darkBorder},
		VerySubtleBackground: lipgloss.AdaptiveColor{Light: lightStripe, Dark: darkStripe},
	}
}

// terminalColors uses the 16 ANSI colors so the user's terminal palette applies.
func terminalColors() Colors {
	return Colors{
		Green:                lipgloss.Color("2"),
		Yellow:               lipgloss.Color("3"),
		Red:                  lipgloss.Color("1"),
		Orange:               lipgloss.Color("3"),
		Cyan:                 lipgloss.Color("6"),
		Blue:                 lipgloss.Color("4"),
		Violet:               lipgloss.Color("5"),
		MutedText:            lipgloss.Color("8"),
		Border:               lipgloss.Color("8"),
		VerySubtleBackground: lipgloss.Color("0"),
	}
}
