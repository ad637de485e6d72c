package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// themeTokens defines the color roles used by console output.
type themeTokens struct {
	Text      string
	TextMuted string
	Border    string
	Accent    string
	Success   string
	Warning   string
	Error     string
}

var themes = map[string]themeTokens{
	"default": {
		Text:      "#E6EDF3",
		TextMuted: "#8B9AAE",
		Border:    "#223043",
		Accent:    "#5B8DEF",
		Success:   "#3FB950",
		Warning:   "#D29922",
		Error:     "#F85149",
	},
	"high-contrast": {
		Text:      "#FFFFFF",
		TextMuted: "#C0C0C0",
		Border:    "#FFFFFF",
		Accent:    "#00A2FF",
		Success:   "#00FF5A",
		Warning:   "#FFB000",
		Error:     "#FF4040",
	},
}

type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Panel   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func buildStyles(theme string) styles {
	tokens, ok := themes[strings.ToLower(strings.TrimSpace(theme))]
	if !ok {
		tokens = themes["default"]
	}

	return styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Accent)).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.TextMuted)).Bold(true),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Text)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.TextMuted)),
		Panel:   lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color(tokens.Border)).Padding(0, 1),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Success)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Warning)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(tokens.Error)),
	}
}
