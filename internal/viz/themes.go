package viz

import "github.com/charmbracelet/lipgloss"

// Theme colors the two spin states and the surrounding chrome.
type Theme struct {
	Name   string
	Up     lipgloss.Color
	Down   lipgloss.Color
	Accent lipgloss.Color
	Text   lipgloss.Color
	Muted  lipgloss.Color
}

var (
	ThemeMono = Theme{
		Name:   "mono",
		Up:     lipgloss.Color("#ffffff"),
		Down:   lipgloss.Color("#000000"),
		Accent: lipgloss.Color("#00ccff"),
		Text:   lipgloss.Color("#ffffff"),
		Muted:  lipgloss.Color("#888888"),
	}

	ThemeCyberpunk = Theme{
		Name:   "cyberpunk",
		Up:     lipgloss.Color("#ff00ff"), // Magenta
		Down:   lipgloss.Color("#00ffff"), // Cyan
		Accent: lipgloss.Color("#ffff00"),
		Text:   lipgloss.Color("#ffffff"),
		Muted:  lipgloss.Color("#666666"),
	}

	ThemeOcean = Theme{
		Name:   "ocean",
		Up:     lipgloss.Color("#ffd700"),
		Down:   lipgloss.Color("#001a33"),
		Accent: lipgloss.Color("#00a8cc"),
		Text:   lipgloss.Color("#e0f0ff"),
		Muted:  lipgloss.Color("#4488aa"),
	}
)

var themes = []Theme{ThemeMono, ThemeCyberpunk, ThemeOcean}

// GetTheme returns the named theme, falling back to mono.
func GetTheme(name string) Theme {
	for _, t := range themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeMono
}

func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme returns the theme after t, wrapping around.
func NextTheme(t Theme) Theme {
	for i, th := range themes {
		if th.Name == t.Name {
			return themes[(i+1)%len(themes)]
		}
	}
	return themes[0]
}
