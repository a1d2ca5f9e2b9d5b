package enum

const (
	glyphMoon = "🌙"
	glyphSun  = "☀️"
)

// Toggle returns the opposite theme (dark↔light). Anything but dark toggles to dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Glyph returns the toggle control glyph for the active theme: moon while light, sun while dark.
func (t Theme) Glyph() string {
	if t == ThemeDark {
		return glyphSun
	}
	return glyphMoon
}

// ToggleLabel describes the action of switching away from the active theme.
func (t Theme) ToggleLabel() string {
	if t == ThemeDark {
		return "Switch to light mode"
	}
	return "Switch to dark mode"
}

// CoerceTheme parses v and falls back to light for anything unrecognized.
func CoerceTheme(v string) Theme {
	t, err := ParseTheme(v)
	if err != nil {
		return ThemeLight
	}
	return t
}

// ThemeFromDark maps a dark-mode preference flag to a theme.
func ThemeFromDark(dark bool) Theme {
	if dark {
		return ThemeDark
	}
	return ThemeLight
}
