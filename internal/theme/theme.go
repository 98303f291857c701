package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// DimmedStyle renders secondary text such as previews.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// OTPBoxStyle frames an extracted one-time code.
var OTPBoxStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen).
	Padding(0, 2).
	Border(lipgloss.DoubleBorder()).
	BorderForeground(ColorGreen)

// CategoryStyle returns a color-coded style for the given message category.
func CategoryStyle(c model.Category) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch c {
	case model.CategoryOTP:
		return base.Foreground(ColorGreen)
	case model.CategoryNotifications:
		return base.Foreground(ColorYellow)
	case model.CategoryUpdates:
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// CategoryIcon returns the glyph shown next to a message of category c.
func CategoryIcon(c model.Category) string {
	switch c {
	case model.CategoryOTP:
		return "🔑"
	case model.CategoryNotifications:
		return "🔔"
	case model.CategoryUpdates:
		return "📰"
	default:
		return "✉"
	}
}

// SeverityStyle returns the style for a notification of the given severity.
func SeverityStyle(s model.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch s {
	case model.SeveritySuccess:
		return base.Foreground(ColorGreen)
	case model.SeverityWarning:
		return base.Foreground(ColorOrange)
	case model.SeverityError:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorBlue)
	}
}

// CountdownStyle colors the expiry clock: red when urgent or expired.
func CountdownStyle(urgent, expired bool) lipgloss.Style {
	if urgent || expired {
		return HeaderStyle.Foreground(ColorRed)
	}
	return HeaderStyle
}
