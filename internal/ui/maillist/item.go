package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/theme"
)

// MessageItem wraps a classified listing record so it can be used in a
// bubbles/list.
type MessageItem struct {
	Message classify.Classified
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Message.Subject + " " + i.Message.From.Display()
}

// Title returns the subject line.
func (i MessageItem) Title() string {
	return subjectOrPlaceholder(i.Message.Subject)
}

// Description returns the preview.
func (i MessageItem) Description() string {
	return i.Message.Preview
}

// ItemDelegate implements list.ItemDelegate. Every message takes two
// lines: a summary line and the preview.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}
	msg := mi.Message
	isSelected := index == m.Index()

	width := m.Width() - 4
	if width < 20 {
		width = 20
	}

	icon := theme.CategoryStyle(msg.Category).Render(theme.CategoryIcon(msg.Category))

	unread := " "
	if !msg.IsSeen {
		unread = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	sender := lipgloss.NewStyle().Bold(true).Render(msg.From.Display())
	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(msg.CreatedAt))

	summary := fmt.Sprintf(
		"%s %s %s  %s  %s",
		unread, icon, sender, subjectOrPlaceholder(msg.Subject), timeStr,
	)
	preview := theme.DimmedStyle.Render("    " + msg.Preview)

	clip := lipgloss.NewStyle().MaxWidth(width)
	lines := lipgloss.JoinVertical(lipgloss.Left, clip.Render(summary), clip.Render(preview))

	if isSelected {
		lines = theme.SelectedItemStyle.Render(lines)
	} else {
		lines = theme.ListItemStyle.Render(lines)
	}

	fmt.Fprint(w, lines)
}

func subjectOrPlaceholder(s string) string {
	if s == "" {
		return "(no subject)"
	}
	return s
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 02 15:04")
	}
}
