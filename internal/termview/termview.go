// Package termview renders identification documents for the terminal.
package termview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-fishid/pkg/segment"
)

// Theme is the colour palette.
type Theme struct {
	Accent  lipgloss.Color
	Heading lipgloss.Color
	Key     lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:  lipgloss.Color("#06B6D4"), // cyan
		Heading: lipgloss.Color("#7C3AED"), // purple
		Key:     lipgloss.Color("#F9E2AF"), // yellow
		Muted:   lipgloss.Color("#6C7086"),
		Error:   lipgloss.Color("#F38BA8"),
		Border:  lipgloss.Color("#45475A"),
	}
}

// Renderer turns documents into styled text.
type Renderer struct {
	theme *Theme

	title     lipgloss.Style
	heading   lipgloss.Style
	key       lipgloss.Style
	paragraph lipgloss.Style
	bullet    lipgloss.Style
	errStyle  lipgloss.Style
	box       lipgloss.Style
}

// New creates a renderer. A nil theme uses DefaultTheme.
func New(theme *Theme) *Renderer {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Renderer{
		theme:     theme,
		title:     lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		heading:   lipgloss.NewStyle().Bold(true).Foreground(theme.Heading).MarginTop(1),
		key:       lipgloss.NewStyle().Bold(true).Foreground(theme.Key),
		paragraph: lipgloss.NewStyle(),
		bullet:    lipgloss.NewStyle().Foreground(theme.Accent),
		errStyle:  lipgloss.NewStyle().Bold(true).Foreground(theme.Error),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// Theme returns the palette in use.
func (r *Renderer) Theme() *Theme { return r.theme }

// Render draws doc inside a box. An empty document renders a muted notice.
func (r *Renderer) Render(doc *segment.Document) string {
	if doc == nil || doc.Empty() {
		return r.box.Render(lipgloss.NewStyle().Foreground(r.theme.Muted).Render("No information returned."))
	}

	lines := make([]string, 0, doc.Len())
	for _, b := range doc.Blocks {
		switch b.Kind {
		case segment.KindTitle:
			lines = append(lines, r.title.Render(b.Text))
		case segment.KindHeading:
			lines = append(lines, r.heading.Render(b.Text))
		case segment.KindField:
			lines = append(lines, r.key.Render(b.Key+":")+" "+b.Value)
		case segment.KindParagraph:
			lines = append(lines, r.paragraph.Render(b.Text))
		case segment.KindFacts:
			lines = append(lines, r.heading.Render("Interesting Facts"))
			for _, item := range b.Items {
				lines = append(lines, r.bullet.Render("•")+" "+item)
			}
		}
	}
	return r.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderError draws a failure message.
func (r *Renderer) RenderError(msg string) string {
	return r.errStyle.Render("✗ " + strings.TrimSpace(msg))
}
