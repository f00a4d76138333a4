package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color palette
var (
	Green  = lipgloss.Color("10")
	Red    = lipgloss.Color("9")
	Grey   = lipgloss.Color("8")
	Blue   = lipgloss.Color("4")
	Yellow = lipgloss.Color("11")
	White  = lipgloss.Color("15")
)

const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	UserPrompt  = "❯"
)

// Styles holds the text styles for one output.
type Styles struct {
	renderer *lipgloss.Renderer
	color    bool

	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Header    lipgloss.Style
	Italic    lipgloss.Style
	Code      lipgloss.Style
}

// NewStyles creates styles for w. When color is false every style renders
// plain text.
func NewStyles(w io.Writer, color bool) *Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		renderer:  r,
		color:     color,
		Title:     r.NewStyle().Bold(true).Foreground(White),
		User:      r.NewStyle().Bold(true).Foreground(Blue),
		Assistant: r.NewStyle().Bold(true).Foreground(Green),
		Success:   r.NewStyle().Foreground(Green),
		Error:     r.NewStyle().Foreground(Red),
		Warning:   r.NewStyle().Foreground(Yellow),
		Muted:     r.NewStyle().Foreground(Grey),
		Bold:      r.NewStyle().Bold(true),
		Header:    r.NewStyle().Bold(true).Foreground(White).Underline(true),
		Italic:    r.NewStyle().Italic(true),
		Code:      r.NewStyle().Foreground(Yellow),
	}
}

// Color reports whether the styles emit ANSI sequences.
func (s *Styles) Color() bool {
	return s.color
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Truncate shortens s to maxLen runes with an ellipsis.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
