package session

import (
	"fmt"
	"strings"

	"github.com/samsaffron/term-chat/internal/chat"
)

// ExportOptions configures conversation export.
type ExportOptions struct {
	IncludeSystem bool // Include system instruction in export
}

// escapeTableCell escapes special characters for markdown table cells.
func escapeTableCell(s string) string {
	// Replace pipe characters and newlines which break tables
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ExportToMarkdown renders a conversation as markdown.
func ExportToMarkdown(snap chat.Snapshot, opts ExportOptions) string {
	var b strings.Builder

	title := snap.Name
	if title == "" {
		title = ShortID(snap.ID)
	}
	fmt.Fprintf(&b, "# Chat: %s\n\n", escapeTableCell(title))

	b.WriteString("## Setup\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| **Backend** | %s |\n", escapeTableCell(snap.BackendID))
	fmt.Fprintf(&b, "| **Model** | %s |\n", escapeTableCell(snap.Model))
	fmt.Fprintf(&b, "| **Temperature** | %.1f |\n", snap.Temperature)
	fmt.Fprintf(&b, "| **Created** | %s |\n", snap.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "| **Messages** | %s |\n\n", formatCount(len(snap.Messages)))

	b.WriteString("---\n\n")

	if opts.IncludeSystem && snap.SystemMessage != "" {
		b.WriteString("### System\n\n")
		b.WriteString(snap.SystemMessage)
		b.WriteString("\n\n---\n\n")
	}

	for _, m := range snap.Messages {
		if m.Own {
			b.WriteString("### User\n\n")
		} else {
			b.WriteString("### Assistant\n\n")
		}
		b.WriteString(m.Body)
		b.WriteString("\n\n---\n\n")
	}

	return b.String()
}

// formatCount formats a number in compact form (e.g., 1K, 1.2K, 3.4M).
func formatCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		val := float64(n) / 1000
		if val == float64(int(val)) {
			return fmt.Sprintf("%dK", int(val))
		}
		return fmt.Sprintf("%.1fK", val)
	}
	val := float64(n) / 1000000
	if val == float64(int(val)) {
		return fmt.Sprintf("%dM", int(val))
	}
	return fmt.Sprintf("%.1fM", val)
}
