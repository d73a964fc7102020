package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"copilot-dash/src/sanitize"
)

// VisualWidth returns the display width of text. Escape sequences take no space.
func VisualWidth(s string) int {
	return ansi.StringWidth(s)
}

// Truncate cuts text to maxLen cells, ending in "..." when ellipsis is set and
// there is room for it.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if VisualWidth(s) <= maxLen {
		return s
	}
	if ellipsis && maxLen > 3 {
		return ansi.Truncate(s, maxLen, "...")
	}
	return ansi.Truncate(s, maxLen, "")
}

// TruncateAndPad truncates text and right-pads it to exactly width cells.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	s = Truncate(s, width, ellipsis)
	if w := VisualWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// PadLeft right-aligns plain text in width cells.
func PadLeft(s string, width int) string {
	return runewidth.FillLeft(s, width)
}

// Wrap wraps text to width, breaking on spaces and splitting words that do not fit
// on a line of their own. Existing newlines are kept.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return ansi.Wrap(text, width, "")
}

// SplitLines splits text by newlines, returning empty slice if text is empty
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

// CleanLogText prepares backend log content for display. Any escape sequence left
// after sanitizing is stripped and tabs are expanded so width calculations hold.
func CleanLogText(s string) string {
	s = ansi.Strip(sanitize.Clean(s))
	return strings.ReplaceAll(s, "\t", "    ")
}

// FirstLine returns the first non-blank line of s.
func FirstLine(s string) string {
	for _, line := range SplitLines(s) {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
