package logpager

import (
	"strings"

	"github.com/atotto/clipboard"

	"copilot-dash/src/contracts"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// RenderText joins entries into "[timestamp]\ncontent" blocks separated by a blank line.
func RenderText(entries []contracts.LogEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteByte('[')
		b.WriteString(e.Timestamp.Display())
		b.WriteString("]\n")
		b.WriteString(e.Content)
	}
	return b.String()
}

// Text renders the current buffer.
func (p *Pager) Text() string {
	return RenderText(p.Buffer().Entries)
}

// CopyToClipboard writes Text to the system clipboard. Pager state is not touched.
func (p *Pager) CopyToClipboard() error {
	return writeClipboard(p.Text())
}

// ClipboardAvailable reports whether the platform has a clipboard utility.
func ClipboardAvailable() bool {
	return !clipboard.Unsupported
}
