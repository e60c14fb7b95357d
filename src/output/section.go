package output

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/trustedanalytics/platform-parent/src/pipeline"
)

// frame is the width of section titles and rules.
const frame = 64

// Section is a titled block of rows.
type Section struct {
	w io.Writer
}

// NewSection writes the title line. A non-zero elapsed follows the title.
func NewSection(w io.Writer, title string, elapsed time.Duration, colorOn bool) *Section {
	head := "── " + title + " "
	if elapsed > 0 {
		head += "(" + formatElapsed(elapsed) + ") "
	}
	if n := frame - utf8.RuneCountInString(head); n > 0 {
		head += strings.Repeat("─", n)
	}
	fmt.Fprintf(w, "\n  %s\n", paint(colorOn, head, color.Bold, color.FgCyan))
	return &Section{w: w}
}

// Row writes one framed line.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "  │ %s\n", fmt.Sprintf(format, args...))
}

// Rule separates the project rows from the totals.
func (s *Section) Rule() {
	fmt.Fprintf(s.w, "  ├%s\n", strings.Repeat("─", frame-1))
}

func (s *Section) Close() {
	fmt.Fprintf(s.w, "  └%s\n", strings.Repeat("─", frame-1))
}

// StatusIcon maps a project status to a one-rune marker.
func StatusIcon(st pipeline.Status, colorOn bool) string {
	switch st {
	case pipeline.StatusSuccess:
		return paint(colorOn, "✓", color.FgGreen)
	case pipeline.StatusFailed:
		return paint(colorOn, "✗", color.FgRed)
	default:
		return paint(colorOn, "⊘", color.FgYellow)
	}
}

func Dimmed(text string, colorOn bool) string {
	return paint(colorOn, text, color.FgHiBlack)
}

// KV is one line of a context block.
type KV struct {
	Key   string
	Value string
}

// ContextBlock prints the run parameters, one per line, keys padded to
// the longest key.
func ContextBlock(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	width := 0
	for _, p := range kv {
		width = max(width, len(p.Key))
	}
	fmt.Fprintln(w)
	for _, p := range kv {
		fmt.Fprintf(w, "  %-*s  %s\n", width, p.Key, p.Value)
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
