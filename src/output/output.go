// Package output renders run results for terminals and CI systems.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/trustedanalytics/platform-parent/src/pipeline"
)

// paint applies attrs to text when on is set, regardless of whether the
// process writes to a terminal.
func paint(on bool, text string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if on {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

// UseColor returns true if colored output should be used. color.NoColor
// covers NO_COLOR, TERM=dumb and a stdout that is not a terminal. CI job
// logs render ANSI, so CI gets color unless it is switched off explicitly.
func UseColor() bool {
	if !color.NoColor {
		return true
	}
	return IsCI() && os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
}

// RunSummary writes one row per project and a totals row.
func RunSummary(w io.Writer, s *pipeline.Summary, colorOn bool) {
	sec := NewSection(w, "Build", s.Duration, colorOn)
	for _, r := range s.Results {
		name := fmt.Sprintf("%-24s %-10s", r.Project.Name, r.Project.Builder)
		sec.Row("%s %s  %s", name, StatusIcon(r.Status, colorOn), resultDetail(r, colorOn))
	}
	sec.Rule()

	status := pipeline.StatusSuccess
	if !s.OK() {
		status = pipeline.StatusFailed
	}
	totals := fmt.Sprintf("%d built, %d failed, %d skipped",
		s.Count(pipeline.StatusSuccess), s.Count(pipeline.StatusFailed), s.Count(pipeline.StatusSkipped))
	sec.Row("%-35s %s  %s", totals, StatusIcon(status, colorOn), Dimmed(formatElapsed(s.Duration), colorOn))
	sec.Close()

	if s.RefsFile != "" {
		fmt.Fprintf(w, "    refs        %s\n", s.RefsFile)
	}
	if s.Descriptor != "" {
		fmt.Fprintf(w, "    descriptor  %s\n", s.Descriptor)
	}
	if len(s.Published) > 0 {
		fmt.Fprintf(w, "    published   %d objects\n", len(s.Published))
	}
}

func resultDetail(r pipeline.Result, colorOn bool) string {
	switch r.Status {
	case pipeline.StatusFailed:
		return paint(colorOn, r.Err.Error(), color.FgRed)
	case pipeline.StatusSkipped:
		return Dimmed("skipped", colorOn)
	}
	names := make([]string, len(r.Archives))
	for i, a := range r.Archives {
		names[i] = filepath.Base(a)
	}
	detail := strings.Join(names, ", ")
	if r.Ref != "" {
		detail += " " + Dimmed("@ "+shortRef(r.Ref), colorOn)
	}
	return detail + " " + Dimmed("("+formatElapsed(r.Duration)+")", colorOn)
}

// shortRef abbreviates commit hashes.
func shortRef(ref string) string {
	if len(ref) == 40 && strings.Trim(ref, "0123456789abcdef") == "" {
		return ref[:8]
	}
	return ref
}
