// Package diag defines the analyzer diagnostic shape and a codespan-style
// renderer (spec.md §6 "Diagnostic format"). No library in the retrieved
// corpus renders codespan diagnostics, so this is intentionally
// standard-library-only (see DESIGN.md).
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Label annotates a span with a message; primary labels point at the
// offending construct, secondary labels point at related spans (spec.md §6).
type Label struct {
	File      string
	Line      int // 1-based
	Col       int // 1-based
	Width     int
	Message   string
	Primary   bool
}

// Diagnostic is one analyzer finding, carrying a stable problem code (e.g.
// "S0004") per the catalog referenced in spec.md §4.4 and §6.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Primary  Label
	Related  []Label
}

// Render produces a codespan-style rendering of a diagnostic against the
// given source lines (one entry per 1-based line number it needs, typically
// obtained by splitting the original file on "\n").
func Render(d Diagnostic, sourceLines map[string][]string) string {
	var b strings.Builder
	sev := "error"
	if d.Severity == SeverityWarning {
		sev = "warning"
	}
	fmt.Fprintf(&b, "%s[%s]: %s\n", sev, d.Code, d.Message)
	renderLabel(&b, d.Primary, sourceLines)
	for _, l := range d.Related {
		renderLabel(&b, l, sourceLines)
	}
	return b.String()
}

func renderLabel(b *strings.Builder, l Label, sourceLines map[string][]string) {
	fmt.Fprintf(b, "  --> %s:%d:%d\n", l.File, l.Line, l.Col)
	lines := sourceLines[l.File]
	gutter := fmt.Sprintf("%d", l.Line)
	pad := strings.Repeat(" ", len(gutter))
	fmt.Fprintf(b, "%s |\n", pad)
	if l.Line-1 >= 0 && l.Line-1 < len(lines) {
		fmt.Fprintf(b, "%s | %s\n", gutter, lines[l.Line-1])
	}
	marker := "^"
	if !l.Primary {
		marker = "-"
	}
	width := l.Width
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(b, "%s | %s%s %s\n", pad, strings.Repeat(" ", l.Col-1), strings.Repeat(marker, width), l.Message)
}
