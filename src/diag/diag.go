// Package diag implements the diagnostics collector threaded by borrow
// through every compiler pass (spec component C1). It owns a growable
// sequence of {message, position} records and renders them with the
// caret-excerpt format used throughout the pipeline.
//
// Unlike the teacher's util.perror, which runs a goroutine listening on a
// channel so concurrent worker threads can report errors safely, Diagnostics
// is a plain synchronous slice: the pipeline this collector serves runs one
// pass at a time on one goroutine, so there is nothing to synchronize.
package diag

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"anthem/src/token"
)

// windowWidth is the number of source columns the excerpt renderer shows on
// either side of the offending span before truncating with an ellipsis.
const windowWidth = 30

// Diagnostic is a single reported error.
type Diagnostic struct {
	Message string
	Pos     token.Position
}

// Diagnostics collects diagnostics for one compilation. A Diagnostics value
// is shared by reference across all passes of a single run.
type Diagnostics struct {
	errs []Diagnostic
}

// New returns an empty collector.
func New() *Diagnostics {
	return &Diagnostics{}
}

// Report appends a diagnostic. It never fails and never blocks.
func (d *Diagnostics) Report(message string, pos token.Position) {
	d.errs = append(d.errs, Diagnostic{Message: message, Pos: pos})
}

// Reportf is Report with fmt.Sprintf-style formatting.
func (d *Diagnostics) Reportf(pos token.Position, format string, args ...interface{}) {
	d.Report(fmt.Sprintf(format, args...), pos)
}

// HasErrors reports whether any diagnostic has been collected. The driver
// consults this after every pass: a non-empty set aborts the pipeline.
func (d *Diagnostics) HasErrors() bool {
	return len(d.errs) > 0
}

// Errors returns the collected diagnostics in report order.
func (d *Diagnostics) Errors() []Diagnostic {
	return d.errs
}

// Print renders every collected diagnostic against src (the full source text
// the positions index into) to w, in the format:
//
//	ERROR: <msg> at file: '<basename>', line: <L>
//	Line <L>: <up to 30 cols before><offending text><up to 30 cols after>
//	          <spaces><carets covering end - start + 1 columns>
func (d *Diagnostics) Print(w io.Writer, src string) {
	for _, e := range d.errs {
		d.printOne(w, src, e)
	}
}

func (d *Diagnostics) printOne(w io.Writer, src string, e Diagnostic) {
	base := filepath.Base(e.Pos.File)
	fmt.Fprintf(w, "ERROR: %s at file: '%s', line: %d\n", e.Message, base, e.Pos.Line)

	excerpt, leadingCapped, lineHeader := excerptAround(src, e.Pos)
	fmt.Fprintf(w, "Line %d: %s\n", e.Pos.Line, excerpt)

	pad := len(lineHeader)
	if leadingCapped {
		pad += 3 // leading "..." counts toward caret padding
	}
	caretLen := e.Pos.End - e.Pos.Start + 1
	if caretLen < 1 {
		caretLen = 1
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", pad), strings.Repeat("^", caretLen))
}

// excerptAround extracts the source window around pos, stopping at newlines
// or after windowWidth columns, whichever comes first, and prefixing/
// suffixing "..." when the column budget (not a newline) was the reason the
// scan stopped. lineHeader is the literal "Line N: " prefix used to compute
// caret padding.
func excerptAround(src string, pos token.Position) (excerpt string, leadingCapped bool, lineHeader string) {
	lineHeader = fmt.Sprintf("Line %d: ", pos.Line)

	start, end := pos.Start, pos.End
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	if end >= len(src) {
		end = len(src) - 1
	}

	leadBegin := start
	leadCount := 0
	for leadBegin > 0 && leadCount < windowWidth && src[leadBegin-1] != '\n' {
		leadBegin--
		leadCount++
	}
	leadingCapped = leadCount == windowWidth && leadBegin > 0 && src[leadBegin-1] != '\n'

	trailEnd := end + 1
	trailCount := 0
	for trailEnd < len(src) && trailCount < windowWidth && src[trailEnd] != '\n' {
		trailEnd++
		trailCount++
	}
	trailingCapped := trailCount == windowWidth && trailEnd < len(src) && src[trailEnd] != '\n'

	var b strings.Builder
	if leadingCapped {
		b.WriteString("...")
	}
	if start <= end && end < len(src) {
		b.WriteString(src[leadBegin:start])
		b.WriteString(src[start : end+1])
		b.WriteString(src[end+1 : trailEnd])
	} else if leadBegin <= len(src) {
		b.WriteString(src[leadBegin:])
	}
	if trailingCapped {
		b.WriteString("...")
	}
	return b.String(), leadingCapped, lineHeader
}
