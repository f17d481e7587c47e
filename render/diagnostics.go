package render

import (
	"fmt"
	"strings"

	"github.com/c360studio/spectrace/rule"
)

// SourceFunc resolves a file path to its scanned content. It returns false
// when the content is no longer available, in which case the diagnostic is
// rendered without a source excerpt.
type SourceFunc func(path string) (string, bool)

// Diagnostics writes one diagnostic per warning, with a source excerpt and a
// caret underlining the offending span when the content is available.
func (r *Renderer) Diagnostics(warnings []rule.ParseWarning, source SourceFunc) {
	for _, w := range warnings {
		r.diagnostic(w, source)
	}
}

func (r *Renderer) diagnostic(w rule.ParseWarning, source SourceFunc) {
	var message, help string
	switch w.Kind {
	case rule.WarnUnknownVerb:
		message = fmt.Sprintf("unknown verb %q", w.Verb)
		help = "Valid verbs are: define, impl, verify, depends, related"
	case rule.WarnMalformedReference:
		message = "malformed rule reference"
		help = "Expected [verb rule.id] or [rule.id]"
	default:
		message = string(w.Kind)
	}

	content, ok := source(w.File)
	if !ok || w.Span.Offset > len(content) {
		fmt.Fprintf(r.w, "%s: %s (%s, offset %d)\n",
			yellowBold.Sprint("warning"), message, w.File, w.Span.Offset)
		fmt.Fprintf(r.w, "  %s %s\n\n", dimmed.Sprint("help:"), help)
		return
	}

	line, col := locate(content, w.Span.Offset)
	fmt.Fprintf(r.w, "%s: %s\n", yellowBold.Sprint("warning"), message)
	fmt.Fprintf(r.w, "  %s %s:%d:%d\n", dimmed.Sprint("-->"), w.File, line, col)

	lineText := extractLine(content, w.Span.Offset)
	fmt.Fprintf(r.w, "  %s\n", lineText)

	width := w.Span.Length
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(r.w, "  %s%s\n", strings.Repeat(" ", col-1),
		yellow.Sprint(strings.Repeat("^", width)))
	fmt.Fprintf(r.w, "  %s %s\n\n", dimmed.Sprint("help:"), help)
}

// locate converts a byte offset to a 1-indexed line and column.
func locate(content string, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// extractLine returns the full line of text containing the byte offset,
// without its trailing newline.
func extractLine(content string, offset int) string {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := strings.IndexByte(content[offset:], '\n')
	if end < 0 {
		return content[start:]
	}
	return content[start : offset+end]
}
