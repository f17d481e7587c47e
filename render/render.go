// Package render formats coverage reports, rule listings, and extraction
// diagnostics for terminal and JSON output.
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/c360studio/spectrace/coverage"
	"github.com/c360studio/spectrace/rule"
)

var (
	bold       = color.New(color.Bold)
	green      = color.New(color.FgGreen)
	yellow     = color.New(color.FgYellow)
	yellowBold = color.New(color.FgYellow, color.Bold)
	red        = color.New(color.FgRed)
	redBold    = color.New(color.FgRed, color.Bold)
	cyan       = color.New(color.FgCyan)
	cyanBold   = color.New(color.FgCyan, color.Bold)
	blue       = color.New(color.FgBlue)
	magenta    = color.New(color.FgMagenta)
	dimmed     = color.New(color.Faint)
)

// verbIcon and verbColor assign each verb a stable glyph and color for
// terminal output.
var verbIcon = map[rule.Verb]string{
	rule.VerbDefine:  "◉",
	rule.VerbImpl:    "+",
	rule.VerbVerify:  "✓",
	rule.VerbDepends: "→",
	rule.VerbRelated: "~",
}

var verbColor = map[rule.Verb]*color.Color{
	rule.VerbDefine:  blue,
	rule.VerbImpl:    green,
	rule.VerbVerify:  cyan,
	rule.VerbDepends: magenta,
	rule.VerbRelated: dimmed,
}

// Renderer writes human-readable output to a single destination.
type Renderer struct {
	w io.Writer
}

// New creates a renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// percentString colors a coverage percentage by band: healthy, warning, or
// failing.
func percentString(percent float64) string {
	s := fmt.Sprintf("%.1f%%", percent)
	switch {
	case percent >= 80.0:
		return green.Sprint(s)
	case percent >= 50.0:
		return yellow.Sprint(s)
	default:
		return red.Sprint(s)
	}
}

// Report writes the coverage report for one spec. Verbose adds every valid
// reference grouped by verb.
func (r *Renderer) Report(rep *coverage.Report, verbose bool) {
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "%s %s Coverage Report\n", bold.Sprint("##"), cyanBold.Sprint(rep.SpecName))
	fmt.Fprintln(r.w)

	fmt.Fprintf(r.w, "Coverage: %s (%d/%d rules)\n",
		percentString(rep.CoveragePercent()), len(rep.CoveredRules), rep.TotalRules)

	if counts := rep.VerbCounts(); len(counts) > 0 {
		breakdown := ""
		for i, vc := range counts {
			if i > 0 {
				breakdown += ", "
			}
			breakdown += fmt.Sprintf("%d %s", vc.Count, vc.Verb)
		}
		fmt.Fprintf(r.w, "  References: %s\n", dimmed.Sprint(breakdown))
	}
	fmt.Fprintln(r.w)

	if len(rep.InvalidReferences) > 0 {
		fmt.Fprintf(r.w, "%s Invalid References (%d):\n", redBold.Sprint("!"), len(rep.InvalidReferences))
		for _, ref := range rep.InvalidReferences {
			fmt.Fprintf(r.w, "  %s %s:%d - unknown rule [%s %s]\n",
				red.Sprint("-"), ref.File, ref.Line,
				dimmed.Sprint(ref.Verb), yellow.Sprint(ref.RuleID))
		}
		fmt.Fprintln(r.w)
	}

	if len(rep.UncoveredRules) > 0 {
		fmt.Fprintf(r.w, "%s Uncovered Rules (%d):\n",
			yellowBold.Sprint("?"), len(rep.UncoveredRules))
		for _, id := range rep.SortedUncovered() {
			fmt.Fprintf(r.w, "  %s [%s]\n", yellow.Sprint("-"), dimmed.Sprint(id))
		}
		fmt.Fprintln(r.w)
	}

	if verbose {
		r.referencesByVerb(rep)
	}
}

// referencesByVerb writes every valid reference grouped by verb, then rule.
func (r *Renderer) referencesByVerb(rep *coverage.Report) {
	for _, verb := range rule.Verbs() {
		byRule := rep.ReferencesByVerb[verb]
		if len(byRule) == 0 {
			continue
		}

		total := 0
		ids := make([]rule.ID, 0, len(byRule))
		for id, refs := range byRule {
			total += len(refs)
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintf(r.w, "%s %s (%d references across %d rules):\n",
			bold.Sprint(verbIcon[verb]), verbColor[verb].Sprint(verb), total, len(byRule))

		for _, id := range ids {
			refs := byRule[id]
			fmt.Fprintf(r.w, "  [%s] (%d refs)\n", green.Sprint(id), len(refs))
			for _, ref := range refs {
				fmt.Fprintf(r.w, "      %s\n", dimmed.Sprintf("%s:%d", ref.File, ref.Line))
			}
		}
		fmt.Fprintln(r.w)
	}
}

// References writes a flat reference list, one per line, for the at command.
func (r *Renderer) References(refs []rule.Reference) {
	for _, ref := range refs {
		fmt.Fprintf(r.w, "%s %s [%s] %s:%d\n",
			bold.Sprint(verbIcon[ref.Verb]), verbColor[ref.Verb].Sprint(ref.Verb),
			green.Sprint(ref.RuleID), ref.File, ref.Line)
	}
}
