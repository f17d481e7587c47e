package extract

import "github.com/c360studio/spectrace/rule"

// At returns the references on a single 1-indexed line. It is a pure filter
// over already-extracted references, not a re-parse.
func At(refs []rule.Reference, line int) []rule.Reference {
	return InRange(refs, line, line)
}

// InRange returns the references whose line falls in the inclusive range
// [start, end], preserving input order.
func InRange(refs []rule.Reference, start, end int) []rule.Reference {
	var out []rule.Reference
	for _, r := range refs {
		if r.Line >= start && r.Line <= end {
			out = append(out, r)
		}
	}
	return out
}
