// Package coverage cross-references rule definitions against extracted
// references to produce a coverage report.
package coverage

import (
	"sort"

	"github.com/c360studio/spectrace/rule"
)

// Report is the coverage result for one spec. It is derived and stateless:
// recomputed from a (manifest, references) pair, never mutated in place.
type Report struct {
	// SpecName identifies which spec this report covers.
	SpecName string `json:"spec_name"`

	// TotalRules is the number of rules defined by the spec.
	TotalRules int `json:"total_rules"`

	// CoveredRules holds the rule IDs with at least one valid reference.
	CoveredRules map[rule.ID]bool `json:"covered_rules"`

	// UncoveredRules holds the defined rule IDs with no references.
	UncoveredRules map[rule.ID]bool `json:"uncovered_rules"`

	// InvalidReferences are references whose rule ID is not in the
	// manifest, in original extraction order.
	InvalidReferences []rule.Reference `json:"invalid_references"`

	// ReferencesByRule indexes valid references by rule ID, multiplicity
	// preserved.
	ReferencesByRule map[rule.ID][]rule.Reference `json:"references_by_rule"`

	// ReferencesByVerb indexes valid references by verb, then by rule ID.
	ReferencesByVerb map[rule.Verb]map[rule.ID][]rule.Reference `json:"references_by_verb"`
}

// Compute builds a report from a manifest and a reference list. It is pure
// and total: absent or invalid inputs surface as empty sets or invalid
// reference entries, never as an error.
func Compute(specName string, manifest *rule.Manifest, references []rule.Reference) *Report {
	r := &Report{
		SpecName:         specName,
		CoveredRules:     make(map[rule.ID]bool),
		UncoveredRules:   make(map[rule.ID]bool),
		ReferencesByRule: make(map[rule.ID][]rule.Reference),
		ReferencesByVerb: make(map[rule.Verb]map[rule.ID][]rule.Reference),
	}
	if manifest != nil {
		r.TotalRules = manifest.Len()
	}

	for _, ref := range references {
		if manifest == nil || !manifest.Has(ref.RuleID) {
			r.InvalidReferences = append(r.InvalidReferences, ref)
			continue
		}
		r.CoveredRules[ref.RuleID] = true
		r.ReferencesByRule[ref.RuleID] = append(r.ReferencesByRule[ref.RuleID], ref)

		byRule := r.ReferencesByVerb[ref.Verb]
		if byRule == nil {
			byRule = make(map[rule.ID][]rule.Reference)
			r.ReferencesByVerb[ref.Verb] = byRule
		}
		byRule[ref.RuleID] = append(byRule[ref.RuleID], ref)
	}

	if manifest != nil {
		for _, id := range manifest.IDs() {
			if !r.CoveredRules[id] {
				r.UncoveredRules[id] = true
			}
		}
	}

	return r
}

// CoveragePercent returns covered/total as a percentage. An empty spec is
// vacuously fully covered.
func (r *Report) CoveragePercent() float64 {
	if r.TotalRules == 0 {
		return 100.0
	}
	return float64(len(r.CoveredRules)) / float64(r.TotalRules) * 100.0
}

// IsPassing reports whether coverage meets threshold and no invalid
// references exist. Any invalid reference fails the report regardless of
// percentage.
func (r *Report) IsPassing(threshold float64) bool {
	return len(r.InvalidReferences) == 0 && r.CoveragePercent() >= threshold
}

// SortedUncovered returns the uncovered rule IDs in sorted order.
func (r *Report) SortedUncovered() []rule.ID {
	ids := make([]rule.ID, 0, len(r.UncoveredRules))
	for id := range r.UncoveredRules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VerbCounts returns per-verb reference totals in canonical verb order,
// omitting verbs with no references.
func (r *Report) VerbCounts() []VerbCount {
	var counts []VerbCount
	for _, verb := range rule.Verbs() {
		byRule := r.ReferencesByVerb[verb]
		total := 0
		for _, refs := range byRule {
			total += len(refs)
		}
		if total > 0 {
			counts = append(counts, VerbCount{Verb: verb, Count: total})
		}
	}
	return counts
}

// VerbCount pairs a verb with its total reference count.
type VerbCount struct {
	Verb  rule.Verb `json:"verb"`
	Count int       `json:"count"`
}
