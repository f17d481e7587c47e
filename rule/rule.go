// Package rule defines the core value types for requirement traceability:
// rule identifiers, reference verbs, source references, parse warnings, and
// rule definitions with their metadata.
package rule

import (
	"fmt"
	"regexp"
)

// idPattern validates hierarchical rule IDs: lowercase, dot-separated,
// at least two segments, hyphens and digits allowed after the first letter.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*(\.[a-z0-9-]+)+$`)

// ID is a validated hierarchical rule identifier such as "channel.id.parity".
// Equality is exact string equality; no normalization is performed.
type ID string

// ParseID validates s against the rule ID grammar.
func ParseID(s string) (ID, error) {
	if !ValidID(s) {
		return "", fmt.Errorf("invalid rule id %q", s)
	}
	return ID(s), nil
}

// ValidID reports whether s satisfies the rule ID grammar.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

func (id ID) String() string { return string(id) }

// Verb classifies how a reference relates to a rule.
type Verb string

// The closed set of reference verbs. VerbImpl is the default for the
// legacy bracket form without an explicit verb.
const (
	VerbDefine  Verb = "define"
	VerbImpl    Verb = "impl"
	VerbVerify  Verb = "verify"
	VerbDepends Verb = "depends"
	VerbRelated Verb = "related"
)

// Verbs returns all verbs in canonical display order.
func Verbs() []Verb {
	return []Verb{VerbDefine, VerbImpl, VerbVerify, VerbDepends, VerbRelated}
}

// ParseVerb maps a source token to a Verb.
func ParseVerb(s string) (Verb, bool) {
	switch Verb(s) {
	case VerbDefine, VerbImpl, VerbVerify, VerbDepends, VerbRelated:
		return Verb(s), true
	}
	return "", false
}

func (v Verb) String() string { return string(v) }

// Reference is one occurrence of a rule reference in source text.
// Immutable once created.
type Reference struct {
	// Verb is how the referencing code relates to the rule.
	Verb Verb `json:"verb"`
	// RuleID is the referenced rule.
	RuleID ID `json:"rule_id"`
	// File is the path the reference was found in.
	File string `json:"file"`
	// Line is the 1-indexed line number. For block comments this is the
	// line where the block opened.
	Line int `json:"line"`
	// Context is the trimmed comment text containing the reference.
	Context string `json:"context"`
}

// Span locates a region of the original source text by byte offset.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// WarningKind classifies a parse warning.
type WarningKind string

// Warning kinds emitted by the reference extractor.
const (
	WarnUnknownVerb        WarningKind = "unknown_verb"
	WarnMalformedReference WarningKind = "malformed_reference"
)

// ParseWarning records a bracketed construct that looked like a reference
// attempt but failed to validate. Non-fatal; collected for diagnostics.
type ParseWarning struct {
	Kind WarningKind `json:"kind"`
	// Verb is the unrecognized verb token, set only for WarnUnknownVerb.
	Verb string `json:"verb,omitempty"`
	File string `json:"file"`
	Span Span   `json:"span"`
}

// Status is the lifecycle state of a rule definition.
type Status string

// Recognized status attribute values.
const (
	StatusStable     Status = "stable"
	StatusDraft      Status = "draft"
	StatusDeprecated Status = "deprecated"
)

// ParseStatus validates a status attribute value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusStable, StatusDraft, StatusDeprecated:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q (expected stable, draft, or deprecated)", s)
}

// Level is the requirement strength of a rule definition.
type Level string

// Recognized level attribute values.
const (
	LevelMust   Level = "must"
	LevelShould Level = "should"
	LevelMay    Level = "may"
)

// ParseLevel validates a level attribute value.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelMust, LevelShould, LevelMay:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid level %q (expected must, should, or may)", s)
}

// Metadata carries the optional typed attributes of a rule definition.
type Metadata struct {
	// Status is empty when the definition carries no status attribute.
	Status Status `json:"status,omitempty"`
	// Level is empty when the definition carries no level attribute.
	Level Level `json:"level,omitempty"`
	// Since and Until are stored verbatim.
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`
	// Tags preserves attribute order.
	Tags []string `json:"tags,omitempty"`
}

// Definition is one rule defined by a specification document.
type Definition struct {
	ID   ID     `json:"id"`
	File string `json:"file"`
	// Line is 1-indexed; zero for definitions decoded from a JSON manifest,
	// which carries no source positions.
	Line int `json:"line,omitempty"`
	// URL links to the rule's anchor in a published spec, when known.
	URL  string   `json:"url,omitempty"`
	Meta Metadata `json:"meta"`
}
