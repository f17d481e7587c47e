// Package spec extracts rule definitions from specification documents and
// assembles them into manifests.
//
// A rule definition is a line-leading marker followed by a bracketed rule ID
// and optional space-separated key=value attributes:
//
//	r[channel.id.parity] status=stable level=must tags=channel,alloc
//
// The grammar is strict: unknown attributes and out-of-enum values are hard
// errors that abort the whole parse, never warnings.
package spec

import (
	"fmt"
	"strings"

	"github.com/c360studio/spectrace/rule"
)

// DefaultMarker introduces a rule definition line.
const DefaultMarker = "r"

// ParseError is a grammar violation in a specification document.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// Parser parses rule definitions out of specification documents.
type Parser struct {
	marker string
}

// NewParser creates a parser using the given definition marker. An empty
// marker selects DefaultMarker.
func NewParser(marker string) *Parser {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Parser{marker: marker}
}

// Parse extracts all rule definitions from a document, preserving source
// order. Duplicate IDs within the document are rejected here; cross-document
// duplicates are rejected when the definitions are added to a manifest.
func (p *Parser) Parse(docPath, text string) ([]rule.Definition, error) {
	var defs []rule.Definition
	seen := make(map[rule.ID]int)

	lineNum := 0
	for _, line := range strings.Split(text, "\n") {
		lineNum++
		line = strings.TrimSuffix(line, "\r")

		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, p.marker+"[") {
			continue
		}
		body := trimmed[len(p.marker)+1:]

		closeIdx := strings.IndexByte(body, ']')
		if closeIdx < 0 {
			return nil, &ParseError{File: docPath, Line: lineNum, Reason: "unterminated rule definition: missing ']'"}
		}
		idTok := body[:closeIdx]
		id, err := rule.ParseID(idTok)
		if err != nil {
			return nil, &ParseError{File: docPath, Line: lineNum, Reason: err.Error()}
		}
		if prev, ok := seen[id]; ok {
			return nil, &rule.DuplicateError{ID: id, File: docPath, Line: lineNum, Original: fmt.Sprintf("%s:%d", docPath, prev)}
		}
		seen[id] = lineNum

		meta, err := parseAttributes(body[closeIdx+1:])
		if err != nil {
			return nil, &ParseError{File: docPath, Line: lineNum, Reason: err.Error()}
		}

		defs = append(defs, rule.Definition{
			ID:   id,
			File: docPath,
			Line: lineNum,
			Meta: meta,
		})
	}

	return defs, nil
}

// parseAttributes parses the space-separated key=value pairs after the
// bracketed rule ID.
func parseAttributes(rest string) (rule.Metadata, error) {
	var meta rule.Metadata
	used := make(map[string]bool)

	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return rule.Metadata{}, fmt.Errorf("malformed attribute %q (expected key=value)", field)
		}
		if used[key] {
			return rule.Metadata{}, fmt.Errorf("duplicate attribute %q", key)
		}
		used[key] = true

		switch key {
		case "status":
			status, err := rule.ParseStatus(value)
			if err != nil {
				return rule.Metadata{}, err
			}
			meta.Status = status
		case "level":
			level, err := rule.ParseLevel(value)
			if err != nil {
				return rule.Metadata{}, err
			}
			meta.Level = level
		case "since":
			meta.Since = value
		case "until":
			meta.Until = value
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag != "" {
					meta.Tags = append(meta.Tags, tag)
				}
			}
		default:
			return rule.Metadata{}, fmt.Errorf("unknown attribute %q", key)
		}
	}

	return meta, nil
}
