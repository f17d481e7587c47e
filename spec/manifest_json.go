package spec

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/spectrace/rule"
)

// rulesDocument is the published manifest shape (_rules.json): a map of rule
// IDs to per-rule info.
type rulesDocument struct {
	Rules map[string]ruleInfo `json:"rules"`
}

type ruleInfo struct {
	// URL is the fragment linking to this rule in the published spec.
	URL string `json:"url"`
}

// DecodeRulesJSON decodes a _rules.json manifest document into definitions.
// The document shape carries no source positions, so Line is zero and File is
// the document's path or URL. IDs are validated against the rule ID grammar.
func DecodeRulesJSON(source string, data []byte) ([]rule.Definition, error) {
	var doc rulesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules manifest %s: %w", source, err)
	}

	defs := make([]rule.Definition, 0, len(doc.Rules))
	for idStr, info := range doc.Rules {
		id, err := rule.ParseID(idStr)
		if err != nil {
			return nil, fmt.Errorf("rules manifest %s: %w", source, err)
		}
		defs = append(defs, rule.Definition{
			ID:   id,
			File: source,
			URL:  info.URL,
		})
	}
	return defs, nil
}
