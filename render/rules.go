package render

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/c360studio/spectrace/rule"
)

// RulesTable writes every definition in the manifest as a table, sorted by
// rule ID.
func (r *Renderer) RulesTable(manifest *rule.Manifest) error {
	table := tablewriter.NewWriter(r.w)
	table.Header("Rule", "Status", "Level", "Tags", "Defined At")

	for _, id := range manifest.IDs() {
		def := manifest.Get(id)

		location := def.File
		if def.Line > 0 {
			location = fmt.Sprintf("%s:%d", def.File, def.Line)
		}
		if location == "" {
			location = def.URL
		}

		if err := table.Append([]string{
			string(def.ID),
			string(def.Meta.Status),
			string(def.Meta.Level),
			strings.Join(def.Meta.Tags, ","),
			location,
		}); err != nil {
			return fmt.Errorf("append rule row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("render rules table: %w", err)
	}
	return nil
}
