package rule

import (
	"fmt"
	"sort"
)

// DuplicateError reports a rule ID defined more than once, whether within a
// single document or across documents loaded into the same manifest.
type DuplicateError struct {
	ID       ID
	File     string // file of the later definition
	Line     int
	Original string // file of the earlier definition
}

func (e *DuplicateError) Error() string {
	if e.File == e.Original {
		return fmt.Sprintf("duplicate rule id %q in %s:%d", e.ID, e.File, e.Line)
	}
	return fmt.Sprintf("duplicate rule id %q in %s:%d (already defined in %s)", e.ID, e.File, e.Line, e.Original)
}

// Manifest is the keyed collection of rule definitions for one spec.
// Built once per spec-set load; treated as immutable afterward.
type Manifest struct {
	defs map[ID]*Definition
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{defs: make(map[ID]*Definition)}
}

// Add inserts a definition, rejecting duplicates. Duplicate detection is
// cross-file: the manifest does not care which document a definition came
// from, only that each ID appears once.
func (m *Manifest) Add(def Definition) error {
	if prev, ok := m.defs[def.ID]; ok {
		return &DuplicateError{ID: def.ID, File: def.File, Line: def.Line, Original: prev.File}
	}
	d := def
	m.defs[def.ID] = &d
	return nil
}

// AddAll inserts all definitions, stopping at the first duplicate.
func (m *Manifest) AddAll(defs []Definition) error {
	for _, def := range defs {
		if err := m.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether id is defined.
func (m *Manifest) Has(id ID) bool {
	_, ok := m.defs[id]
	return ok
}

// Get returns the definition for id, or nil.
func (m *Manifest) Get(id ID) *Definition {
	return m.defs[id]
}

// Len returns the number of defined rules.
func (m *Manifest) Len() int {
	return len(m.defs)
}

// IDs returns all rule IDs in sorted order.
func (m *Manifest) IDs() []ID {
	ids := make([]ID, 0, len(m.defs))
	for id := range m.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Definitions returns all definitions ordered by ID.
func (m *Manifest) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(m.defs))
	for _, id := range m.IDs() {
		defs = append(defs, m.defs[id])
	}
	return defs
}
