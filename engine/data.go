package engine

import (
	"time"

	"github.com/c360studio/spectrace/coverage"
	"github.com/c360studio/spectrace/rule"
)

// DashboardData is one immutable, versioned result of a full rebuild pass.
// Once constructed it is never mutated; the next rebuild supersedes it with a
// fresh value. Readers and subscribers may hold a snapshot for as long as
// they need it.
type DashboardData struct {
	// Version is the rebuild counter value this snapshot was built under.
	Version uint64 `json:"version"`
	// BuiltAt is when the rebuild finished.
	BuiltAt time.Time `json:"built_at"`
	// Duration is how long the rebuild took.
	Duration time.Duration `json:"duration"`
	// Specs holds one entry per configured spec, in config order.
	Specs []SpecData `json:"specs"`
}

// SpecData is the rebuilt state for one configured spec.
type SpecData struct {
	// Name of the spec.
	Name string `json:"name"`
	// Manifest holds the spec's rule definitions.
	Manifest *rule.Manifest `json:"-"`
	// Report is the computed coverage.
	Report *coverage.Report `json:"report"`
	// References holds every extracted reference, valid or not.
	References []rule.Reference `json:"-"`
	// Warnings collected during extraction.
	Warnings []rule.ParseWarning `json:"warnings,omitempty"`
	// Files lists the scanned source paths, relative to the project root.
	Files []string `json:"files"`
}

// AllPassing reports whether every spec's coverage passes the threshold.
func (d *DashboardData) AllPassing(threshold float64) bool {
	for _, s := range d.Specs {
		if !s.Report.IsPassing(threshold) {
			return false
		}
	}
	return true
}

// Spec returns the entry for the named spec, or nil.
func (d *DashboardData) Spec(name string) *SpecData {
	for i := range d.Specs {
		if d.Specs[i].Name == name {
			return &d.Specs[i]
		}
	}
	return nil
}
