package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/c360studio/spectrace/coverage"
	"github.com/c360studio/spectrace/rule"
)

func TestMetrics_RebuildSucceeded(t *testing.T) {
	m := NewMetrics()

	data := &DashboardData{
		Version:  3,
		Duration: 20 * time.Millisecond,
		Specs: []SpecData{{
			Name: "api",
			Report: &coverage.Report{
				SpecName:     "api",
				TotalRules:   4,
				CoveredRules: map[rule.ID]bool{"api.auth": true},
				UncoveredRules: map[rule.ID]bool{
					"api.audit": true, "api.rate": true, "api.cors": true,
				},
			},
			Files: []string{"a.go", "b.go"},
		}},
	}
	m.RebuildSucceeded(data)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.version))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.coverage.WithLabelValues("api")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.uncovered.WithLabelValues("api")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scannedFiles.WithLabelValues("api")))
}

func TestMetrics_RebuildFailed(t *testing.T) {
	m := NewMetrics()
	m.RebuildFailed()
	m.RebuildFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rebuilds))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures))
}
