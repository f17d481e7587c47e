package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// RebuildSubject is the NATS subject rebuild events are published on.
const RebuildSubject = "spectrace.rebuild"

// RebuildEvent is the payload published after each successful rebuild.
type RebuildEvent struct {
	Version    uint64      `json:"version"`
	BuiltAt    time.Time   `json:"built_at"`
	DurationMS float64     `json:"duration_ms"`
	Specs      []SpecEvent `json:"specs"`
}

// SpecEvent summarizes one spec's coverage inside a RebuildEvent.
type SpecEvent struct {
	Name            string  `json:"name"`
	TotalRules      int     `json:"total_rules"`
	CoveredRules    int     `json:"covered_rules"`
	CoveragePercent float64 `json:"coverage_percent"`
	InvalidRefs     int     `json:"invalid_references"`
}

// Publisher emits rebuild events to NATS so other tooling can react to
// coverage changes without polling the HTTP API.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to the given NATS URL.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("spectrace"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// PublishRebuild publishes a summary of the given snapshot.
func (p *Publisher) PublishRebuild(data *DashboardData) error {
	event := RebuildEvent{
		Version:   data.Version,
		BuiltAt:   data.BuiltAt,
		DurationMS: float64(data.Duration.Microseconds()) / 1000.0,
	}
	for _, s := range data.Specs {
		event.Specs = append(event.Specs, SpecEvent{
			Name:            s.Name,
			TotalRules:      s.Report.TotalRules,
			CoveredRules:    len(s.Report.CoveredRules),
			CoveragePercent: s.Report.CoveragePercent(),
			InvalidRefs:     len(s.Report.InvalidReferences),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal rebuild event: %w", err)
	}
	if err := p.conn.Publish(RebuildSubject, payload); err != nil {
		return fmt.Errorf("publish rebuild event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
