package reaction

import (
	"sync"
	"time"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// MetricsCollector defines the interface for collecting reaction metrics
type MetricsCollector interface {
	RecordClick(team tally.TeamID, accepted bool)
	RecordIncrement(team tally.TeamID, success bool, duration time.Duration)
	RecordPlayback(team tally.TeamID, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordClick(team tally.TeamID, accepted bool)                            {}
func (NoOpMetricsCollector) RecordIncrement(team tally.TeamID, success bool, duration time.Duration) {}
func (NoOpMetricsCollector) RecordPlayback(team tally.TeamID, success bool)                          {}

// TeamStats are the per-team totals kept by Counters
type TeamStats struct {
	ClicksAccepted   uint64        `json:"clicks_accepted"`
	ClicksDropped    uint64        `json:"clicks_dropped"`
	IncrementsOK     uint64        `json:"increments_ok"`
	IncrementsFailed uint64        `json:"increments_failed"`
	PlaybacksOK      uint64        `json:"playbacks_ok"`
	PlaybacksFailed  uint64        `json:"playbacks_failed"`
	IncrementLatency time.Duration `json:"increment_latency_total"`
}

// Counters is an in-memory MetricsCollector shared across boards
type Counters struct {
	mu    sync.Mutex
	teams map[tally.TeamID]*TeamStats
}

// NewCounters creates an empty collector
func NewCounters() *Counters {
	return &Counters{teams: make(map[tally.TeamID]*TeamStats)}
}

func (c *Counters) stats(team tally.TeamID) *TeamStats {
	s, ok := c.teams[team]
	if !ok {
		s = &TeamStats{}
		c.teams[team] = s
	}
	return s
}

func (c *Counters) RecordClick(team tally.TeamID, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if accepted {
		c.stats(team).ClicksAccepted++
	} else {
		c.stats(team).ClicksDropped++
	}
}

func (c *Counters) RecordIncrement(team tally.TeamID, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats(team)
	if success {
		s.IncrementsOK++
	} else {
		s.IncrementsFailed++
	}
	s.IncrementLatency += duration
}

func (c *Counters) RecordPlayback(team tally.TeamID, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.stats(team).PlaybacksOK++
	} else {
		c.stats(team).PlaybacksFailed++
	}
}

// Snapshot returns a copy of the per-team totals
func (c *Counters) Snapshot() map[tally.TeamID]TeamStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[tally.TeamID]TeamStats, len(c.teams))
	for k, v := range c.teams {
		out[k] = *v
	}
	return out
}
