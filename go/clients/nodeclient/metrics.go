package nodeclient

import (
	"sync/atomic"
	"time"
)

// MetricsCollector observes push outcomes.
type MetricsCollector interface {
	RecordPush(path string, success bool, duration time.Duration)
	RecordDrop(path string)
}

// NoOpMetricsCollector is used when nothing observes the dispatcher.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordPush(path string, success bool, duration time.Duration) {}
func (NoOpMetricsCollector) RecordDrop(path string)                                       {}

// Stats is a point-in-time view of Counters.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Counters is an in-process MetricsCollector.
type Counters struct {
	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func (c *Counters) RecordPush(path string, success bool, duration time.Duration) {
	if success {
		c.sent.Add(1)
		return
	}
	c.failed.Add(1)
}

func (c *Counters) RecordDrop(path string) {
	c.dropped.Add(1)
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Sent:    c.sent.Load(),
		Failed:  c.failed.Load(),
		Dropped: c.dropped.Load(),
	}
}
