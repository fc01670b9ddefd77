// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics collects in-memory operation timings for the API's
// /stats endpoint.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the pipeline.
const (
	OpScrape    = "scrape"
	OpClassify  = "worker_classify"
	OpSummarize = "worker_summarize"
	OpProcess   = "process_paper"
	OpReport    = "report"
)

type opMetrics struct {
	count    int64
	errors   int64
	total    time.Duration
	min, max time.Duration
}

// OperationSnapshot is the aggregate for one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot is the collector state at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
}

// Collector aggregates timings per operation. All methods are safe for
// concurrent use, and a nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*opMetrics
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now(), ops: make(map[string]*opMetrics)}
}

// Record adds one observation of op. A non-nil err counts as a failure.
func (c *Collector) Record(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &opMetrics{min: d, max: d}
		c.ops[op] = m
	}
	m.count++
	m.total += d
	if err != nil {
		m.errors++
	}
	if d < m.min {
		m.min = d
	}
	if d > m.max {
		m.max = d
	}
}

// Time starts a timer for op. Call the returned func with the
// operation's error when it finishes.
func (c *Collector) Time(op string) func(error) {
	start := time.Now()
	return func(err error) { c.Record(op, time.Since(start), err) }
}

// Operations returns the recorded operation names, sorted.
func (c *Collector) Operations() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all aggregates.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: map[string]OperationSnapshot{}}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
	}
	for name, m := range c.ops {
		snap.Operations[name] = OperationSnapshot{
			Count:       m.count,
			Errors:      m.errors,
			TotalTimeMs: m.total.Milliseconds(),
			AvgTimeMs:   float64(m.total.Milliseconds()) / float64(m.count),
			MinTimeMs:   m.min.Milliseconds(),
			MaxTimeMs:   m.max.Milliseconds(),
		}
	}
	return snap
}
