package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder is the write side of a collector, held by the consumer.
type Recorder interface {
	Record(latency time.Duration) error
	RecordFailure(err error)
}

// Source is the read side of a collector, held by the reporter.
type Source interface {
	Snapshot() Snapshot
}

// Snapshot is an instantaneous view of the measurement window.
type Snapshot struct {
	Count            int64         `json:"count"`
	AverageLatencyMs float64       `json:"-"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
	Elapsed          time.Duration `json:"-"`
}

// LatencyDefined reports whether AverageLatencyMs holds a value. It is false
// when no message has been recorded since the last reset.
func (s Snapshot) LatencyDefined() bool {
	return !math.IsNaN(s.AverageLatencyMs)
}

// Collector accumulates per-message latency for one measurement window.
//
// Counters are individual atomics: the consumer is the only writer and the
// reporter reads concurrently. The histogram backing percentiles is not
// thread-safe and sits behind mu.
type Collector struct {
	epoch time.Time
	now   func() time.Time

	started    atomic.Bool
	startNanos atomic.Int64
	count      atomic.Int64
	totalNanos atomic.Int64
	anomalies  atomic.Int64
	failures   atomic.Int64

	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	minLatency   time.Duration
	maxLatency   time.Duration
	errorsByType map[string]int64
}

// Stats represents aggregated metrics for the whole window.
type Stats struct {
	Total            int64         `json:"total" yaml:"total"`
	Anomalies        int64         `json:"anomalies" yaml:"anomalies"`
	Failures         int64         `json:"failures" yaml:"failures"`
	MinLatency       time.Duration `json:"-" yaml:"-"`
	MaxLatency       time.Duration `json:"-" yaml:"-"`
	MeanLatency      time.Duration `json:"-" yaml:"-"`
	P50Latency       time.Duration `json:"-" yaml:"-"`
	P90Latency       time.Duration `json:"-" yaml:"-"`
	P99Latency       time.Duration `json:"-" yaml:"-"`
	Elapsed          time.Duration `json:"-" yaml:"-"`
	ThroughputPerSec float64       `json:"throughput_per_sec" yaml:"throughput_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	ElapsedMs     float64        `json:"elapsed_ms" yaml:"elapsed_ms"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func NewCollector() *Collector {
	return newCollector(time.Now)
}

func newCollector(now func() time.Time) *Collector {
	return &Collector{
		epoch:        now(),
		now:          now,
		hist:         newHistogram(),
		errorsByType: make(map[string]int64),
	}
}

// Track latencies from 1µs up to 60s with 3 significant figures.
func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, 60_000_000, 3)
}

// Record adds one message latency. The first call after a reset starts the
// throughput clock. A negative latency is counted as an anomaly, left out of
// the totals, and returned as a *LatencyAnomalyError.
func (c *Collector) Record(latency time.Duration) error {
	if latency < 0 {
		c.anomalies.Add(1)
		return &LatencyAnomalyError{Latency: latency}
	}

	if !c.started.Load() {
		c.startNanos.Store(int64(c.now().Sub(c.epoch)))
		c.started.Store(true)
	}
	c.count.Add(1)
	c.totalNanos.Add(int64(latency))

	c.mu.Lock()
	us := latency.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	first := c.hist.TotalCount() == 0
	_ = c.hist.RecordValue(us)
	if first || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
	c.mu.Unlock()
	return nil
}

// RecordFailure counts an error the consumer swallowed, grouped by ErrorKind.
func (c *Collector) RecordFailure(err error) {
	if err == nil {
		return
	}
	c.failures.Add(1)

	kind := ErrorKind(err)
	c.mu.Lock()
	c.errorsByType[kind]++
	c.mu.Unlock()
}

// Snapshot returns the current average latency and throughput. It is safe to
// call while Record runs on another goroutine.
func (c *Collector) Snapshot() Snapshot {
	count := c.count.Load()
	total := c.totalNanos.Load()

	snap := Snapshot{Count: count, AverageLatencyMs: math.NaN()}
	if count > 0 {
		snap.AverageLatencyMs = float64(total) / float64(count) / float64(time.Millisecond)
	}
	if c.started.Load() {
		elapsed := c.now().Sub(c.epoch) - time.Duration(c.startNanos.Load())
		snap.Elapsed = elapsed
		if elapsed > 0 {
			elapsedMs := float64(elapsed) / float64(time.Millisecond)
			snap.ThroughputPerSec = float64(count) / elapsedMs * 1000
		}
	}
	return snap
}

// Reset starts a fresh measurement window.
func (c *Collector) Reset() {
	c.started.Store(false)
	c.startNanos.Store(0)
	c.count.Store(0)
	c.totalNanos.Store(0)
	c.anomalies.Store(0)
	c.failures.Store(0)

	c.mu.Lock()
	c.hist.Reset()
	c.minLatency = 0
	c.maxLatency = 0
	c.errorsByType = make(map[string]int64)
	c.mu.Unlock()
}

// Anomalies returns the number of negative latencies seen in this window.
func (c *Collector) Anomalies() int64 {
	return c.anomalies.Load()
}

// Stats computes aggregated statistics for the current window.
func (c *Collector) Stats() Stats {
	snap := c.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Total:            snap.Count,
		Anomalies:        c.anomalies.Load(),
		Failures:         c.failures.Load(),
		MinLatency:       c.minLatency,
		MaxLatency:       c.maxLatency,
		Elapsed:          snap.Elapsed,
		ThroughputPerSec: snap.ThroughputPerSec,
	}
	if snap.Count > 0 {
		stats.MeanLatency = time.Duration(c.totalNanos.Load() / snap.Count)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)
	stats.ElapsedMs = toMillis(stats.Elapsed)

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
