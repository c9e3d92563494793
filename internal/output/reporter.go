package output

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/torosent/qbench/internal/metrics"
)

// Header is printed once before the first sample.
const Header = "latency(ms)\tthroughput(msg/s)"

// Undefined is printed in place of a latency when no message was recorded.
const Undefined = "undefined"

// Sample is one periodic reading of the collector.
type Sample struct {
	Index            int       `json:"index"`
	At               time.Time `json:"at"`
	LatencyMs        float64   `json:"latency_ms"` // zero when !LatencyDefined
	LatencyDefined   bool      `json:"latency_defined"`
	ThroughputPerSec float64   `json:"throughput_per_sec"`
	Count            int64     `json:"count"`
}

// Summary is the finalized view of a run's samples.
type Summary struct {
	Latency           metrics.SeriesStats `json:"latency_ms" yaml:"latency_ms"`
	Throughput        metrics.SeriesStats `json:"throughput_per_sec" yaml:"throughput_per_sec"`
	LatencySamples    []float64           `json:"latency_samples" yaml:"latency_samples"`
	ThroughputSamples []float64           `json:"throughput_samples" yaml:"throughput_samples"`
	UndefinedSamples  int                 `json:"undefined_samples" yaml:"undefined_samples"`
}

// Reporter samples a metrics.Source at a fixed interval, prints each sample
// as a tab separated line and keeps the series for the summary.
type Reporter struct {
	src      metrics.Source
	interval time.Duration
	writer   io.Writer
	now      func() time.Time

	latency    metrics.Series
	throughput metrics.Series

	mu        sync.Mutex
	hooks     []func(Sample)
	samples   int
	undefined int

	once    sync.Once
	summary Summary
}

func NewReporter(src metrics.Source, interval time.Duration, writer io.Writer) *Reporter {
	if writer == nil {
		writer = io.Discard
	}
	return &Reporter{
		src:      src,
		interval: interval,
		writer:   writer,
		now:      time.Now,
	}
}

// OnSample registers fn to be called after every sample. Hooks run on the
// reporter goroutine and must not block.
func (r *Reporter) OnSample(fn func(Sample)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Run prints the header, then one sample per interval until ctx is canceled.
// Cancellation interrupts the wait; no final sample is taken.
func (r *Reporter) Run(ctx context.Context) error {
	fmt.Fprintln(r.writer, Header)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *Reporter) sample() {
	snap := r.src.Snapshot()

	r.mu.Lock()
	s := Sample{
		Index:            r.samples,
		At:               r.now(),
		LatencyDefined:   snap.LatencyDefined(),
		ThroughputPerSec: snap.ThroughputPerSec,
		Count:            snap.Count,
	}
	r.samples++
	if s.LatencyDefined {
		s.LatencyMs = snap.AverageLatencyMs
	} else {
		r.undefined++
	}
	hooks := r.hooks
	r.mu.Unlock()

	if s.LatencyDefined {
		r.latency.Add(s.LatencyMs)
	}
	r.throughput.Add(s.ThroughputPerSec)

	fmt.Fprintf(r.writer, "%s\t%s\n", FormatLatency(s.LatencyMs, s.LatencyDefined), FormatThroughput(s.ThroughputPerSec))

	for _, fn := range hooks {
		fn(s)
	}
}

// Summary finalizes the series. Only the first call computes it; call it
// after Run has returned.
func (r *Reporter) Summary() Summary {
	r.once.Do(func() {
		r.mu.Lock()
		undefined := r.undefined
		r.mu.Unlock()
		r.summary = Summary{
			Latency:           r.latency.Summarize(),
			Throughput:        r.throughput.Summarize(),
			LatencySamples:    r.latency.Values(),
			ThroughputSamples: r.throughput.Values(),
			UndefinedSamples:  undefined,
		}
	})
	return r.summary
}

// FormatLatency renders a latency in milliseconds, or Undefined.
func FormatLatency(ms float64, defined bool) string {
	if !defined {
		return Undefined
	}
	return strconv.FormatFloat(ms, 'f', 3, 64)
}

// FormatThroughput renders messages per second.
func FormatThroughput(perSec float64) string {
	return strconv.FormatFloat(perSec, 'f', 1, 64)
}
