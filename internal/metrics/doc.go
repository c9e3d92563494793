// Package metrics provides latency and throughput collection for the queue benchmark.
//
// # Collector
//
// The central [Collector] accumulates per-message latency for one
// measurement window. It exposes two capabilities so callers only get the
// access they need:
//
//	var rec metrics.Recorder = collector // consumer side
//	var src metrics.Source = collector   // reporter side
//
//	rec.Record(time.Since(msg.CreatedAt))
//	snap := src.Snapshot()
//	if snap.LatencyDefined() {
//		fmt.Println(snap.AverageLatencyMs, snap.ThroughputPerSec)
//	}
//
// The throughput clock starts at the first [Collector.Record] after a
// [Collector.Reset]. With no recorded message, the average latency is NaN
// and [Snapshot.LatencyDefined] reports false.
//
// # Anomalies
//
// A negative latency is never folded into the totals. Record returns a
// [LatencyAnomalyError] and the collector counts it separately.
//
// # Statistics
//
// [Collector.Stats] adds min/max/mean and P50/P90/P99 percentiles backed by
// an HDR histogram.
//
// # Series
//
// [Series] holds the periodic samples a reporter takes, and summarizes them
// into min, max and mean.
//
// # Thread Safety
//
// Counters are individual atomics; Record and Snapshot may run on different
// goroutines. Record itself expects a single writer.
package metrics
