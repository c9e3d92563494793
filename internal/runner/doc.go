// Package runner orchestrates one benchmark run: N producers publishing into a
// shared queue, a single consumer recording latency, and an optional reporter.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Producers:   3,
//		MessageSize: 64,
//		Duration:    13 * time.Second,
//		Queue:       q,
//		Recorder:    collector,
//		Reporter:    reporter,
//	})
//	res, err := r.Run(ctx)
//
// # Lifecycle
//
// A [Runner] moves through [Idle], [Running], [Stopping] and [Terminated].
// When the duration elapses, or ctx is canceled first, every worker sees the
// same stop signal. Run then joins each worker with [Options.JoinTimeout].
// Workers that miss it are reported as [*WorkerHangError] values aggregated
// in a *multierror.Error, and Run still returns.
//
// # Producers
//
// A [Producer] publishes until stopped. With a fail-when-full queue, the
// first rejected publish ends that producer for good; [Producer.Stopped]
// reports [StopQueueFull]. Pacing is optional and per producer.
//
// # Consumer
//
// The [Consumer] registers with the queue exactly once and drains it in
// batches. Errors from the recorder, such as a negative latency, are counted
// and logged; they never stop the consumer.
package runner
