// Package queue adapts a bounded lock-free ring to the contract the benchmark
// drives: many producers publish, one registered consumer drains batches.
//
// The ring itself comes from code.hybscloud.com/lfq. Publish either waits for
// capacity ([BlockUntilSpace]) or reports [Full] at once ([FailWhenFull]); the
// outcome is a typed [Result] rather than an error:
//
//	switch q.Publish(ctx, &msg) {
//	case queue.Accepted:
//	case queue.Full:
//		return // fail-fast producers stop here
//	case queue.Canceled:
//		return
//	}
//
// The consumer calls [Queue.Register] once and then loops on
// [Queue.ConsumeBatch], which suspends with an adaptive backoff while the
// ring is empty.
package queue
