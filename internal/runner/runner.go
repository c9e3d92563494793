package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/torosent/qbench/internal/message"
)

// State is the orchestrator lifecycle. It only moves forward.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result captures execution summary.
type Result struct {
	Accepted    int64         // messages the queue took from all producers
	Consumed    int64         // messages the consumer handed to the recorder
	FullStops   int           // producers that stopped on a full queue
	Elapsed     time.Duration // wall time from start to the end of the join
	Hung        []string      // workers that missed the join timeout
	Interrupted bool          // ctx was canceled before the run duration elapsed
}

// Failed reports whether any worker hung.
func (r Result) Failed() bool {
	return len(r.Hung) > 0
}

// Runner starts producers, one consumer and an optional reporter, lets them
// run for the configured duration, then stops them all with a single signal.
type Runner struct {
	opt       Options
	state     atomic.Int32
	producers []*Producer
	consumer  *Consumer
}

func New(opt Options) (*Runner, error) {
	opt.normalize()
	if opt.Queue == nil {
		return nil, errors.New("runner: queue is required")
	}
	if opt.Recorder == nil {
		return nil, errors.New("runner: recorder is required")
	}

	r := &Runner{opt: opt}
	for i := 0; i < opt.Producers; i++ {
		gen, err := message.NewGenerator(opt.MessageSize, opt.Seed+int64(i))
		if err != nil {
			return nil, err
		}
		var limiter *rate.Limiter
		if opt.RatePerSecond > 0 {
			limiter = opt.LimiterFactory(opt.RatePerSecond)
		}
		r.producers = append(r.producers, NewProducer(i, opt.Queue, gen, limiter, opt.Logger))
	}
	r.consumer = NewConsumer(opt.Queue, opt.Recorder, opt.Logger)
	return r, nil
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.opt.Logger.WithField("state", s).Debug("runner state changed")
}

// Producers exposes the producer workers, mainly for inspection after Run.
func (r *Runner) Producers() []*Producer {
	return r.producers
}

type worker struct {
	name string
	done chan struct{}
	err  error
}

func (r *Runner) start(ctx context.Context, name string, t Task) *worker {
	w := &worker{name: name, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = t.Run(ctx)
	}()
	return w
}

// Run executes the benchmark once. It returns when every worker has stopped
// or missed its join timeout; hung workers are reported as *WorkerHangError
// values inside a *multierror.Error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return Result{}, ErrAlreadyStarted
	}
	r.opt.Logger.WithField("state", Running).Debug("runner state changed")

	start := time.Now()
	stopCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Consumer first so it is registered before messages arrive.
	consumer := r.start(stopCtx, "consumer", r.consumer)
	producers := make([]*worker, len(r.producers))
	for i, p := range r.producers {
		producers[i] = r.start(stopCtx, fmt.Sprintf("producer-%d", i), p)
	}
	var reporter *worker
	if r.opt.Reporter != nil {
		reporter = r.start(stopCtx, "reporter", r.opt.Reporter)
	}

	var res Result
	timer := time.NewTimer(r.opt.Duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		res.Interrupted = true
		r.opt.Logger.Info("run interrupted, stopping workers")
	}
	timer.Stop()

	r.setState(Stopping)
	stop()

	var errs *multierror.Error
	join := func(w *worker) bool {
		if w == nil {
			return true
		}
		t := time.NewTimer(r.opt.JoinTimeout)
		defer t.Stop()
		select {
		case <-w.done:
			if w.err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", w.name, w.err))
			}
			return true
		case <-t.C:
			r.opt.Logger.WithField("worker", w.name).Error("worker did not stop in time")
			res.Hung = append(res.Hung, w.name)
			errs = multierror.Append(errs, &WorkerHangError{Worker: w.name, Timeout: r.opt.JoinTimeout})
			return false
		}
	}
	producersStopped := true
	for _, w := range producers {
		if !join(w) {
			producersStopped = false
		}
	}
	// A hung producer may still be inside Publish; closing would race it.
	if c, ok := r.opt.Queue.(interface{ Close() }); ok && producersStopped {
		c.Close()
	}
	join(consumer)
	join(reporter)

	for _, p := range r.producers {
		res.Accepted += p.Accepted()
		if p.Stopped() == StopQueueFull {
			res.FullStops++
		}
	}
	res.Consumed = r.consumer.Consumed()
	res.Elapsed = time.Since(start)
	r.setState(Terminated)

	return res, errs.ErrorOrNil()
}
