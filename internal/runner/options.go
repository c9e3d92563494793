package runner

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/qbench/internal/message"
	"github.com/torosent/qbench/internal/metrics"
	"github.com/torosent/qbench/internal/queue"
)

// DefaultJoinTimeout bounds how long Run waits for each worker after the
// stop signal.
const DefaultJoinTimeout = time.Second

// Publisher is the producer side of a queue.
type Publisher interface {
	Publish(ctx context.Context, msg *message.Message) queue.Result
}

// Drainer is the single-consumer side of a queue.
type Drainer interface {
	Register() error
	ConsumeBatch(ctx context.Context, handle queue.Handler) (int, error)
}

// Queue is everything the orchestrator needs from the shared queue.
type Queue interface {
	Publisher
	Drainer
}

// Task is an auxiliary worker started alongside producers and the consumer,
// such as the periodic reporter. Run must return once ctx is canceled.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Options configure the Runner.
type Options struct {
	Producers      int                         // number of producer goroutines
	MessageSize    int                         // payload bytes per message
	Seed           int64                       // payload seed, producer i uses Seed+i (0 picks a time based seed)
	RatePerSecond  int                         // per-producer pacing (0 means unlimited)
	Duration       time.Duration               // how long producers run before the stop signal
	JoinTimeout    time.Duration               // per-worker join bound after the stop signal
	Queue          Queue                       // shared queue (required)
	Recorder       metrics.Recorder            // consumer-side latency sink (required)
	Reporter       Task                        // optional periodic reporter
	Logger         logrus.FieldLogger          // diagnostics, discarded when nil
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Producers <= 0 {
		o.Producers = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
