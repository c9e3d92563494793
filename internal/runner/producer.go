package runner

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/qbench/internal/message"
	"github.com/torosent/qbench/internal/queue"
)

// StopReason records why a producer left its loop.
type StopReason int32

const (
	StopNone StopReason = iota
	StopCanceled
	StopQueueFull
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "running"
	case StopCanceled:
		return "canceled"
	case StopQueueFull:
		return "queue full"
	default:
		return "unknown"
	}
}

// Producer generates messages and publishes them until canceled or, in
// fail-when-full mode, until the first rejected publish.
type Producer struct {
	id      int
	pub     Publisher
	gen     *message.Generator
	limiter *rate.Limiter
	log     logrus.FieldLogger

	accepted atomic.Int64
	stopped  atomic.Int32
}

// NewProducer wires a producer. limiter may be nil for unlimited pacing.
func NewProducer(id int, pub Publisher, gen *message.Generator, limiter *rate.Limiter, log logrus.FieldLogger) *Producer {
	return &Producer{
		id:      id,
		pub:     pub,
		gen:     gen,
		limiter: limiter,
		log:     log.WithField("producer", id),
	}
}

func (p *Producer) Run(ctx context.Context) error {
	p.log.Debug("producer started")
	defer func() {
		p.log.WithField("accepted", p.accepted.Load()).Debugf("producer stopped: %s", p.Stopped())
	}()

	for {
		if ctx.Err() != nil {
			p.stop(StopCanceled)
			return nil
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.stop(StopCanceled)
				return nil
			}
		}

		msg := p.gen.Generate()
		switch p.pub.Publish(ctx, &msg) {
		case queue.Accepted:
			p.accepted.Add(1)
		case queue.Full:
			p.stop(StopQueueFull)
			p.log.Info("queue full, producer terminating")
			return nil
		default:
			p.stop(StopCanceled)
			return nil
		}
	}
}

func (p *Producer) stop(reason StopReason) {
	p.stopped.CompareAndSwap(int32(StopNone), int32(reason))
}

// Accepted returns the number of messages the queue took from this producer.
func (p *Producer) Accepted() int64 {
	return p.accepted.Load()
}

// Stopped returns StopNone while the producer is running.
func (p *Producer) Stopped() StopReason {
	return StopReason(p.stopped.Load())
}
