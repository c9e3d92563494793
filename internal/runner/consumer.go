package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/qbench/internal/message"
	"github.com/torosent/qbench/internal/metrics"
)

// Consumer drains the queue in batches and records each message's latency.
type Consumer struct {
	src Drainer
	rec metrics.Recorder
	log logrus.FieldLogger
	now func() time.Time

	consumed atomic.Int64
	batches  atomic.Int64
}

func NewConsumer(src Drainer, rec metrics.Recorder, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		src: src,
		rec: rec,
		log: log.WithField("worker", "consumer"),
		now: time.Now,
	}
}

// Run registers as the queue's only consumer and drains until ctx is
// canceled. Per-message errors are counted and logged, never returned.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.src.Register(); err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	c.log.Debug("consumer started")
	defer func() {
		c.log.WithField("consumed", c.consumed.Load()).Debug("consumer stopped")
	}()

	for {
		_, err := c.src.ConsumeBatch(ctx, c.handle)
		if ctx.Err() != nil {
			return nil
		}
		c.batches.Add(1)
		if err != nil {
			c.log.WithError(err).Warn("batch had messages that could not be recorded")
		}
	}
}

func (c *Consumer) handle(msg message.Message, _ bool) error {
	c.consumed.Add(1)
	if err := c.rec.Record(msg.Latency(c.now())); err != nil {
		c.rec.RecordFailure(err)
		return err
	}
	return nil
}

// Consumed returns how many messages the handler has seen.
func (c *Consumer) Consumed() int64 {
	return c.consumed.Load()
}

// Batches returns how many non-empty batches were drained.
func (c *Consumer) Batches() int64 {
	return c.batches.Load()
}
