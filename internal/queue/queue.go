package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"
	"github.com/hashicorp/go-multierror"

	"github.com/torosent/qbench/internal/message"
)

// MaxExponent bounds the capacity exponent so the ring fits comfortably in memory.
const MaxExponent = 24

const (
	// spinLimit is how many spin.Wait rounds a waiter tries before parking.
	spinLimit = 128
	// parkTimeout bounds a single park so a missed wake-up only costs one
	// timeout, never a stall.
	parkTimeout = 10 * time.Millisecond
)

// Mode selects how Publish behaves when the queue is full.
type Mode int

const (
	// BlockUntilSpace suspends the publisher until capacity frees up.
	BlockUntilSpace Mode = iota
	// FailWhenFull returns Full immediately when no capacity is left.
	FailWhenFull
)

func (m Mode) String() string {
	switch m {
	case BlockUntilSpace:
		return "block-until-space"
	case FailWhenFull:
		return "fail-when-full"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Result is the outcome of a Publish call.
type Result int

const (
	// Accepted means the message is in the queue.
	Accepted Result = iota
	// Full means the queue had no capacity (FailWhenFull only).
	Full
	// Canceled means the context ended while waiting for capacity.
	Canceled
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Full:
		return "full"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

var (
	// ErrNotRegistered is returned by ConsumeBatch before Register was called.
	ErrNotRegistered = errors.New("queue: consumer not registered")
	// ErrAlreadyRegistered is returned by a second Register call.
	ErrAlreadyRegistered = errors.New("queue: consumer already registered")
	// ErrInvalidCapacity is returned for an exponent outside [1, MaxExponent].
	ErrInvalidCapacity = errors.New("queue: invalid capacity exponent")
)

// Handler receives each message of a drained batch in arrival order.
type Handler func(msg message.Message, endOfBatch bool) error

// Options configure a Queue.
type Options struct {
	Exponent int  // capacity is 2^Exponent
	Mode     Mode // behavior of Publish on a full queue
	Compact  bool // use the CAS-based ring with n slots instead of 2n
}

// Queue adapts an lfq multi-producer single-consumer ring to the
// publish / register / batch-drain contract the benchmark needs.
type Queue struct {
	ring       lfq.Queue[message.Message]
	mode       Mode
	capacity   int64
	registered atomix.Uint64
	reserved   atomix.Int64
	highWater  atomix.Uint64
	batch      []message.Message

	// Wake-up for the consumer parked on an empty ring. Publishers use a
	// seq-cst CAS after Enqueue so they cannot miss a consumer that parked
	// after its last failed drain.
	consumerParked atomic.Bool
	notEmpty       chan struct{}

	// Wake-up for publishers parked on a full ring (BlockUntilSpace).
	blocked atomic.Int32
	spaceMu sync.Mutex
	space   chan struct{}
}

// New builds a queue with capacity 2^opts.Exponent.
func New(opts Options) (*Queue, error) {
	if opts.Exponent < 1 || opts.Exponent > MaxExponent {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidCapacity, opts.Exponent, MaxExponent)
	}
	capacity := 1 << opts.Exponent

	b := lfq.New(capacity).SingleConsumer()
	if opts.Compact {
		b = b.Compact()
	}

	return &Queue{
		ring:     lfq.BuildMPSC[message.Message](b),
		mode:     opts.Mode,
		capacity: int64(capacity),
		batch:    make([]message.Message, 0, capacity),
		notEmpty: make(chan struct{}, 1),
		space:    make(chan struct{}),
	}, nil
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return int(q.capacity)
}

// Mode returns the full-queue behavior.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Len returns the number of messages published and not yet drained.
func (q *Queue) Len() int {
	return int(q.reserved.Load())
}

// HighWater returns the largest Len observed since the queue was created.
func (q *Queue) HighWater() int {
	return int(q.highWater.LoadAcquire())
}

// Publish submits msg. Safe for concurrent use by many producers. In
// BlockUntilSpace mode a publisher that finds the ring full spins briefly,
// then parks until the consumer frees a slot or ctx ends.
func (q *Queue) Publish(ctx context.Context, msg *message.Message) Result {
	sw := spin.Wait{}
	for i := 0; ; i++ {
		if q.tryPublish(msg) {
			return Accepted
		}
		if q.mode == FailWhenFull {
			return Full
		}
		if ctx.Err() != nil {
			return Canceled
		}
		if i < spinLimit {
			sw.Once()
			continue
		}
		if q.waitForSpace(ctx, msg) {
			return Accepted
		}
	}
}

// waitForSpace registers as blocked, retries once and parks if the ring is
// still full. The retry comes after taking the current space channel so a
// drain in between is never missed.
func (q *Queue) waitForSpace(ctx context.Context, msg *message.Message) bool {
	q.blocked.Add(1)
	defer q.blocked.Add(-1)

	q.spaceMu.Lock()
	ch := q.space
	q.spaceMu.Unlock()

	if q.tryPublish(msg) {
		return true
	}
	park(ctx, ch)
	return false
}

// tryPublish reserves a slot before touching the ring so the number of
// messages in flight never exceeds capacity.
func (q *Queue) tryPublish(msg *message.Message) bool {
	n := q.reserved.Add(1)
	if n > q.capacity {
		q.reserved.Add(-1)
		return false
	}
	if err := q.ring.Enqueue(msg); err != nil {
		q.reserved.Add(-1)
		return false
	}
	q.observe(uint64(n))
	if q.consumerParked.CompareAndSwap(true, false) {
		select {
		case q.notEmpty <- struct{}{}:
		default:
		}
	}
	return true
}

// signalSpace wakes every parked publisher after a drain freed slots.
func (q *Queue) signalSpace() {
	if q.blocked.Load() == 0 {
		return
	}
	q.spaceMu.Lock()
	close(q.space)
	q.space = make(chan struct{})
	q.spaceMu.Unlock()
}

func park(ctx context.Context, wake <-chan struct{}) {
	t := time.NewTimer(parkTimeout)
	defer t.Stop()
	select {
	case <-wake:
	case <-ctx.Done():
	case <-t.C:
	}
}

func (q *Queue) observe(n uint64) {
	for {
		cur := q.highWater.LoadAcquire()
		if n <= cur || q.highWater.CompareAndSwapAcqRel(cur, n) {
			return
		}
	}
}

// Register marks the single consumer as started. It must be called exactly
// once, before the first ConsumeBatch.
func (q *Queue) Register() error {
	if !q.registered.CompareAndSwapAcqRel(0, 1) {
		return ErrAlreadyRegistered
	}
	return nil
}

// ConsumeBatch waits until at least one message is available, then passes
// every currently available message to handle. It returns the batch size.
// Handler errors do not stop the batch; they are aggregated into the
// returned error. Only the registered consumer may call it.
func (q *Queue) ConsumeBatch(ctx context.Context, handle Handler) (int, error) {
	if q.registered.LoadAcquire() == 0 {
		return 0, ErrNotRegistered
	}

	if !q.waitForMessages(ctx) {
		return 0, ctx.Err()
	}
	q.signalSpace()

	var result *multierror.Error
	last := len(q.batch) - 1
	for i, msg := range q.batch {
		if err := handle(msg, i == last); err != nil {
			result = multierror.Append(result, err)
		}
	}

	n := len(q.batch)
	clear(q.batch)
	q.batch = q.batch[:0]
	return n, result.ErrorOrNil()
}

// waitForMessages fills q.batch, spinning briefly and then parking until a
// publisher signals. It reports false when ctx ended first.
func (q *Queue) waitForMessages(ctx context.Context) bool {
	sw := spin.Wait{}
	for i := 0; q.drain() == 0; i++ {
		if ctx.Err() != nil {
			return false
		}
		if i < spinLimit {
			sw.Once()
			continue
		}
		q.consumerParked.Store(true)
		if q.drain() > 0 {
			q.consumerParked.Store(false)
			return true
		}
		park(ctx, q.notEmpty)
		q.consumerParked.Store(false)
	}
	return true
}

func (q *Queue) drain() int {
	for int64(len(q.batch)) < q.capacity {
		msg, err := q.ring.Dequeue()
		if err != nil {
			break
		}
		q.reserved.Add(-1)
		q.batch = append(q.batch, msg)
	}
	return len(q.batch)
}

// Close tells the ring that no more messages will be published, so the
// consumer can take what is left. Call it only after every publisher has
// returned.
func (q *Queue) Close() {
	if d, ok := q.ring.(lfq.Drainer); ok {
		d.Drain()
	}
}
