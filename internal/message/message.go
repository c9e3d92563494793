// Package message defines the timestamped payload that flows through the queue.
package message

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// MinSize is the smallest payload size, in bytes, a message may carry.
const MinSize = 16

// ErrInvalidSize is returned when a message size is below MinSize.
var ErrInvalidSize = errors.New("invalid message size")

// Message is a fixed-size payload stamped with its creation time.
// CreatedAt keeps Go's monotonic clock reading so latency is immune to wall-clock jumps.
type Message struct {
	CreatedAt time.Time
	Payload   []int32
}

// Latency returns the time elapsed between creation and now.
func (m Message) Latency(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// Validate reports whether size is a usable payload size.
func Validate(size int) error {
	if size < MinSize {
		return fmt.Errorf("%w: %d bytes (must be >= %d)", ErrInvalidSize, size, MinSize)
	}
	return nil
}

// Generator builds messages of one size from its own random source.
// A Generator is not safe for concurrent use; give each producer its own.
type Generator struct {
	words int
	rnd   *rand.Rand
	now   func() time.Time
}

// NewGenerator creates a generator for size-byte messages.
func NewGenerator(size int, seed int64) (*Generator, error) {
	if err := Validate(size); err != nil {
		return nil, err
	}
	return &Generator{
		words: (size + 3) / 4,
		rnd:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
	}, nil
}

// Size returns the payload size in bytes.
func (g *Generator) Size() int {
	return g.words * 4
}

// Generate returns a new message with a random payload stamped with the current time.
func (g *Generator) Generate() Message {
	payload := make([]int32, g.words)
	for i := range payload {
		payload[i] = g.rnd.Int31()
	}
	return Message{CreatedAt: g.now(), Payload: payload}
}

// Generate is the one-shot form of Generator.Generate.
func Generate(size int) (Message, error) {
	g, err := NewGenerator(size, time.Now().UnixNano())
	if err != nil {
		return Message{}, err
	}
	return g.Generate(), nil
}
