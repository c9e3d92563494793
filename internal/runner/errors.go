package runner

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyStarted is returned by Run on a Runner that is not Idle.
var ErrAlreadyStarted = errors.New("runner already started")

// WorkerHangError reports a worker that did not return within the join
// timeout after the stop signal.
type WorkerHangError struct {
	Worker  string
	Timeout time.Duration
}

func (e *WorkerHangError) Error() string {
	return fmt.Sprintf("worker %s did not stop within %s", e.Worker, e.Timeout)
}
