package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// LatencyAnomalyError reports a message that appears to have been consumed
// before it was created, which points at a clock or ordering defect.
type LatencyAnomalyError struct {
	Latency time.Duration
}

func (e *LatencyAnomalyError) Error() string {
	return fmt.Sprintf("negative latency %s", e.Latency)
}

// ErrorKind returns the label an error is grouped under in Stats.Errors.
// Known errors get a readable name; anything else is keyed by its Go type.
func ErrorKind(err error) string {
	var anomaly *LatencyAnomalyError
	var batch *multierror.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &anomaly):
		return "Negative latency"
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.As(err, &batch):
		return "Batch handler errors"
	}

	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	switch name {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors":
		return "Error"
	}
	return name
}
