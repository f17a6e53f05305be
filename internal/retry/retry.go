// Package retry classifies upstream failures that are worth another attempt.
// The model clients and the embedder return *Error for rate limits and server
// errors; the ingestion pipeline decides whether to retry with IsRetryable.
package retry

import (
	"errors"
	"fmt"
)

// Error indicates a transient failure that can be retried.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// IsRetryable reports whether err wraps a *Error.
func IsRetryable(err error) bool {
	var retryErr *Error
	return errors.As(err, &retryErr)
}
