package client

import (
	"errors"
	"fmt"
)

// ErrStreamEnded is the cause of a TransportError raised when a turn's stream closes before
// its terminal event.
var ErrStreamEnded = errors.New("stream ended before the turn closed")

// TransportError is a connection drop, a failed dial, or a non-2xx response.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is a malformed line or message. Parsers drop the unit and carry on.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("malformed event %q: %v", e.Raw, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// PipelineError is a turn that the server closed with an error event.
type PipelineError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *PipelineError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string { return "job not found: " + e.JobID }

// Retryable reports whether repeating the request may succeed.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status == 0 || te.Status >= 500 || te.Status == 429
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
