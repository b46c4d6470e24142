package isamurai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnknownJobError is reported when a job fails without an error message.
const UnknownJobError = "Unknown error"

var (
	ErrMissingAPIKey      = errors.New("isamurai: api key is required")
	ErrInvalidArgument    = errors.New("isamurai: invalid argument")
	ErrFileNotFound       = errors.New("isamurai: file not found")
	ErrUnexpectedResponse = errors.New("isamurai: unexpected response format")

	ErrTransport  = errors.New("isamurai: transport error")
	ErrJobFailed  = errors.New("isamurai: job failed")
	ErrJobTimeout = errors.New("isamurai: job timed out")
)

// TransportError is a network failure or a non-2xx response. StatusCode is
// zero when no response was received.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("isamurai: API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("isamurai: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// JobFailedError means the job reached a failure-terminal status.
type JobFailedError struct {
	JobID  JobID
	Reason string
	Status *JobStatus
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("isamurai: job %s failed: %s", e.JobID, e.Reason)
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

// JobTimeoutError means the wait deadline passed before a terminal status.
// LastStatus is the final observation, if any poll completed.
type JobTimeoutError struct {
	JobID      JobID
	Timeout    time.Duration
	LastStatus *JobStatus
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("isamurai: job %s timed out after %s", e.JobID, e.Timeout)
}

func (e *JobTimeoutError) Is(target error) bool { return target == ErrJobTimeout }

// ValidationError reports a response that does not match the API description.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("isamurai: response from %s failed validation: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// Outcome is the terminal state of a wait.
type Outcome string

const (
	OutcomePolling   Outcome = "polling"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeError     Outcome = "error"
)

// OutcomeOf maps the error returned by a wait to its outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrJobFailed):
		return OutcomeFailed
	case errors.Is(err, ErrJobTimeout):
		return OutcomeTimedOut
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
