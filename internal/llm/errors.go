package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies a failed completion.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureTimeout        FailureKind = "timeout"
	FailureRateLimited    FailureKind = "rate_limited"
	FailureUnavailable    FailureKind = "unavailable"
	FailureInvalidRequest FailureKind = "invalid_request"
)

// Error is a classified provider failure.
type Error struct {
	Kind       FailureKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(provider string, kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindForStatus maps an HTTP status returned by a provider to a failure kind.
func KindForStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return FailureTimeout
	case status >= 500:
		return FailureUnavailable
	case status >= 400:
		return FailureInvalidRequest
	default:
		return FailureUnavailable
	}
}

// Classify determines the failure kind of an error returned by a Client.
// Unclassified errors are treated as the backend being unavailable.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	return FailureUnavailable
}

// Outcome is the tag of a Result.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Result is the tagged outcome of one completion attempt.
type Result struct {
	Outcome  Outcome
	Kind     FailureKind
	Response *CompletionResponse
	Err      error
}

// Evaluate turns the return values of Client.Complete into a Result.
// Timeouts and unavailability are retryable; rate limiting and invalid
// requests are not.
func Evaluate(resp *CompletionResponse, err error) Result {
	if err == nil {
		return Result{Outcome: OutcomeOK, Response: resp}
	}

	kind := Classify(err)
	switch kind {
	case FailureTimeout, FailureUnavailable:
		return Result{Outcome: OutcomeRetryable, Kind: kind, Err: err}
	default:
		return Result{Outcome: OutcomeFatal, Kind: kind, Err: err}
	}
}
