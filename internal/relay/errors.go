package relay

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the message is blank. No request is made.
var ErrEmptyInput = errors.New("Message cannot be empty.") //nolint:staticcheck // shown to users verbatim

// GenericFailureMessage is shown for failures with no upstream explanation.
const GenericFailureMessage = "Failed to process your message. Please try again."

// UpstreamError reports a non-2xx response from the chat endpoint.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return e.Detail
}

// MalformedResponseError reports a 2xx response whose body is not JSON.
type MalformedResponseError struct {
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (status %d): %v", e.StatusCode, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// RequestError is the single caller-facing failure of Send. Its message is
// safe to show to the user; Unwrap exposes the typed cause.
type RequestError struct {
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func wrapUpstream(err *UpstreamError) *RequestError {
	return &RequestError{Message: "Sorry, I encountered an issue: " + err.Detail, Err: err}
}

func wrapGeneric(err error) *RequestError {
	return &RequestError{Message: GenericFailureMessage, Err: err}
}
