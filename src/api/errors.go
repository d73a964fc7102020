package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrOperationFailed is the single outcome every failed backend call collapses to.
// Transport, server and decode errors all match it with errors.Is.
var ErrOperationFailed = errors.New("operation failed")

// TransportError reports a request that never produced an HTTP response
// (network unreachable, timeout, open circuit breaker).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrOperationFailed }

// ServerError reports a non-2xx response.
type ServerError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: API request failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *ServerError) Is(target error) bool { return target == ErrOperationFailed }

// DecodeError reports a malformed response body.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrOperationFailed }

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts API errors to user-friendly messages for CLI output.
func WrapError(err error, apiBase string) error {
	if err == nil {
		return nil
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return &UserError{
			Message: "Backend unreachable",
			Hint:    fmt.Sprintf("Is the DevOps Copilot API running at %s?\n  - Set COPILOT_API_BASE to point at another backend", apiBase),
			Err:     err,
		}
	}

	var server *ServerError
	if errors.As(err, &server) {
		switch server.StatusCode {
		case http.StatusNotFound:
			return &UserError{
				Message: "Not found",
				Hint:    "Check the pipeline or task id. Seed demo data with 'copilot seed' if the backend is empty.",
				Err:     err,
			}
		case http.StatusUnprocessableEntity:
			return &UserError{
				Message: "Request rejected by the backend",
				Hint:    "Check the arguments; the backend validates ids, task types and success rates.",
				Err:     err,
			}
		}
	}

	var decode *DecodeError
	if errors.As(err, &decode) {
		return &UserError{
			Message: "Unexpected response from the backend",
			Hint:    "The API version may not match this client.",
			Err:     err,
		}
	}

	return err
}
