package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch", "mark-paid")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// ConflictError reports that an action's precondition no longer held because
// another actor already transitioned the order server-side. It is surfaced
// distinctly so the UI can explain the race instead of a generic failure;
// retrying the same action can never succeed.
type ConflictError struct {
	Key     OrderKey
	Action  string
	Message string // server-provided explanation, may be empty
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s/%d already handled: %s", e.Action, e.Key.Kind, e.Key.ID, e.Message)
	}
	return fmt.Sprintf("%s %s/%d already handled by another actor", e.Action, e.Key.Kind, e.Key.ID)
}

func (e *ConflictError) IsRetriable() bool {
	return false
}

// IsConflict checks whether err is an "already handled" rejection.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// RejectedError reports a validation or authorization rejection. The server's
// message is carried verbatim for display; never retried automatically.
type RejectedError struct {
	Action  string
	Message string
}

func (e *RejectedError) Error() string {
	return e.Action + " rejected: " + e.Message
}

func (e *RejectedError) IsRetriable() bool {
	return false
}

// IsRejected checks whether err is a validation/authorization rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrEngineStopped is returned by refresh requests issued after Stop.
	ErrEngineStopped = errors.New("sync engine stopped")

	// ErrMalformedPayload is returned when a list endpoint responds with a
	// shape that is neither a bare array nor a results envelope.
	ErrMalformedPayload = errors.New("malformed list payload")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
