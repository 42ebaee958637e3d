package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrTransient indicates a temporary error that should be retried
	ErrTransient = errors.New("transient error")

	// ErrPermanent indicates a permanent error that should not be retried
	ErrPermanent = errors.New("permanent error")

	// ErrNotFound indicates the backend object is absent
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable indicates the build backend could not serve the request
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates authorization failure
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("timeout")

	// ErrRateLimit indicates rate limiting
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrMalformed marks a record that could not be parsed
	ErrMalformed = errors.New("malformed record")
)

// TransientError wraps an error to mark it as transient (retryable)
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent (not retryable)
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// MalformedError describes a single record that was skipped because it could not be parsed.
type MalformedError struct {
	Record string
	Cause  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Record, e.Cause)
}

func (e *MalformedError) Unwrap() []error {
	return []error{ErrMalformed, e.Cause}
}

// NewMalformed creates a MalformedError for the named record
func NewMalformed(record string, cause error) error {
	return &MalformedError{Record: record, Cause: cause}
}

// IsTransient checks if an error is transient using errors.As
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check if explicitly marked as transient
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	// Check if explicitly marked as permanent
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	// Check for known sentinel errors
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMalformed) {
		return false
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrBackendUnavailable) {
		return true
	}

	// Default to non-transient for safety (don't retry unknown errors)
	return false
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsNotFound reports whether the backend object was absent
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsViewFailure reports whether err must fail a whole status or monitor view.
// Only an unavailable or rate limiting backend, a timeout or a cancelled request
// qualify; every other kind degrades to an absent value inside the view.
func IsViewFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ErrorClass is the coarse classification used by retry loops
type ErrorClass int

const (
	ErrorClassUnknown ErrorClass = iota
	ErrorClassNotFound
	ErrorClassTransient
	ErrorClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassNotFound:
		return "not_found"
	case ErrorClassTransient:
		return "transient"
	case ErrorClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifyError performs a single-pass classification of err
func ClassifyError(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassUnknown
	case IsNotFound(err):
		return ErrorClassNotFound
	case IsTransient(err):
		return ErrorClassTransient
	case IsPermanent(err),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidInput):
		return ErrorClassPermanent
	default:
		return ErrorClassUnknown
	}
}

// ClassifyBackendError maps the outcome of a backend call into the error taxonomy.
// statusCode is the HTTP status of the response, or 0 when no response was received.
func ClassifyBackendError(statusCode int, err error) error {
	if err == nil && statusCode < 400 {
		return nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
			return NewTransient(fmt.Errorf("%w: %v", ErrTimeout, err))
		}
		if statusCode == 0 {
			return NewTransient(fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
		}
	}

	cause := err
	if cause == nil {
		cause = fmt.Errorf("backend returned %d %s", statusCode, http.StatusText(statusCode))
	}

	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, cause)
	case statusCode == http.StatusUnauthorized:
		return NewPermanent(fmt.Errorf("%w: %v", ErrUnauthorized, cause))
	case statusCode == http.StatusForbidden:
		return NewPermanent(fmt.Errorf("%w: %v", ErrForbidden, cause))
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		return NewTransient(fmt.Errorf("%w: %v", ErrTimeout, cause))
	case statusCode == http.StatusTooManyRequests:
		return NewTransient(fmt.Errorf("%w: %v", ErrRateLimit, cause))
	case statusCode >= 500:
		return NewTransient(fmt.Errorf("%w: %v", ErrBackendUnavailable, cause))
	case statusCode == http.StatusBadRequest && looksLikeNotFound(cause):
		// the backend answers some lookups of absent objects with 400
		return fmt.Errorf("%w: %v", ErrNotFound, cause)
	default:
		return NewPermanent(fmt.Errorf("%w: %v", ErrInvalidInput, cause))
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func looksLikeNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown package") ||
		strings.Contains(msg, "unknown project") ||
		strings.Contains(msg, "not found")
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error with the given text
func New(text string) error {
	return errors.New(text)
}
