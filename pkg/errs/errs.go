// Package errs defines the typed error taxonomy shared across the audit
// pipeline so callers can classify failures without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies the semantic class of a pipeline error.
type Code string

const (
	CodeValidation   Code = "validation"
	CodeIntegrity    Code = "integrity"
	CodeTransient    Code = "transient_storage"
	CodeTimeout      Code = "timeout"
	CodeCircuitOpen  Code = "circuit_open"
	CodeKMS          Code = "kms"
	CodePartition    Code = "partition"
	CodeDeadLetter   Code = "dead_letter"
	CodeConfig       Code = "configuration"
	CodeNetwork      Code = "network"
	CodeRateLimit    Code = "rate_limit"
	CodeSerializaton Code = "serialization"
	CodeAuth         Code = "authentication"
	CodeUnknown      Code = "unknown"
)

// Error is a typed pipeline error carrying a classification code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the Code from err, walking the unwrap chain.
// Returns CodeUnknown if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// retryableCodes classifies which error codes are retryable per §4.6.
var retryableCodes = map[Code]bool{
	CodeNetwork:   true,
	CodeTimeout:   true,
	CodeRateLimit: true,
	CodeTransient: true,
	CodeUnknown:   true, // retryable with a stricter attempt cap, see Retryable
}

// nonRetryableCodes are always permanent failures.
var nonRetryableCodes = map[Code]bool{
	CodeValidation:   true,
	CodeSerializaton: true,
	CodeAuth:         true,
	CodeConfig:       true,
	CodeIntegrity:    true,
}

// Retryable reports whether an error of this code should be retried by the
// Reliable Processor. Unknown-classified errors are retryable but the caller
// must apply a stricter attempt cap (see MaxAttemptsFor).
func Retryable(code Code) bool {
	if nonRetryableCodes[code] {
		return false
	}
	return retryableCodes[code]
}

// MaxAttemptsFor returns the attempt cap for a given error code, given the
// configured default. Unknown-classified errors get a stricter cap per §4.6.
func MaxAttemptsFor(code Code, configured int) int {
	if code == CodeUnknown && configured > 2 {
		return 2
	}
	return configured
}

// Sentinel errors surfaced to producers per §7 propagation rules.
var (
	ErrValidation           = errors.New("validation failed")
	ErrIntegrity            = errors.New("integrity verification failed")
	ErrConfiguration        = errors.New("invalid configuration")
	ErrMissingPartition     = errors.New("partition does not exist")
	ErrPartitionUnavailable = errors.New("partition unavailable")
	ErrCircuitOpen          = errors.New("circuit breaker open")
)
