// Package errors defines the closed set of classified errors returned by the
// session orchestrator. Every error that reaches a caller of Acquire is an
// *Error carrying one Kind and the fields that kind needs.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Kind identifies a classified error condition
type Kind string

const (
	KindAuthentication    Kind = "AUTHENTICATION"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindRateLimit         Kind = "RATE_LIMIT"
	KindSession           Kind = "SESSION"
	KindBlocked           Kind = "BLOCKED"
	KindTimeout           Kind = "TIMEOUT"
	KindGeneric           Kind = "GENERIC"
)

// Error is a classified error. Only the fields relevant to Kind are set.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// InsufficientFunds
	Balance float64 `json:"balance,omitempty"`
	// RateLimit
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	// Session
	SessionID string `json:"sessionId,omitempty"`
	// Blocked
	URL string `json:"url,omitempty"`
	// Blocked and Generic
	StatusCode int `json:"statusCode,omitempty"`
	// Timeout
	Timeout time.Duration `json:"timeout,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// ToJSON converts the error to JSON
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// As extracts the classified error from err's chain
func As(err error) (*Error, bool) {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// Is checks if an error is a classified error of the given kind
func Is(err error, kind Kind) bool {
	classified, ok := As(err)
	return ok && classified.Kind == kind
}

// KindOf extracts the kind from an error, or "" if it is not classified
func KindOf(err error) Kind {
	classified, ok := As(err)
	if !ok {
		return ""
	}
	return classified.Kind
}
