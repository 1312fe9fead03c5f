package errors

import (
	"fmt"
	"time"
)

// Authentication creates an invalid or missing API key error
func Authentication(message string) *Error {
	if message == "" {
		message = "invalid or missing API key"
	}
	return &Error{Kind: KindAuthentication, Message: message}
}

// InsufficientFunds creates an error carrying the account balance that was too low
func InsufficientFunds(balance float64) *Error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: fmt.Sprintf("insufficient funds (current balance: $%.2f)", balance),
		Balance: balance,
	}
}

// RateLimit creates a rate limit error; retryAfter is zero when the server sent no hint
func RateLimit(retryAfter time.Duration) *Error {
	message := "rate limit exceeded"
	if retryAfter > 0 {
		message = fmt.Sprintf("rate limit exceeded, retry after %s", retryAfter)
	}
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

// Session creates a session error for a backend-reported or protocol failure
func Session(sessionID, message string) *Error {
	return &Error{Kind: KindSession, Message: message, SessionID: sessionID}
}

// Blocked creates an error for a target site that rejected the session
func Blocked(url string, statusCode int) *Error {
	message := "request was blocked by the target site"
	if url != "" {
		message += fmt.Sprintf(" (%s)", url)
	}
	if statusCode != 0 {
		message += fmt.Sprintf(" - status %d", statusCode)
	}
	return &Error{Kind: KindBlocked, Message: message, URL: url, StatusCode: statusCode}
}

// Timeout creates an error for an exceeded local wait budget
func Timeout(message string, timeout time.Duration) *Error {
	if message == "" {
		message = fmt.Sprintf("operation timed out after %s", timeout)
	}
	return &Error{Kind: KindTimeout, Message: message, Timeout: timeout}
}

// Generic creates an error for anything outside the other kinds; statusCode may be zero
func Generic(message string, statusCode int) *Error {
	return &Error{Kind: KindGeneric, Message: message, StatusCode: statusCode}
}

// WithCause attaches the underlying error
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}
