// Package classify maps transport outcomes onto the closed error taxonomy in
// pkg/errors. It runs once per logical operation, after the retry policy has
// given up or hit a non-retryable outcome.
package classify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
	"github.com/shehryarbajwa/cloudbrowser/pkg/errors"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Response classifies a non-2xx response. sessionID is the session the call
// concerned, if any.
func Response(resp *transport.Response, sessionID string) *errors.Error {
	body := parseBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return errors.Authentication(body.Text())

	case http.StatusPaymentRequired:
		var balance float64
		if body.Balance != nil {
			balance = *body.Balance
		}
		return errors.InsufficientFunds(balance)

	case http.StatusTooManyRequests:
		after, _ := resp.RetryAfter()
		return errors.RateLimit(after)

	case http.StatusNotFound:
		if sessionID != "" {
			return errors.Session(sessionID, "session not found")
		}
	}

	detail := body.Text()
	if detail == "" {
		detail = strings.TrimSpace(string(resp.Body))
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return errors.Generic(fmt.Sprintf("API error (%d): %s", resp.StatusCode, detail), resp.StatusCode)
}

// Failure classifies an outcome that produced no response. requestTimeout is
// the per-call budget reported when the failure was a timeout.
func Failure(err error, requestTimeout time.Duration) *errors.Error {
	if classified, ok := errors.As(err); ok {
		return classified
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout("", requestTimeout).WithCause(err)
	case stderrors.Is(err, context.Canceled):
		return errors.Generic("operation canceled", 0).WithCause(err)
	}

	var failure *transport.Failure
	if stderrors.As(err, &failure) {
		if failure.Timeout {
			return errors.Timeout(fmt.Sprintf("%s %s timed out after %s", failure.Method, failure.Path, requestTimeout), requestTimeout).WithCause(err)
		}
		return errors.Generic(fmt.Sprintf("%s %s: network failure", failure.Method, failure.Path), 0).WithCause(err)
	}

	return errors.Generic(err.Error(), 0).WithCause(err)
}

// Malformed classifies a 2xx response whose body could not be understood
func Malformed(sessionID string, err error) *errors.Error {
	return errors.Session(sessionID, "malformed backend response").WithCause(err)
}

// Status classifies a backend-reported terminal status observed while waiting
// for a session to become ready. It returns nil for non-terminal statuses.
func Status(sessionID string, st *models.SessionStatusResponse) *errors.Error {
	switch models.ParseBackendStatus(st.Status) {
	case models.BackendBlocked:
		return errors.Blocked(st.BlockedURL, st.BlockedCode)
	case models.BackendFailed:
		message := st.ErrorMessage
		if message == "" {
			message = "unknown error"
		}
		return errors.Session(sessionID, "session failed: "+message)
	case models.BackendFinished:
		return errors.Session(sessionID, "session already finished")
	}
	return nil
}

func parseBody(data []byte) *models.ErrorResponse {
	var body models.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return &models.ErrorResponse{}
	}
	return &body
}
