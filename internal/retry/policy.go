// Package retry decides whether a failed control-plane call is retried and
// how long to wait first. A Policy is a plain value so it can be tested
// without any network.
package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Outcome is what one attempt produced: a response, or a failure with no response
type Outcome struct {
	Response *transport.Response
	Err      error
}

// Decision is Retry(After) when Retry is true, otherwise GiveUp(Reason)
type Decision struct {
	Retry  bool
	After  time.Duration
	Reason string
}

// Policy is the retry rule set for one class of logical operations
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Retryable  map[int]bool
}

// DefaultPolicy retries 429, 502, 503 and 504 and network failures up to 3 times
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Retryable: map[int]bool{
			429: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

// Decide returns the decision for an outcome. attempt is the zero-based index
// of the failed attempt within the logical operation.
func (p Policy) Decide(o Outcome, attempt int) Decision {
	switch {
	case o.Err != nil:
		var failure *transport.Failure
		if !errors.As(o.Err, &failure) {
			return Decision{Reason: fmt.Sprintf("not retryable: %v", o.Err)}
		}
		if attempt >= p.MaxRetries {
			return Decision{Reason: fmt.Sprintf("network failure after %d retries", attempt)}
		}
		return Decision{Retry: true, After: p.Backoff(attempt)}

	case o.Response == nil || o.Response.Success():
		return Decision{Reason: "success"}

	case !p.Retryable[o.Response.StatusCode]:
		return Decision{Reason: fmt.Sprintf("status %d is not retryable", o.Response.StatusCode)}

	case attempt >= p.MaxRetries:
		return Decision{Reason: fmt.Sprintf("status %d after %d retries", o.Response.StatusCode, attempt)}
	}

	if after, ok := o.Response.RetryAfter(); ok {
		return Decision{Retry: true, After: p.cap(after)}
	}
	return Decision{Retry: true, After: p.Backoff(attempt)}
}

// Backoff returns BaseDelay * 2^attempt capped at MaxDelay
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return p.cap(delay)
}

func (p Policy) cap(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
