package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attempt performs one try of a logical operation
type Attempt func(ctx context.Context) (*transport.Response, error)

var log = logging.NewLogger("retry")

// Do runs one logical operation under policy p. The attempt counter is local
// to this call. It returns the last response or failure once the policy gives
// up, so the caller classifies exactly once.
func Do(ctx context.Context, p Policy, sleep Sleeper, op string, fn Attempt) (*transport.Response, error) {
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		decision := p.Decide(Outcome{Response: resp, Err: err}, attempt)
		if !decision.Retry {
			return resp, err
		}

		fields := logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"max":     p.MaxRetries,
			"wait":    decision.After,
		}
		if resp != nil {
			fields["status"] = resp.StatusCode
		} else {
			fields["error"] = err
		}
		log.WithFields(fields).Warn("retrying control plane call")

		if err := sleep(ctx, decision.After); err != nil {
			return nil, err
		}
	}
}
