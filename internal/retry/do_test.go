package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func scripted(outcomes ...Outcome) (Attempt, *int) {
	calls := 0
	return func(ctx context.Context) (*transport.Response, error) {
		o := outcomes[calls]
		calls++
		return o.Response, o.Err
	}, &calls
}

func TestDoRecoversFromTransientFailures(t *testing.T) {
	for failures := 0; failures <= 3; failures++ {
		var outcomes []Outcome
		for i := 0; i < failures; i++ {
			outcomes = append(outcomes, Outcome{Response: response(502, "")})
		}
		outcomes = append(outcomes, Outcome{Response: response(200, "")})

		rec := &recorder{}
		fn, calls := scripted(outcomes...)
		resp, err := Do(context.Background(), DefaultPolicy(), rec.sleep, "poll", fn)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, failures+1, *calls)
		assert.Len(t, rec.delays, failures)
	}
}

func TestDoGivesUpAfterCeiling(t *testing.T) {
	var outcomes []Outcome
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, Outcome{Response: response(503, "")})
	}

	rec := &recorder{}
	fn, calls := scripted(outcomes...)
	resp, err := Do(context.Background(), DefaultPolicy(), rec.sleep, "create", fn)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 4, *calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestDoReturnsLastFailure(t *testing.T) {
	failure := &transport.Failure{Method: "POST", Path: "/sessions", Err: errors.New("dial tcp: no such host")}
	var outcomes []Outcome
	for i := 0; i < 4; i++ {
		outcomes = append(outcomes, Outcome{Err: failure})
	}

	rec := &recorder{}
	fn, _ := scripted(outcomes...)
	_, err := Do(context.Background(), DefaultPolicy(), rec.sleep, "create", fn)

	assert.ErrorIs(t, err, failure)
	assert.Len(t, rec.delays, 3)
}

func TestDoStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn, calls := scripted(Outcome{Response: response(503, "")}, Outcome{Response: response(200, "")})
	_, err := Do(ctx, DefaultPolicy(), Sleep, "poll", fn)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
