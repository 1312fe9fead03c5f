package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"authentication", Authentication(""), KindAuthentication},
		{"insufficient funds", InsufficientFunds(0.10), KindInsufficientFunds},
		{"rate limit", RateLimit(5 * time.Second), KindRateLimit},
		{"session", Session("s1", "session failed"), KindSession},
		{"blocked", Blocked("https://example.com", 403), KindBlocked},
		{"timeout", Timeout("", time.Minute), KindTimeout},
		{"generic", Generic("boom", 500), KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.True(t, Is(tt.err, tt.kind))
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Contains(t, tt.err.Error(), string(tt.kind))
		})
	}
}

func TestErrorFields(t *testing.T) {
	funds := InsufficientFunds(0.10)
	assert.InDelta(t, 0.10, funds.Balance, 1e-9)
	assert.Contains(t, funds.Message, "$0.10")

	limited := RateLimit(10 * time.Second)
	assert.Equal(t, 10*time.Second, limited.RetryAfter)

	blocked := Blocked("https://shop.example", 403)
	assert.Equal(t, "https://shop.example", blocked.URL)
	assert.Equal(t, 403, blocked.StatusCode)

	timeout := Timeout("", 2*time.Second)
	assert.Equal(t, 2*time.Second, timeout.Timeout)
	assert.Contains(t, timeout.Message, "2s")
}

func TestWrappedClassification(t *testing.T) {
	inner := Session("s1", "session not found")
	wrapped := fmt.Errorf("acquire: %w", inner)

	assert.True(t, Is(wrapped, KindSession))
	assert.False(t, Is(wrapped, KindGeneric))

	classified, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "s1", classified.SessionID)

	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.False(t, Is(nil, KindGeneric))
}

func TestCauseUnwraps(t *testing.T) {
	err := Generic("acquire canceled", 0).WithCause(context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "caused by")
	assert.Contains(t, err.ToJSON(), `"kind": "GENERIC"`)
}
