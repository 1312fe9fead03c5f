package billing

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/cloudbrowser/pkg/errors"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

type fixedBalance struct {
	balance float64
	err     error
	calls   int
}

func (f *fixedBalance) GetBalance(context.Context) (float64, error) {
	f.calls++
	return f.balance, f.err
}

func TestGuardCheck(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		min     float64
		wantErr bool
	}{
		{"above minimum", 5, DefaultMinBalance, false},
		{"exactly minimum", 0.50, DefaultMinBalance, false},
		{"below minimum", 0.49, DefaultMinBalance, true},
		{"zero without minimum", 0, 0, true},
		{"negative", -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(&fixedBalance{balance: tt.balance}, tt.min)
			err := g.Check(context.Background())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			classified, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.KindInsufficientFunds, classified.Kind)
			assert.InDelta(t, tt.balance, classified.Balance, 1e-9)
		})
	}
}

func TestGuardPassesSourceErrors(t *testing.T) {
	auth := errors.Authentication("")
	g := NewGuard(&fixedBalance{err: auth}, DefaultMinBalance)

	err := g.Check(context.Background())
	assert.True(t, errors.Is(err, errors.KindAuthentication))
}

func usage(id string, state models.SessionState, ended time.Time, d time.Duration, bytes int64) models.Usage {
	return models.Usage{
		SessionID: id,
		Region:    "BR",
		State:     state,
		StartedAt: ended.Add(-d),
		EndedAt:   ended,
		Duration:  d,
		Bytes:     bytes,
	}
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "data", "usage.db"))
	require.NoError(t, err)
	defer ledger.Close()

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, ledger.Report(ctx, usage("s1", models.StateFinished, now.Add(-time.Minute), 30*time.Second, 1000)))
	require.NoError(t, ledger.Report(ctx, usage("s2", models.StateFailed, now, 2*time.Second, 0)))
	require.NoError(t, ledger.Report(ctx, usage("s1", models.StateFinished, now.Add(-time.Minute), 30*time.Second, 1500)))

	totals, err := ledger.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Sessions)
	assert.Equal(t, int64(1), totals.Failed)
	assert.Equal(t, 32*time.Second, totals.Duration)
	assert.Equal(t, int64(1500), totals.Bytes)

	recent, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s2", recent[0].SessionID)
	assert.Equal(t, models.StateFailed, recent[0].State)
	assert.True(t, now.Equal(recent[0].EndedAt))
	assert.Equal(t, "s1", recent[1].SessionID)

	recent, err = ledger.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

type failingReporter struct{ err error }

func (f failingReporter) Report(context.Context, models.Usage) error { return f.err }

func TestMultiReporter(t *testing.T) {
	boom := stderrors.New("boom")
	m := MultiReporter{NewLogReporter(), failingReporter{err: boom}, failingReporter{err: stderrors.New("second")}}

	err := m.Report(context.Background(), usage("s1", models.StateFinished, time.Now(), time.Second, 1))
	assert.ErrorIs(t, err, boom)
}
