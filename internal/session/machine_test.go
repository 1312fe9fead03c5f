package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

func readyMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine(models.SessionSpec{Region: "BR"})
	require.NoError(t, m.Claim("s1", "pending"))
	require.NoError(t, m.Ready("ws://cdp/s1", "https://live/s1"))
	return m
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine(models.SessionSpec{Region: "BR", URL: "https://example.com"})
	assert.Equal(t, models.StatePending, m.State())

	require.NoError(t, m.Claim("s1", "pending"))
	snap := m.Snapshot()
	assert.Equal(t, models.StateClaimed, snap.State)
	assert.Equal(t, "s1", snap.ID)
	assert.Empty(t, snap.Endpoint)
	assert.Empty(t, snap.LiveViewURL)

	require.NoError(t, m.Ready("ws://cdp/s1", "https://live/s1"))
	require.NoError(t, m.Run())
	require.NoError(t, m.Run(), "run is idempotent")
	require.NoError(t, m.Finish())

	snap = m.Snapshot()
	assert.Equal(t, models.StateFinished, snap.State)
	assert.Equal(t, "ws://cdp/s1", snap.Endpoint)
	assert.Equal(t, "https://live/s1", snap.LiveViewURL)
	assert.False(t, snap.EndedAt.IsZero())
}

func TestMachineRejectsInvalidTransitions(t *testing.T) {
	m := NewMachine(models.SessionSpec{})

	var invalid *ErrInvalidTransition
	assert.ErrorAs(t, m.Ready("ws://x", ""), &invalid)
	assert.ErrorAs(t, m.Run(), &invalid)
	assert.ErrorAs(t, m.Finish(), &invalid)
	assert.Equal(t, models.StatePending, m.State())
}

func TestMachineTerminalStatesAreFinal(t *testing.T) {
	finished := readyMachine(t)
	require.NoError(t, finished.Finish())
	assert.Error(t, finished.Fail("late"))
	assert.Error(t, finished.Run())
	assert.Equal(t, models.StateFinished, finished.State())

	failed := NewMachine(models.SessionSpec{})
	require.NoError(t, failed.Fail("boom"))
	assert.Error(t, failed.Claim("s1", "pending"))
	assert.Error(t, failed.Finish())
	assert.Equal(t, "boom", failed.Snapshot().FailureReason)
}

func TestMachineConnectionDetailsWrittenOnce(t *testing.T) {
	m := readyMachine(t)
	assert.Error(t, m.Ready("ws://other", "https://other"))

	snap := m.Snapshot()
	assert.Equal(t, "ws://cdp/s1", snap.Endpoint)
	assert.Equal(t, "https://live/s1", snap.LiveViewURL)
}

func TestMachineBytesOnlyWhileRunning(t *testing.T) {
	m := readyMachine(t)
	m.AddBytes(10)
	assert.Zero(t, m.Snapshot().BytesTransferred)

	require.NoError(t, m.Run())
	m.AddBytes(10)
	m.AddBytes(-5)
	m.AddBytes(32)
	assert.Equal(t, int64(42), m.Snapshot().BytesTransferred)

	require.NoError(t, m.Finish())
	m.AddBytes(100)
	assert.Equal(t, int64(42), m.Snapshot().BytesTransferred)
}
