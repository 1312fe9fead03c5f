package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// transitions lists the states reachable from each state. Terminal states
// have no entry.
var transitions = map[models.SessionState][]models.SessionState{
	models.StatePending: {models.StateClaimed, models.StateFailed},
	models.StateClaimed: {models.StateReady, models.StateFailed},
	models.StateReady:   {models.StateRunning, models.StateFinished, models.StateFailed},
	models.StateRunning: {models.StateFinished, models.StateFailed},
}

// ErrInvalidTransition is returned when a state change is not allowed
type ErrInvalidTransition struct {
	From models.SessionState
	To   models.SessionState
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// Machine is the state of one session. All mutation of a models.Session goes
// through it.
type Machine struct {
	mu      sync.Mutex
	session models.Session
}

// NewMachine creates a machine in the Pending state
func NewMachine(spec models.SessionSpec) *Machine {
	return &Machine{
		session: models.Session{
			State:     models.StatePending,
			Region:    spec.Region,
			ProfileID: spec.ProfileID,
			URL:       spec.URL,
			CreatedAt: time.Now(),
		},
	}
}

// Claim records the backend's acknowledgement of the create
func (m *Machine) Claim(id, backendStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(models.StateClaimed); err != nil {
		return err
	}
	m.session.ID = id
	m.session.BackendStatus = backendStatus
	return nil
}

// Observe records a non-terminal backend status seen while polling
func (m *Machine) Observe(backendStatus string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.BackendStatus = backendStatus
}

// Ready sets the connection details. They are written exactly once.
func (m *Machine) Ready(endpoint, liveViewURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(models.StateReady); err != nil {
		return err
	}
	m.session.Endpoint = endpoint
	m.session.LiveViewURL = liveViewURL
	return nil
}

// Run marks the connection as in use. It is a no-op when already running.
func (m *Machine) Run() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.State == models.StateRunning {
		return nil
	}
	return m.transition(models.StateRunning)
}

// Finish moves a ready or running session to Finished
func (m *Machine) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(models.StateFinished); err != nil {
		return err
	}
	m.session.EndedAt = time.Now()
	return nil
}

// Fail moves any non-terminal session to Failed
func (m *Machine) Fail(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(models.StateFailed); err != nil {
		return err
	}
	m.session.FailureReason = reason
	m.session.EndedAt = time.Now()
	return nil
}

// AddBytes accumulates transferred bytes; only counted while running
func (m *Machine) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.State == models.StateRunning {
		m.session.BytesTransferred += n
	}
}

// State returns the current state
func (m *Machine) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.State
}

// Snapshot returns a copy of the session
func (m *Machine) Snapshot() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Machine) transition(to models.SessionState) error {
	from := m.session.State
	for _, allowed := range transitions[from] {
		if allowed == to {
			m.session.State = to
			return nil
		}
	}
	return &ErrInvalidTransition{From: from, To: to}
}
