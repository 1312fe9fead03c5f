package session

import (
	"context"
	"sync/atomic"

	"github.com/shehryarbajwa/cloudbrowser/pkg/errors"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Handle is the caller's exclusive reference to one ready session. Releasing
// it closes the remote session; a handle cannot be used after release.
type Handle struct {
	id       string
	machine  *Machine
	manager  *Manager
	released atomic.Bool
}

func newHandle(id string, machine *Machine, manager *Manager) *Handle {
	return &Handle{id: id, machine: machine, manager: manager}
}

// SessionID returns the backend session ID
func (h *Handle) SessionID() string {
	return h.id
}

// Endpoint returns the CDP endpoint to attach an automation client to. The
// first call marks the session Running.
func (h *Handle) Endpoint() (string, error) {
	if h.released.Load() {
		return "", errors.Session(h.id, "handle used after release")
	}
	if err := h.machine.Run(); err != nil {
		return "", errors.Session(h.id, "session is not usable").WithCause(err)
	}
	return h.machine.Snapshot().Endpoint, nil
}

// LiveViewURL returns the live view URL, if the backend provided one. Like
// Endpoint it is unavailable once the handle is released; Session still
// carries it for reporting.
func (h *Handle) LiveViewURL() string {
	if h.released.Load() {
		return ""
	}
	return h.machine.Snapshot().LiveViewURL
}

// Session returns a snapshot of the session
func (h *Handle) Session() models.Session {
	return h.machine.Snapshot()
}

// AddBytes records traffic relayed over the session's connection
func (h *Handle) AddBytes(n int64) {
	h.machine.AddBytes(n)
}

// Fail marks the session Failed after an unrecoverable error while in use.
// The handle must still be released.
func (h *Handle) Fail(reason string) error {
	return h.machine.Fail(reason)
}

// Released reports whether Release has been called
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Release closes the session. Calling it again is a no-op.
func (h *Handle) Release(ctx context.Context) {
	h.manager.Release(ctx, h)
}

// Close implements io.Closer. It never returns an error.
func (h *Handle) Close() error {
	h.Release(context.Background())
	return nil
}

// claimRelease reports whether this call is the one that releases the handle
func (h *Handle) claimRelease() bool {
	return h.released.CompareAndSwap(false, true)
}
