// Package session orchestrates the lifecycle of remote browser sessions:
// acquisition through the control plane, readiness polling, and release.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/cloudbrowser/internal/classify"
	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/region"
	"github.com/shehryarbajwa/cloudbrowser/internal/retry"
	"github.com/shehryarbajwa/cloudbrowser/pkg/errors"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

const (
	DefaultReadyTimeout    = 60 * time.Second
	DefaultCloseTimeout    = 10 * time.Second
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxPollInterval = 5 * time.Second
	DefaultMaxConcurrent   = 10

	pollGrowth = 1.5
)

// API is the subset of the control plane the manager drives
type API interface {
	CreateSession(ctx context.Context, req models.CreateSessionRequest, idempotencyKey string) (*models.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*models.SessionStatusResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Guard is consulted before any session is created
type Guard interface {
	Check(ctx context.Context) error
}

// Reporter receives one usage record per session that reached the backend
type Reporter interface {
	Report(ctx context.Context, usage models.Usage) error
}

// Options configures a Manager. Zero values take the defaults above.
type Options struct {
	ReadyTimeout    time.Duration
	CloseTimeout    time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	MaxConcurrent   int64

	Guard    Guard
	Reporter Reporter
	Regions  *region.Catalog
	Registry *Registry
	Sleep    retry.Sleeper
}

func (o *Options) setDefaults() {
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = DefaultMaxPollInterval
		if o.MaxPollInterval < o.PollInterval {
			o.MaxPollInterval = o.PollInterval
		}
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.Registry == nil {
		o.Registry = NewRegistry()
	}
	if o.Regions == nil {
		o.Regions = region.NewCatalog()
	}
	if o.Sleep == nil {
		o.Sleep = retry.Sleep
	}
}

// Manager handles all session operations
type Manager struct {
	api   API
	opts  Options
	slots *semaphore.Weighted
	log   *logrus.Entry
}

// NewManager creates a new session manager
func NewManager(api API, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		api:   api,
		opts:  opts,
		slots: semaphore.NewWeighted(opts.MaxConcurrent),
		log:   logging.NewLogger("session"),
	}
}

// Registry returns the registry of live sessions
func (m *Manager) Registry() *Registry {
	return m.opts.Registry
}

// Acquire provisions a session and waits until it is ready. timeout bounds
// the whole acquisition; zero means the configured ready timeout. The result
// is a usable handle or exactly one classified error.
func (m *Manager) Acquire(ctx context.Context, spec models.SessionSpec, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = m.opts.ReadyTimeout
	}
	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	routed, known := m.opts.Regions.RouteSession(spec.Region)
	if !known {
		m.log.WithField("region", routed).Warn("unknown region, passing it to the backend unchanged")
	}
	spec.Region = string(routed)

	if err := m.slots.Acquire(acqCtx, 1); err != nil {
		return nil, m.interrupted(ctx, acqCtx, "", timeout, err)
	}

	h, err := m.acquire(acqCtx, spec)
	if err != nil {
		// once a handle exists it owns the slot
		if h == nil {
			m.slots.Release(1)
		}
		return nil, m.interrupted(ctx, acqCtx, "", timeout, err)
	}
	return h, nil
}

// acquire returns a non-nil handle alongside an error when the session was
// created; the handle has then been abandoned or released elsewhere.
func (m *Manager) acquire(ctx context.Context, spec models.SessionSpec) (*Handle, error) {
	if m.opts.Guard != nil {
		if err := m.opts.Guard.Check(ctx); err != nil {
			return nil, err
		}
	}

	machine := NewMachine(spec)
	created, err := m.api.CreateSession(ctx, models.CreateSessionRequest{
		Region:    spec.Region,
		ProfileID: spec.ProfileID,
		URL:       spec.URL,
	}, uuid.New().String())
	if err != nil {
		return nil, err
	}

	id := created.Identifier()
	if id == "" {
		return nil, errors.Session("", "no session ID returned")
	}
	if err := machine.Claim(id, created.Status); err != nil {
		return nil, errors.Session(id, "unexpected session state").WithCause(err)
	}

	h := newHandle(id, machine, m)
	m.opts.Registry.Add(h)
	log := m.log.WithFields(logrus.Fields{"session_id": id, "region": spec.Region})
	log.Info("session created, waiting for ready")

	remoteTerminal, err := m.waitReady(ctx, h)
	if h.Released() {
		err = errReleasedBeforeReady(id)
	}
	if err != nil {
		m.abandon(ctx, h, remoteTerminal, err)
		return h, err
	}

	log.WithField("live_view_url", h.LiveViewURL()).Info("session ready")
	return h, nil
}

// waitReady polls until the session is ready. remoteTerminal is true when
// the backend itself reported the session as ended.
func (m *Manager) waitReady(ctx context.Context, h *Handle) (remoteTerminal bool, err error) {
	id := h.SessionID()
	interval := m.opts.PollInterval

	for {
		if h.Released() {
			return false, errReleasedBeforeReady(id)
		}
		st, err := m.api.GetSession(ctx, id)
		if err != nil {
			return false, err
		}
		h.machine.Observe(st.Status)

		if failure := classify.Status(id, st); failure != nil {
			return true, failure
		}

		switch models.ParseBackendStatus(st.Status) {
		case models.BackendReady, models.BackendRunning:
			endpoint := st.ControlEndpoint()
			if endpoint == "" {
				return false, errors.Session(id, "no endpoint returned")
			}
			if err := h.machine.Ready(endpoint, st.LiveViewURL); err != nil {
				if h.Released() {
					return false, errReleasedBeforeReady(id)
				}
				return false, errors.Session(id, "unexpected session state").WithCause(err)
			}
			return false, nil
		case models.BackendUnknown:
			m.log.WithFields(logrus.Fields{"session_id": id, "status": st.Status}).Debug("unrecognized backend status, still waiting")
		}

		if err := m.opts.Sleep(ctx, interval); err != nil {
			return false, err
		}
		interval = time.Duration(float64(interval) * pollGrowth)
		if interval > m.opts.MaxPollInterval {
			interval = m.opts.MaxPollInterval
		}
	}
}

// interrupted turns errors caused by the caller's cancellation or the
// acquisition budget into the classified error the caller sees
func (m *Manager) interrupted(parent, acqCtx context.Context, sessionID string, timeout time.Duration, err error) error {
	switch {
	case stderrors.Is(parent.Err(), context.Canceled):
		return errors.Generic("session acquisition canceled", 0).WithCause(context.Canceled)
	case acqCtx.Err() != nil:
		message := fmt.Sprintf("session not ready after %s", timeout)
		if classified, ok := errors.As(err); ok && classified.SessionID != "" {
			sessionID = classified.SessionID
		}
		if sessionID != "" {
			message = fmt.Sprintf("session %s not ready after %s", sessionID, timeout)
		}
		return errors.Timeout(message, timeout).WithCause(context.DeadlineExceeded)
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return classify.Failure(err, timeout)
}

// abandon ends a session that never became ready. Unless the backend already
// ended it, exactly one best-effort close is issued, detached from ctx.
func (m *Manager) abandon(ctx context.Context, h *Handle, remoteTerminal bool, cause error) {
	if !h.claimRelease() {
		return
	}
	m.fail(h, cause.Error())
	if !remoteTerminal {
		m.closeRemote(ctx, h.SessionID())
	}
	m.finish(ctx, h)
}

// Release closes the session behind h. It is idempotent and never fails:
// close errors are logged and local state is freed regardless. A handle
// released while its acquisition is still polling ends Failed, and the
// acquisition returns a Session error.
func (m *Manager) Release(ctx context.Context, h *Handle) {
	if h == nil || !h.claimRelease() {
		return
	}
	id := h.SessionID()

	switch h.machine.State() {
	case models.StateReady, models.StateRunning:
		if reason := endedRemotely(m.closeRemote(ctx, id)); reason != "" {
			m.fail(h, reason)
		} else if err := h.machine.Finish(); err != nil {
			m.log.WithError(err).WithField("session_id", id).Warn("session could not be marked finished")
		}
	case models.StateFailed:
		m.closeRemote(ctx, id)
	default:
		m.fail(h, "released before ready")
		m.closeRemote(ctx, id)
	}
	m.finish(ctx, h)
}

func (m *Manager) fail(h *Handle, reason string) {
	if err := h.machine.Fail(reason); err != nil {
		m.log.WithError(err).WithField("session_id", h.SessionID()).Debug("session already terminal")
	}
}

func (m *Manager) closeRemote(ctx context.Context, id string) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CloseTimeout)
	defer cancel()

	if err := m.api.DeleteSession(closeCtx, id); err != nil {
		m.log.WithError(err).WithField("session_id", id).Warn("failed to close session")
		return err
	}
	m.log.WithField("session_id", id).Info("session closed")
	return nil
}

// endedRemotely returns why the backend had already ended a session, judging
// by the error its close produced, or "" when it had not
func endedRemotely(closeErr error) string {
	classified, ok := errors.As(closeErr)
	if !ok {
		return ""
	}
	switch classified.Kind {
	case errors.KindInsufficientFunds, errors.KindSession:
		return classified.Message
	}
	return ""
}

func errReleasedBeforeReady(id string) error {
	return errors.Session(id, "session released before ready")
}

// finish drops the session from the registry, reports its usage and frees
// its slot. It runs once per handle, on the path that won claimRelease.
func (m *Manager) finish(ctx context.Context, h *Handle) {
	defer m.slots.Release(1)
	m.opts.Registry.Remove(h.SessionID())

	if m.opts.Reporter == nil {
		return
	}
	snap := h.Session()
	usage := models.Usage{
		SessionID: snap.ID,
		Region:    snap.Region,
		State:     snap.State,
		StartedAt: snap.CreatedAt,
		EndedAt:   snap.EndedAt,
		Duration:  snap.EndedAt.Sub(snap.CreatedAt),
		Bytes:     snap.BytesTransferred,
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CloseTimeout)
	defer cancel()
	if err := m.opts.Reporter.Report(reportCtx, usage); err != nil {
		m.log.WithError(err).WithField("session_id", snap.ID).Warn("failed to report usage")
	}
}

// With acquires a session, runs fn with it and releases it on every exit
// path, including panics
func (m *Manager) With(ctx context.Context, spec models.SessionSpec, fn func(*Handle) error) error {
	h, err := m.Acquire(ctx, spec, 0)
	if err != nil {
		return err
	}
	defer m.Release(ctx, h)

	return fn(h)
}

// Status returns snapshots of all live sessions
func (m *Manager) Status() []models.Session {
	return m.opts.Registry.List("")
}

// Shutdown releases every live session in parallel
func (m *Manager) Shutdown(ctx context.Context) error {
	handles := m.opts.Registry.Handles()
	if len(handles) == 0 {
		return nil
	}
	m.log.WithField("sessions", len(handles)).Info("releasing live sessions")

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error {
			m.Release(gctx, h)
			return nil
		})
	}
	return g.Wait()
}
