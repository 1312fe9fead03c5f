// Package cloudbrowser is the public entry point: acquire a remote browser
// session, use its CDP endpoint, release it.
//
//	client, err := cloudbrowser.New(cfg)
//	...
//	err = client.With(ctx, models.SessionSpec{Region: "BR"}, func(h *cloudbrowser.Handle) error {
//		endpoint, err := h.Endpoint()
//		...
//	})
package cloudbrowser

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/cloudbrowser/internal/billing"
	"github.com/shehryarbajwa/cloudbrowser/internal/controlplane"
	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/ratelimit"
	"github.com/shehryarbajwa/cloudbrowser/internal/region"
	"github.com/shehryarbajwa/cloudbrowser/internal/session"
	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
	"github.com/shehryarbajwa/cloudbrowser/pkg/config"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Handle is a ready session owned by the caller
type Handle = session.Handle

// Client orchestrates sessions against one control plane
type Client struct {
	cfg     *config.Config
	api     *controlplane.Client
	manager *session.Manager
	regions *region.Catalog
	ledger  *billing.Ledger
	log     *logrus.Entry
}

// New creates a client from cfg. The config must carry an API key.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	logging.Configure(cfg.Logging)

	var limiter *ratelimit.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	api := controlplane.NewClient(transport.New(transport.Options{
		BaseURL: cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout,
		Limiter: limiter,
	}))

	c := &Client{
		cfg:     cfg,
		api:     api,
		regions: region.NewCatalog(),
		log:     logging.NewLogger("client"),
	}

	reporter := billing.MultiReporter{billing.NewLogReporter()}
	if cfg.LedgerPath != "" {
		ledger, err := billing.OpenLedger(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		c.ledger = ledger
		reporter = append(reporter, ledger)
	}

	c.manager = session.NewManager(api, session.Options{
		ReadyTimeout:    cfg.ReadyTimeout,
		CloseTimeout:    cfg.CloseTimeout,
		PollInterval:    cfg.PollInterval,
		MaxPollInterval: cfg.MaxPollInterval,
		MaxConcurrent:   cfg.MaxConcurrent,
		Guard:           billing.NewGuard(api, cfg.MinBalance),
		Reporter:        reporter,
		Regions:         c.regions,
	})

	return c, nil
}

// Acquire provisions a session and returns once it is ready. Empty spec
// fields fall back to the configured defaults; timeout zero means the
// configured ready timeout.
func (c *Client) Acquire(ctx context.Context, spec models.SessionSpec, timeout time.Duration) (*Handle, error) {
	return c.manager.Acquire(ctx, c.withDefaults(spec), timeout)
}

// Release closes a session. It is safe to call more than once.
func (c *Client) Release(ctx context.Context, h *Handle) {
	c.manager.Release(ctx, h)
}

// With acquires a session, runs fn and releases the session however fn exits
func (c *Client) With(ctx context.Context, spec models.SessionSpec, fn func(*Handle) error) error {
	return c.manager.With(ctx, c.withDefaults(spec), fn)
}

// Status returns snapshots of the sessions this client holds
func (c *Client) Status() []models.Session {
	return c.manager.Status()
}

// Sessions exposes the live sessions, for the CDP relay
func (c *Client) Sessions() *session.Registry {
	return c.manager.Registry()
}

// Balance returns the account balance
func (c *Client) Balance(ctx context.Context) (float64, error) {
	return c.api.GetBalance(ctx)
}

// Lookup reports the backend's view of any session, held here or not
func (c *Client) Lookup(ctx context.Context, sessionID string) (*models.SessionStatusResponse, error) {
	return c.api.GetSession(ctx, sessionID)
}

// CloseSession closes a session by ID, such as one left over by another
// process. Sessions held by this client should be released instead.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	if h, ok := c.manager.Registry().Get(sessionID); ok {
		c.manager.Release(ctx, h)
		return nil
	}
	return c.api.DeleteSession(ctx, sessionID)
}

// Regions lists the known regions
func (c *Client) Regions() []region.Info {
	return c.regions.GetRegions()
}

// Usage returns the ledger totals and the n most recent records
func (c *Client) Usage(ctx context.Context, n int) (models.UsageTotals, []models.Usage, error) {
	if c.ledger == nil {
		return models.UsageTotals{}, nil, fmt.Errorf("no usage ledger configured: set ledger_path")
	}
	totals, err := c.ledger.Totals(ctx)
	if err != nil {
		return totals, nil, err
	}
	recent, err := c.ledger.Recent(ctx, n)
	return totals, recent, err
}

// Close releases every held session and closes the ledger
func (c *Client) Close(ctx context.Context) error {
	if err := c.manager.Shutdown(ctx); err != nil {
		return err
	}
	if c.ledger != nil {
		return c.ledger.Close()
	}
	return nil
}

func (c *Client) withDefaults(spec models.SessionSpec) models.SessionSpec {
	if spec.Region == "" {
		spec.Region = c.cfg.Region
	}
	if spec.ProfileID == "" {
		spec.ProfileID = c.cfg.ProfileID
	}
	if spec.URL == "" {
		spec.URL = c.cfg.URL
	}
	return spec
}
