// Package attach connects a Playwright client to a session's CDP endpoint.
// Page automation itself belongs to the caller.
package attach

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
)

// DefaultConnectTimeout bounds the CDP handshake when ctx has no deadline
const DefaultConnectTimeout = 30 * time.Second

// Endpointer is anything exposing a CDP endpoint, such as a session handle
type Endpointer interface {
	Endpoint() (string, error)
}

// Attacher owns the Playwright driver used to attach to remote browsers
type Attacher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
	log         *logrus.Entry
}

// New creates an Attacher. Initialize must be called before Attach.
func New() *Attacher {
	return &Attacher{log: logging.NewLogger("attach")}
}

// Initialize installs the Playwright driver if needed and starts it. No
// browsers are downloaded since sessions run remotely.
func (a *Attacher) Initialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	a.playwright = pw
	a.initialized = true
	return nil
}

// Attach connects to the browser behind a CDP endpoint
func (a *Attacher) Attach(ctx context.Context, endpoint string) (playwright.Browser, error) {
	a.mu.Lock()
	pw := a.playwright
	a.mu.Unlock()

	if pw == nil {
		return nil, fmt.Errorf("attacher not initialized")
	}

	timeout := connectTimeout(ctx)
	browser, err := pw.Chromium.ConnectOverCDP(endpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect over CDP: %w", err)
	}

	a.log.WithField("version", browser.Version()).Debug("attached to remote browser")
	return browser, nil
}

// Visit opens url in the remote browser behind h and returns the page title
func (a *Attacher) Visit(ctx context.Context, h Endpointer, url string) (string, error) {
	endpoint, err := h.Endpoint()
	if err != nil {
		return "", err
	}

	browser, err := a.Attach(ctx, endpoint)
	if err != nil {
		return "", err
	}
	defer browser.Close()

	var browserCtx playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		browserCtx = contexts[0]
	} else {
		browserCtx, err = browser.NewContext()
		if err != nil {
			return "", fmt.Errorf("failed to create context: %w", err)
		}
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(connectTimeout(ctx).Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	title, err := page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Stop shuts the Playwright driver down
func (a *Attacher) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized || a.playwright == nil {
		return nil
	}
	if err := a.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	a.playwright = nil
	a.initialized = false
	return nil
}

// connectTimeout derives a Playwright timeout from ctx's deadline
func connectTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultConnectTimeout
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		return time.Millisecond
	}
	return remaining
}
