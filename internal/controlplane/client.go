// Package controlplane is the typed client for the session control-plane
// API. Each method is one logical operation: it runs the transport under the
// retry policy and classifies whatever outcome the policy gives up on.
package controlplane

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/classify"
	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/retry"
	"github.com/shehryarbajwa/cloudbrowser/internal/transport"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Client talks to one control plane
type Client struct {
	transport *transport.Transport
	policy    retry.Policy
	sleep     retry.Sleeper
	log       *logrus.Entry
}

// Option customizes a Client
type Option func(*Client)

// WithPolicy replaces the default retry policy
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleeper replaces the sleeper used between retries
func WithSleeper(s retry.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// NewClient creates a control-plane client on top of a transport
func NewClient(t *transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		policy:    retry.DefaultPolicy(),
		sleep:     retry.Sleep,
		log:       logging.NewLogger("controlplane"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession issues POST /sessions. idempotencyKey is sent unchanged on
// every retry of this one logical create.
func (c *Client) CreateSession(ctx context.Context, req models.CreateSessionRequest, idempotencyKey string) (*models.CreateSessionResponse, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.call(ctx, "create session", "", transport.Request{
		Method: http.MethodPost,
		Path:   "/sessions",
		Body:   req,
		Header: header,
	})
	if err != nil {
		return nil, err
	}

	var out models.CreateSessionResponse
	if err := resp.Decode(&out); err != nil {
		return nil, classify.Malformed("", err)
	}
	return &out, nil
}

// GetSession issues GET /sessions/{id}
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.SessionStatusResponse, error) {
	resp, err := c.call(ctx, "poll session", sessionID, transport.Request{
		Method: http.MethodGet,
		Path:   "/sessions/" + url.PathEscape(sessionID),
	})
	if err != nil {
		return nil, err
	}

	var out models.SessionStatusResponse
	if err := resp.Decode(&out); err != nil {
		return nil, classify.Malformed(sessionID, err)
	}
	return &out, nil
}

// DeleteSession issues DELETE /sessions/{id}
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.call(ctx, "close session", sessionID, transport.Request{
		Method: http.MethodDelete,
		Path:   "/sessions/" + url.PathEscape(sessionID),
	})
	return err
}

// GetBalance issues GET /account/balance
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	resp, err := c.call(ctx, "get balance", "", transport.Request{
		Method: http.MethodGet,
		Path:   "/account/balance",
	})
	if err != nil {
		return 0, err
	}

	var out models.BalanceResponse
	if err := resp.Decode(&out); err != nil {
		return 0, classify.Malformed("", err)
	}
	return out.Balance, nil
}

func (c *Client) call(ctx context.Context, op, sessionID string, req transport.Request) (*transport.Response, error) {
	resp, err := retry.Do(ctx, c.policy, c.sleep, op, func(ctx context.Context) (*transport.Response, error) {
		return c.transport.Execute(ctx, req)
	})
	if err != nil {
		return nil, classify.Failure(err, c.transport.Timeout())
	}
	if !resp.Success() {
		classified := classify.Response(resp, sessionID)
		c.log.WithFields(logrus.Fields{
			"op":     op,
			"status": resp.StatusCode,
			"kind":   classified.Kind,
		}).Debug("control plane call failed")
		return nil, classified
	}
	return resp, nil
}
