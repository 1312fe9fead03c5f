// Package transport executes single control-plane HTTP requests. It adds
// authentication and JSON encoding but never interprets status codes and
// never retries; both belong to the layers above.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/ratelimit"
)

const userAgent = "cloudbrowser-go/0.1.0"

// Request is one control-plane call
type Request struct {
	Method string
	Path   string
	Body   interface{}
	Header http.Header
}

// Response is the raw outcome of a call that reached the server
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// maxRetryAfter bounds a parsed Retry-After so it always fits a Duration
const maxRetryAfter = time.Hour

// RetryAfter parses the Retry-After header as integer seconds. Values beyond
// an hour are clamped to it.
func (r *Response) RetryAfter() (time.Duration, bool) {
	raw := strings.TrimSpace(r.Header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-"):
		return maxRetryAfter, true
	case err != nil, seconds < 0:
		return 0, false
	case seconds > int64(maxRetryAfter/time.Second):
		return maxRetryAfter, true
	}
	return time.Duration(seconds) * time.Second, true
}

// Success reports a 2xx status
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Failure is a call that produced no HTTP response
type Failure struct {
	Method  string
	Path    string
	Timeout bool
	Err     error
}

func (f *Failure) Error() string {
	if f.Timeout {
		return fmt.Sprintf("%s %s timed out: %v", f.Method, f.Path, f.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", f.Method, f.Path, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options configures a Transport
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Limiter throttles outbound calls per API key; nil disables throttling.
	Limiter    *ratelimit.Limiter
	HTTPClient *http.Client
}

// Transport is a single HTTP request executor bound to one control plane
type Transport struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a Transport
func New(opts Options) *Transport {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
				DisableKeepAlives: false,
			},
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Transport{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		limiter:    opts.Limiter,
		httpClient: client,
		log:        logging.NewLogger("transport"),
	}
}

// Timeout returns the per-call timeout
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// Execute performs one request. The error, when non-nil, is always a *Failure
// unless ctx itself was canceled, in which case ctx.Err() is returned.
func (t *Transport) Execute(ctx context.Context, req Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, t.apiKey); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &Failure{Method: req.Method, Path: req.Path, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Failure{Method: req.Method, Path: req.Path, Err: fmt.Errorf("failed to marshal body: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, &Failure{Method: req.Method, Path: req.Path, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Failure{
			Method:  req.Method,
			Path:    req.Path,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Failure{Method: req.Method, Path: req.Path, Timeout: isTimeout(err), Err: fmt.Errorf("failed to read body: %w", err)}
	}

	t.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("control plane call")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
