// Package apiclient is the HTTP transport for the Wishkro API.
//
// The client owns two pieces of mutable configuration the session layer
// drives: a default Authorization header applied to every request that does
// not set its own, and a single-slot unauthorized callback fired whenever a
// response comes back 401, 403, or 419. Everything else is plain request
// plumbing: JSON defaults, a bounded timeout sized for mobile networks, a
// ULID request ID per call, and optional client-side pacing.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wishkro/wishkro-go/pkg/idx"
	"github.com/wishkro/wishkro-go/pkg/slogx"
)

const (
	// DefaultBaseURL is the production API host, used when no configuration
	// source provides one.
	DefaultBaseURL = "https://api.wishkro.com"

	// DefaultTimeout bounds every request. Mobile networks may be slow.
	DefaultTimeout = 20 * time.Second
)

// DefaultProfileKeys are the wrapper keys the backend has been observed to
// nest a profile under. The set is configurable because the backend's
// response shapes have drifted over time.
var DefaultProfileKeys = []string{"user", "data"}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	ProfileKeys []string

	// Limiter, when set, paces outgoing requests client-side.
	Limiter *rate.Limiter

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

type Client struct {
	baseURL     string
	http        *http.Client
	profileKeys []string
	limiter     *rate.Limiter
	logger      *slog.Logger

	mu             sync.RWMutex
	authHeader     string
	onUnauthorized func(context.Context)
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	profileKeys := cfg.ProfileKeys
	if len(profileKeys) == 0 {
		profileKeys = DefaultProfileKeys
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		http:        httpClient,
		profileKeys: profileKeys,
		limiter:     cfg.Limiter,
		logger:      logger,
	}
}

// BaseURL returns the resolved API base, for callers that need to build
// absolute resource URLs (e.g. relative image paths in profiles).
func (c *Client) BaseURL() string { return c.baseURL }

// BearerHeader normalizes a raw token into an Authorization header value.
// An already-prefixed token is not double-prefixed; empty input yields "".
func BearerHeader(token string) string {
	t := strings.TrimSpace(token)
	if bearer := "bearer "; len(t) >= len(bearer) && strings.EqualFold(t[:len(bearer)], bearer) {
		t = strings.TrimSpace(t[len(bearer):])
	}
	if t == "" {
		return ""
	}
	return "Bearer " + t
}

// AttachAuth sets the default Authorization credential applied to every
// subsequent request that does not carry its own. An empty token clears it.
func (c *Client) AttachAuth(token string) {
	header := BearerHeader(token)

	c.mu.Lock()
	c.authHeader = header
	c.mu.Unlock()
}

// SetUnauthorizedHandler installs the callback fired when a response status
// is unauthorized-class (401, 403, 419). There is exactly one slot; the
// session manager owns it. A nil fn clears the slot.
func (c *Client) SetUnauthorizedHandler(fn func(context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) currentAuth() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authHeader
}

func (c *Client) notifyUnauthorized(ctx context.Context) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()

	if fn != nil {
		fn(ctx)
	}
}

// do performs a request against the API. contentType is set verbatim so
// multipart bodies keep their boundary instead of being forced to JSON;
// pass "" for requests without a body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth := c.currentAuth(); auth != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", auth)
	}

	reqID := idx.New().String()
	req.Header.Set("X-Request-ID", reqID)

	// Downstream callbacks (the unauthorized handler in particular) inherit a
	// logger scoped to the request that triggered them.
	ctx = slogx.WithRequestID(slogx.WithContext(ctx, c.logger), reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		slogx.FromContext(ctx).Debug("request failed", "method", method, "path", path, "err", err)
		return nil, classifyTransport(err)
	}

	if isAuthStatus(resp.StatusCode) {
		c.notifyUnauthorized(ctx)
	}

	return resp, nil
}
