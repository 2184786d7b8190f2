package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/types"
)

// TokenProvider supplies a valid bearer token for each request.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Client manages communication with the Reddit API: request construction,
// bearer authentication, and client-side rate limiting.
type Client struct {
	client    *http.Client
	tokens    TokenProvider
	logger    *slog.Logger
	BaseURL   *url.URL
	UserAgent string

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching Reddit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10

	secondsPerMinute  = 60.0
	parseFloatBitSize = 64
)

// NewClient returns a new API client rooted at baseURL. If httpClient is nil,
// http.DefaultClient is used.
func NewClient(httpClient *http.Client, tokens TokenProvider, baseURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokens == nil {
		return nil, &pkgerrs.RequestError{Operation: "NewClient", Err: fmt.Errorf("token provider is required")}
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: "NewClient", Err: fmt.Errorf("failed to parse base URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		tokens:    tokens,
		logger:    logger,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// NewRequest creates an API request. path is resolved relative to BaseURL and
// the request carries a fresh bearer token.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method + " " + path, Err: err}
	}

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method + " " + path, URL: u.String(), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.UserAgent)
	return req, nil
}

// Do sends an API request and decodes the JSON response into v when v is
// non-nil. Non-2xx responses are returned as *errors.APIError.
func (c *Client) Do(req *http.Request, v *types.Thing) (*http.Response, error) {
	body, resp, err := c.send(req)
	if err != nil {
		return resp, err
	}

	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			return resp, &pkgerrs.ParseError{Operation: req.URL.Path, Err: err}
		}
	}
	return resp, nil
}

// DoRaw sends an API request and returns the raw response body. Used for
// endpoints whose responses do not fit the Thing envelope.
func (c *Client) DoRaw(req *http.Request) ([]byte, error) {
	body, _, err := c.send(req)
	return body, err
}

// PostForm issues a form-encoded POST to path and returns the raw response
// body. The write endpoints (edit, del, convert, media leases) all speak this
// shape.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.DoRaw(req)
}

func (c *Client) send(req *http.Request) ([]byte, *http.Response, error) {
	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, nil, &pkgerrs.RequestError{Operation: req.Method + " " + req.URL.Path, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, &pkgerrs.RequestError{Operation: req.Method + " " + req.URL.Path, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &pkgerrs.RequestError{Operation: req.Method + " " + req.URL.Path, Err: err}
	}

	if c.logger != nil {
		c.logger.Debug("api response",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"bytes", len(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp, apiError(resp.StatusCode, body)
	}
	return body, resp, nil
}

// apiError extracts Reddit's error fields when the body carries them.
func apiError(status int, body []byte) error {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Reason  string          `json:"reason"`
	}
	apiErr := &pkgerrs.APIError{StatusCode: status, Message: "request failed"}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		}
		if payload.Reason != "" {
			apiErr.ErrorCode = payload.Reason
		}
	}
	return apiErr
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / secondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}
	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

// applyRateHeaders inspects Reddit's rate-limit headers and defers upcoming
// requests when the server asks for it or the remaining budget runs out.
func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, parseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, parseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)
	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
