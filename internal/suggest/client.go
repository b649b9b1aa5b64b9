// Package suggest queries the external name-suggestion service, which maps
// a free-text title to canonical names from a curated catalogue.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

const (
	// DefaultTimeout bounds one lookup including retries.
	DefaultTimeout = 3 * time.Second
	// DefaultCacheSize is the number of answered queries kept in memory.
	DefaultCacheSize = 1024
)

// ErrNoSuggestion means the service answered but had no name for the query.
var ErrNoSuggestion = errors.New("no suggestion")

// Response is the service's wire format.
type Response struct {
	Ans []string `json:"ans"`
}

// Client looks up suggested names over HTTP.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	timeout  time.Duration
	cache    *lru.Cache[string, []string]
	breaker  *apperrors.CircuitBreaker
	retry    apperrors.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-lookup deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCacheSize sets the answer cache size. 0 keeps the default.
func WithCacheSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.cache, _ = lru.New[string, []string](n)
		}
	}
}

// WithCircuitBreaker sets the failure count that opens the breaker and how
// long it stays open.
func WithCircuitBreaker(maxFailures int, reset time.Duration) Option {
	return func(c *Client) {
		c.breaker = apperrors.NewCircuitBreaker("suggest",
			apperrors.WithMaxFailures(maxFailures),
			apperrors.WithResetTimeout(reset))
	}
}

// WithRetries retries transport failures up to n times.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retry.MaxRetries = n
		}
	}
}

// New creates a client for the service at endpoint, e.g. http://localhost:2998.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid suggest endpoint %q", endpoint), err)
	}

	cache, _ := lru.New[string, []string](DefaultCacheSize)
	retry := apperrors.DefaultRetryConfig()
	retry.MaxRetries = 0
	retry.ShouldRetry = apperrors.IsRetryable

	c := &Client{
		endpoint: u,
		// Deadlines come from the request context.
		http:    &http.Client{},
		timeout: DefaultTimeout,
		cache:   cache,
		breaker: apperrors.NewCircuitBreaker("suggest"),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Suggest returns the top suggested name for query. An empty query returns
// "" without contacting the service.
func (c *Client) Suggest(ctx context.Context, query string) (string, error) {
	names, err := c.Lookup(ctx, query)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

// Lookup returns every suggested name for query, best first. It returns
// ErrNoSuggestion when the service has none, and ctx.Err() when ctx ends
// before the service answers.
func (c *Client) Lookup(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if names, ok := c.cache.Get(query); ok {
		return names, nil
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	names, err := apperrors.CircuitCall(c.breaker, func() ([]string, error) {
		names, err := apperrors.RetryWithResult(ctx, c.retry, func() ([]string, error) {
			return c.fetch(ctx, query)
		})
		// A caller that gave up says nothing about the service.
		if err != nil && parent.Err() != nil {
			return nil, apperrors.Uncounted(parent.Err())
		}
		// A healthy service with no answer is not a breaker failure.
		if errors.Is(err, ErrNoSuggestion) {
			return nil, nil
		}
		return names, err
	})
	if err != nil {
		slog.Debug("suggest_lookup_failed",
			slog.String("query", query),
			slog.String("breaker", c.breaker.State().String()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoSuggestion
	}

	c.cache.Add(query, names)
	slog.Debug("suggest_lookup_complete",
		slog.String("query", query),
		slog.String("suggested", names[0]),
		slog.Duration("elapsed", time.Since(start)))
	return names, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() apperrors.State {
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, query string) ([]string, error) {
	u := *c.endpoint
	u.Path += "/findname"
	u.RawQuery = url.Values{"name": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperrors.InternalError("build suggest request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.ErrCodeSuggestUnavailable, "suggest lookup timed out", ctx.Err())
		}
		return nil, apperrors.New(apperrors.ErrCodeSuggestUnavailable, "suggest service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// the service answers 404 with an empty list when nothing matches
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNoSuggestion
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.New(apperrors.ErrCodeSuggestUnavailable,
			fmt.Sprintf("suggest service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil).
			WithDetail("status", fmt.Sprint(resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSuggestBadResponse, "malformed suggest response", err)
	}
	if len(out.Ans) == 0 {
		return nil, ErrNoSuggestion
	}
	return out.Ans, nil
}
