package wikidata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/model"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = sleepContext

// sleepContext waits for d or until ctx is done, whichever comes first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var entityIDPattern = regexp.MustCompile(`^[QPL][1-9][0-9]*$`)

// RateLimiter throttles outgoing requests per host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RobotsPolicy decides whether a URL may be fetched
type RobotsPolicy interface {
	CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error)
}

// Client talks to the Wikibase entity and API endpoints
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxBytes   int64
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    RateLimiter
	robots     RobotsPolicy
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithCache caches raw entity documents
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLimiter throttles requests
func WithLimiter(l RateLimiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

// WithRobots checks robots.txt before every request
func WithRobots(r RobotsPolicy) Option {
	return func(cl *Client) { cl.robots = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for the Wikibase instance in cfg
func NewClient(cfg model.WikidataConfig, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 20_000_000
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		cache:      cache.Nop{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntityURL returns the Special:EntityData URL for id
func (c *Client) EntityURL(id string) string {
	return fmt.Sprintf("%s/wiki/Special:EntityData/%s.json", c.baseURL, url.PathEscape(id))
}

// EntityJSON fetches the raw entity document, consulting the cache first
func (c *Client) EntityJSON(ctx context.Context, id string) ([]byte, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !entityIDPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid entity id %q", id)
	}

	rawURL := c.EntityURL(id)
	key := cache.Key("entity", rawURL)
	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug("entity cache hit", zap.String("entity", id))
		return data, nil
	}

	data, err := c.getWithRetry(ctx, rawURL)
	if isStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("fetch entity %s: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entity %s: %w", id, err)
	}
	if err := c.cache.Set(key, data, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", zap.String("entity", id), zap.Error(err))
	}
	return data, nil
}

// Entity fetches and normalizes an entity
func (c *Client) Entity(ctx context.Context, id string) (*model.Entity, error) {
	data, err := c.EntityJSON(ctx, id)
	if err != nil {
		return nil, err
	}
	entity, err := ParseEntity(data, strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		return nil, fmt.Errorf("parse entity %s: %w", id, err)
	}
	return entity, nil
}

// api performs a GET against {base}/w/api.php with the given query
func (c *Client) api(ctx context.Context, query url.Values) ([]byte, error) {
	query.Set("format", "json")
	return c.getWithRetry(ctx, c.baseURL+"/w/api.php?"+query.Encode())
}

// getWithRetry retries transport errors, 429 and 5xx with exponential backoff
func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			c.logger.Debug("retrying request",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.get(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchMaxRetries, lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, http.StatusText(e.code))
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errRobotsDisallowed) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

var errRobotsDisallowed = errors.New("disallowed by robots.txt")

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return nil, errRobotsDisallowed
		}
		if delay > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Wikimedia APIs reject requests without a descriptive User-Agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("upstream response",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
