package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"premiumcollector/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrExhausted is returned once every attempt for a URL has failed.
var ErrExhausted = errors.New("fetch: retries exhausted")

// Client performs GET requests that return JSON, retrying transport errors,
// non-2xx responses and malformed bodies with linearly increasing backoff.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retries    int
	delay      time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg config.FetchConfig, logger *zap.Logger) *Client {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers: map[string]string{
			"User-Agent": cfg.UserAgent,
			"Accept":     "application/json",
		},
		retries: retries,
		delay:   cfg.RetryDelay,
		logger:  logger,
		sleep:   sleep,
	}
	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return c
}

// Get returns the raw JSON body at url. Only ErrExhausted (wrapping the last
// failure) or a context error is ever returned.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("of", c.retries),
			zap.Error(err))

		if attempt < c.retries-1 {
			if err := c.sleep(ctx, c.delay*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrExhausted, url, lastErr)
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("malformed json: %s", truncate(body, 256))
	}

	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
