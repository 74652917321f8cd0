package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxRetries = 3

// Client is the shared HTTP client collectors ride: rate-limited per
// source, bounded retries with linear backoff, and session headers
// injected on every request.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
	maxRetries int
}

// ClientConfig carries per-collector transport settings. Cookie is the
// raw Cookie header value for sources that need a session; empty for
// public APIs.
type ClientConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Cookie            string
	UserAgent         string
	MaxRetries        int
}

// NewClient builds a rate-limited client. Zero values fall back to
// conservative defaults (2 req/s, 30s timeout, 3 retries).
func NewClient(cfg ClientConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	headers := map[string]string{}
	if cfg.Cookie != "" {
		headers["Cookie"] = cfg.Cookie
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	} else {
		headers["User-Agent"] = "pricetrack/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		headers:    headers,
		maxRetries: retries,
	}
}

// GetJSON fetches reqURL and decodes the body into out.
// 401/403 map to ErrAuthenticationExpired immediately (retrying an
// expired session cannot help); transport errors and 5xx are retried
// with backoff and wrapped in ErrNetwork once retries are exhausted.
func (c *Client) GetJSON(ctx context.Context, reqURL string, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.doOnce(ctx, reqURL)
		if err != nil {
			if errors.Is(err, ErrAuthenticationExpired) {
				return err
			}
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", reqURL, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %s: %v", ErrNetwork, reqURL, lastErr)
}

func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthenticationExpired, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return body, nil
}
