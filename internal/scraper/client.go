// Package scraper implements listing-API fetching, pagination strategies, and
// the per-vendor scrapers built on them.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ClientConfig controls the shared HTTP fetch primitive.
type ClientConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Delay is the politeness interval observed before every request.
	Delay time.Duration
}

// Client is the fetch primitive shared by all scrapers for one source. It
// owns politeness: every request waits the configured delay first.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient builds a Client from config.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}
}

// Get fetches rawURL with the given query parameters and returns the response
// body. Non-2xx responses are errors.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if err := c.pause(ctx); err != nil {
		return nil, err
	}

	target := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json, text/html")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get %s: %w", target, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http get %s: status %d", target, resp.StatusCode)
	}
	return body, nil
}

// pause observes the politeness delay, honoring context cancellation.
func (c *Client) pause(ctx context.Context) error {
	if c.cfg.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("politeness wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
