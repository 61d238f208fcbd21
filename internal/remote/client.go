// Package remote mirrors ledger purges to the backend that owns contracts.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// Breaker trips after MinRequests calls in one Interval when the failure
	// ratio reaches FailureThreshold, and stays open for OpenTimeout.
	MinRequests      uint32
	FailureThreshold float64
	Interval         time.Duration
	OpenTimeout      time.Duration
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.6,
		Interval:         60 * time.Second,
		OpenTimeout:      30 * time.Second,
	}
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote base URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse remote base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "remote-purge",
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "component", "remote", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// DeleteContract issues DELETE {base}/api/contracts/{id}. Any non-2xx status
// is an error, as is an open breaker.
func (c *Client) DeleteContract(ctx context.Context, id string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.deleteContract(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("remote delete %q: %w", id, err)
	}
	return nil
}

func (c *Client) deleteContract(ctx context.Context, id string) error {
	endpoint := c.baseURL + "/api/contracts/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
