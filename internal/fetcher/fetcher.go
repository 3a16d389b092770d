// Package fetcher retrieves vendor payloads. A source is a local path by
// default; http(s) and ftp URLs are fetched remotely with retry.
package fetcher

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-triage/internal/resilience"
)

// Options configures a Client.
type Options struct {
	// Timeout bounds a single remote attempt. Default: 30s.
	Timeout time.Duration

	// UserAgent is sent on HTTP requests. Default: "invoice-triage/1.0".
	UserAgent string

	// RatePerSecond throttles remote fetches. Default: 10.
	RatePerSecond float64

	// Retry is the policy for transient remote failures.
	Retry resilience.Policy
}

// Client fetches payload bytes from local or remote sources.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "invoice-triage/1.0"
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultPolicy()
	}

	return &Client{
		opts: opts,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), int(opts.RatePerSecond)+1),
	}
}

// IsRemote reports whether the source needs a network fetch.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "ftp://")
}

// Fetch retrieves the raw payload for a source.
func (c *Client) Fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return c.fetchHTTP(ctx, source)
	case strings.HasPrefix(source, "ftp://"):
		return c.fetchFTP(ctx, source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", source)
		}
		return data, nil
	}
}
