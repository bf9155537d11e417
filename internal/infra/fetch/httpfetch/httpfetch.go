// Package httpfetch provides a conditional-GET HTTP client shared by every
// component that reaches out to an external URL: feed polling, article body
// fetching, ICS calendar downloads, and outbound webhook delivery.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"kybuzz/internal/resilience/circuitbreaker"
)

// Status summarizes the outcome of a conditional GET.
type Status int

const (
	// StatusOK means the server returned a fresh body (200).
	StatusOK Status = iota
	// StatusNotModified means the server confirmed the cached validators
	// are still current (304) — Body is empty.
	StatusNotModified
)

// Options configures a single Fetch call.
type Options struct {
	// ETag and LastModified are cache validators from a prior fetch of the
	// same URL. When set, they are sent as If-None-Match/If-Modified-Since.
	ETag         string
	LastModified string

	// Force skips conditional headers and always requests a fresh body.
	Force bool

	// UserAgent overrides the default identifying header.
	UserAgent string

	// Accept sets the Accept header; empty means the client's default.
	Accept string

	// Timeout bounds the whole request, including any redirects.
	Timeout time.Duration

	// MaxBodyBytes caps how much of the response body is read. Zero means
	// DefaultMaxBodyBytes; UnboundedBodyBytes disables the cap entirely.
	MaxBodyBytes int64
}

// Result is what a successful Fetch call returns.
type Result struct {
	Status       Status
	HTTPStatus   int
	ETag         string
	LastModified string
	Body         []byte
}

// DefaultMaxBodyBytes caps article/HTML bodies at 1.5MB (spec.md §4.2).
const DefaultMaxBodyBytes = 1_500_000

// UnboundedBodyBytes disables the cap entirely: the body is streamed to
// completion with no LimitReader and no size error, for the feed-fetch call
// class (spec.md §4.2 "unbounded (streaming read) for feeds").
const UnboundedBodyBytes int64 = -1

// DefaultUserAgent identifies the crawler to upstream servers.
const DefaultUserAgent = "KYBuzzBot/1.0 (+https://kybuzz.example/bot)"

// Client performs conditional GETs through a per-call-class circuit
// breaker. It never retries internally — the caller decides whether and how
// to retry, mirroring how the Orchestrator and Enrichment Worker each choose
// their own retry policy around the same fetch primitive.
type Client struct {
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	polite  *politeLimiter
}

// New builds a Client whose circuit breaker is configured by cbCfg and whose
// transport-level redirect limit is bounded to 5 hops. Every Client paces
// its own requests per-host regardless of cbCfg, so a fetch burst against
// one publisher never looks like a hammering crawler to that publisher or
// to this client's own circuit breaker.
func New(cbCfg circuitbreaker.Config) *Client {
	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("httpfetch: stopped after 5 redirects")
			}
			return nil
		},
	}
	return &Client{
		http:    httpClient,
		breaker: circuitbreaker.New(cbCfg),
		polite:  newPoliteLimiter(),
	}
}

// Fetch performs a conditional GET against urlStr, after waiting for this
// host's polite-pacing slot.
func (c *Client) Fetch(ctx context.Context, urlStr string, opts Options) (Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if err := c.polite.wait(ctx, urlStr); err != nil {
		return Result{}, fmt.Errorf("httpfetch: %s: %w", urlStr, err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, urlStr, opts, timeout)
	})
	if err != nil {
		return Result{}, err
	}
	return res.(Result), nil
}

func (c *Client) doFetch(ctx context.Context, urlStr string, opts Options, timeout time.Duration) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return Result{}, fmt.Errorf("httpfetch: build request: %w", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}
	if !opts.Force {
		if opts.ETag != "" {
			req.Header.Set("If-None-Match", opts.ETag)
		}
		if opts.LastModified != "" {
			req.Header.Set("If-Modified-Since", opts.LastModified)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return Result{}, fmt.Errorf("httpfetch: %s: %w", urlStr, reqCtx.Err())
		}
		var dnsErr *net.DNSError
		if asDNSError(err, &dnsErr) {
			return Result{}, fmt.Errorf("httpfetch: dns lookup failed for %s: %w", urlStr, err)
		}
		return Result{}, fmt.Errorf("httpfetch: %s: %w", urlStr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return Result{
			Status:       StatusNotModified,
			HTTPStatus:   resp.StatusCode,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &HTTPStatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	cap := opts.MaxBodyBytes
	if cap == 0 {
		cap = DefaultMaxBodyBytes
	}

	var body []byte
	if cap == UnboundedBodyBytes {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("httpfetch: read body: %w", err)
		}
	} else {
		body, err = io.ReadAll(io.LimitReader(resp.Body, cap+1))
		if err != nil {
			return Result{}, fmt.Errorf("httpfetch: read body: %w", err)
		}
		if int64(len(body)) > cap {
			return Result{}, fmt.Errorf("httpfetch: %s: response exceeds %d byte cap", urlStr, cap)
		}
	}

	return Result{
		Status:       StatusOK,
		HTTPStatus:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Body:         body,
	}, nil
}

func asDNSError(err error, target **net.DNSError) bool {
	var urlErr *url.Error
	if ue, ok := err.(*url.Error); ok {
		urlErr = ue
		if dnsErr, ok := urlErr.Err.(*net.DNSError); ok {
			*target = dnsErr
			return true
		}
	}
	return false
}

// HTTPStatusError wraps a non-2xx, non-304 response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("httpfetch: %s: unexpected status %d", e.URL, e.StatusCode)
}
