package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/go-shiori/go-readability"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/fetch/httpfetch"
)

// BodyFetcher extracts clean article text from a URL using the Mozilla
// Readability algorithm, the same library and technique the teacher used
// for RSS content enhancement — here repurposed as the Enrichment Worker's
// first pipeline step (spec.md §4.9 step 1) rather than an optional
// RSS-threshold gate.
type BodyFetcher struct {
	client *httpfetch.Client
}

// NewBodyFetcher builds a BodyFetcher over an httpfetch.Client configured
// with httpfetch.ArticleFetchConfig.
func NewBodyFetcher(client *httpfetch.Client) *BodyFetcher {
	return &BodyFetcher{client: client}
}

// FetchBody downloads rawURL and extracts readable article text, alongside
// the raw HTML the page served (the Paywall Scorer's JSON-LD
// isAccessibleForFree check needs the untouched markup, not Readability's
// stripped-down extraction). It returns an error if the URL fails SSRF
// validation, the fetch fails, or no readable content can be extracted —
// callers fall back to whatever summary/content the feed already supplied.
func (f *BodyFetcher) FetchBody(ctx context.Context, rawURL string) (text string, rawHTML string, err error) {
	if err := entity.ValidateURL(rawURL); err != nil {
		return "", "", fmt.Errorf("bodyfetch: %w", err)
	}

	result, err := f.client.Fetch(ctx, rawURL, httpfetch.Options{
		Accept:       "text/html,application/xhtml+xml",
		MaxBodyBytes: httpfetch.DefaultMaxBodyBytes,
	})
	if err != nil {
		return "", "", fmt.Errorf("bodyfetch: %w", err)
	}
	if result.Status == httpfetch.StatusNotModified {
		return "", "", fmt.Errorf("bodyfetch: unexpected 304 for uncached request")
	}

	parsedURL, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(result.Body)), parsedURL)
	if err != nil {
		return "", "", fmt.Errorf("bodyfetch: extract: %w", err)
	}

	rawHTML = string(result.Body)
	if article.TextContent != "" {
		return article.TextContent, rawHTML, nil
	}
	if article.Content != "" {
		return article.Content, rawHTML, nil
	}
	return "", "", fmt.Errorf("bodyfetch: no readable content at %s", rawURL)
}
