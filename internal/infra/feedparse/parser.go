// Package feedparse turns a fetched response body into candidate RawItems.
// It is deliberately decoupled from HTTP (see internal/infra/fetch/httpfetch):
// a Parser only ever sees bytes already on hand, so the same body can be
// parsed without a second round trip if a feed is ever re-processed.
package feedparse

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// RawItem is what a Parser extracts from one feed entry, before any
// enrichment (dedup, location, paywall, etc.) has run.
type RawItem struct {
	Title       string
	URL         string
	GUID        string
	Author      string
	Summary     string
	Content     string
	ImageURL    string
	PublishedAt *time.Time
}

// Parser turns a fetched body into zero or more RawItems for feed.
type Parser interface {
	Parse(ctx context.Context, feed *entity.Feed, body []byte) ([]RawItem, error)
}

// ForMode returns the Parser registered for a Feed's FetchMode.
func ForMode(mode entity.FetchMode) Parser {
	switch mode {
	case entity.FetchModeScrape:
		return &ScrapeParser{}
	case entity.FetchModeFacebookPage:
		return &FacebookPageParser{}
	default:
		return &RSSParser{}
	}
}
