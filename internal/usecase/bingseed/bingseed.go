// Package bingseed implements the Bing-Fallback Seeder (C14): it ensures
// every Kentucky county has at least one enabled feed by generating a
// synthetic Bing News RSS search feed for counties with no real coverage,
// following the same idempotent-Upsert discipline the Orchestrator (C9)
// uses for ordinary feeds.
package bingseed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/repository"
)

// Seeder generates and upserts synthetic Bing-fallback feeds.
type Seeder struct {
	Feeds repository.FeedRepository
}

// RunStats summarizes one Seeder.Run pass.
type RunStats struct {
	CountiesSeeded int
}

// Run computes the set of KY counties lacking any non-Bing enabled feed and
// upserts a Bing-fallback Feed row for each, per spec.md §4.14.
func (s *Seeder) Run(ctx context.Context) (*RunStats, error) {
	covered, err := s.Feeds.CountiesWithEnabledNonBingFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("bingseed: counties with enabled non-bing feed: %w", err)
	}

	stats := &RunStats{}
	for _, county := range location.AllCounties() {
		if covered[county] {
			continue
		}
		feed := buildFeed(county)
		if err := s.Feeds.Upsert(ctx, feed); err != nil {
			return stats, fmt.Errorf("bingseed: upsert feed for %s: %w", county, err)
		}
		stats.CountiesSeeded++
	}
	return stats, nil
}

// buildFeed constructs the synthetic Bing News RSS feed for county, per
// spec.md §4.14's URL template.
func buildFeed(county string) *entity.Feed {
	query := county + " County Kentucky"
	feedURL := "https://www.bing.com/news/search?q=" + url.QueryEscape(query) + "&format=rss"
	return &entity.Feed{
		ID:             feedID(county),
		Name:           "Bing News: " + county + " County",
		URL:            feedURL,
		Category:       "news",
		StateCode:      "KY",
		RegionScope:    entity.RegionScopeKY,
		FetchMode:      entity.FetchModeRSS,
		DefaultCounty:  &county,
		Enabled:        true,
		IsBingFallback: true,
	}
}

// feedID derives a deterministic ID from the county name so re-running the
// seeder is idempotent (Upsert on id).
func feedID(county string) string {
	h := sha256.Sum256([]byte("bing-fallback\x00" + county))
	return "bing-" + hex.EncodeToString(h[:8])
}
