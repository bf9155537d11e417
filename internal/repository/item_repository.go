package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// ItemRepository persists Item rows and their FeedItem/ItemLocation/
// ItemCategory satellite tables.
type ItemRepository interface {
	Get(ctx context.Context, id string) (*entity.Item, error)
	GetByHash(ctx context.Context, id string) (hash string, found bool, err error)

	// Upsert implements the Orchestrator's upsert contract (spec §4.9 step
	// 4): if the stored hash equals the new hash, callers should skip this
	// call and only LinkFeed; otherwise Upsert inserts-or-updates with
	// COALESCE semantics on nullable columns so enrichment results already
	// present are not clobbered by reingested summaries.
	Upsert(ctx context.Context, item *entity.Item) error

	// UpdateEnrichment persists every enrichment column written by the
	// Enrichment Worker (C10) for a single item, atomically.
	UpdateEnrichment(ctx context.Context, item *entity.Item) error

	// UpdateMinHash persists only the minhash column. The Enrichment Worker
	// calls this before running its dedup lookup so that two items claimed
	// in the same batch see each other's signatures (spec §4.5's
	// store-before-lookup ordering), instead of waiting for the full
	// UpdateEnrichment call at the end of processing.
	UpdateMinHash(ctx context.Context, itemID, minhash string) error

	LinkFeed(ctx context.Context, feedID, itemID string) error
	UnlinkIfOrphaned(ctx context.Context, itemID string) error

	ReplaceLocations(ctx context.Context, itemID string, locations []entity.ItemLocation) error
	ReplaceCategories(ctx context.Context, itemID string, categories []string) error

	// RecentWithSignature returns up to limit items fetched within the
	// lookback window that carry a MinHash signature, most recent first,
	// excluding excludeID (spec §4.5).
	RecentWithSignature(ctx context.Context, since time.Time, excludeID string, limit int) ([]*entity.Item, error)

	// CountiesWithRecentItems returns the set of KY counties (from
	// item_locations) carrying at least one item fetched since the given
	// instant, for the Alerting usecase's coverage-gap detector (spec §4.12).
	CountiesWithRecentItems(ctx context.Context, since time.Time) (map[string]bool, error)
}
