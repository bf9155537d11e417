// Package repository defines storage-agnostic interfaces consumed by the
// usecase layer. Concrete implementations live in
// internal/infra/adapter/persistence/sqlite.
package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// FeedRepository persists Feed rows and the conditional-fetch validators the
// Orchestrator (C9) maintains on them.
type FeedRepository interface {
	Get(ctx context.Context, id string) (*entity.Feed, error)
	// ListEnabled returns up to limit enabled feeds ordered oldest
	// last_checked_at first (spec §4.9).
	ListEnabled(ctx context.Context, limit int) ([]*entity.Feed, error)
	ListAll(ctx context.Context) ([]*entity.Feed, error)
	Upsert(ctx context.Context, feed *entity.Feed) error
	// TouchValidators persists new ETag/Last-Modified/LastCheckedAt after a
	// fetch, regardless of the fetch outcome (spec §4.9 step 2).
	TouchValidators(ctx context.Context, id string, etag, lastModified *string, checkedAt time.Time) error
	// CountiesWithEnabledNonBingFeed returns the distinct counties already
	// covered by a real (non-Bing-fallback) enabled feed, for C14.
	CountiesWithEnabledNonBingFeed(ctx context.Context) (map[string]bool, error)
}
