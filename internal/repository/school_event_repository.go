package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// SchoolEventRepository persists C15's per-county calendar events.
type SchoolEventRepository interface {
	// Upsert keys on UID when present, falling back to
	// entity.SchoolEvent.FallbackKey (spec §4.15).
	Upsert(ctx context.Context, event *entity.SchoolEvent) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
