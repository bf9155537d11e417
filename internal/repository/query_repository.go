package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// ItemFilter is the Query Composer's (C13) input: everything a caller can
// vary about a listing page (spec.md §4.13).
type ItemFilter struct {
	// Category restricts to items carrying this ItemCategory; "" means no
	// category filter.
	Category string
	// Counties restricts to KY items tagged with any of these counties;
	// empty means statewide (no county filter).
	Counties []string
	// RegionScope, when set, restricts to that scope; "" means both.
	RegionScope entity.RegionScope
	// Since, when non-nil, restricts to items fetched at or after it.
	Since *time.Time

	IncludeDuplicates bool
	IncludePaywalled  bool

	Limit int
	// Cursor is the opaque "<iso_sort_ts>|<item_id>" string from a prior
	// page's NextCursor; "" requests the first page.
	Cursor string
}

// QueryRepository implements the Query Composer (C13): the parameterized,
// ranking-aware read surface over Item rows, plus the breaking ticker and
// coverage report stored queries.
type QueryRepository interface {
	// ListItems returns up to filter.Limit items under spec.md §4.13's
	// ranking clause, the cursor for the next page, and whether more rows
	// remain beyond it.
	ListItems(ctx context.Context, filter ItemFilter) (items []*entity.Item, nextCursor string, hasMore bool, err error)

	// BreakingTicker returns up to limit currently-active breaking items,
	// sorted emergency < breaking < developing then recency (spec.md §4.13).
	BreakingTicker(ctx context.Context, limit int) ([]*entity.Item, error)

	// CoverageReport returns the 7-day per-county item-count aggregate.
	CoverageReport(ctx context.Context) ([]entity.CoverageReport, error)
}
