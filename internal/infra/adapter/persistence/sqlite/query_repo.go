package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kybuzz/internal/common/pagination"
	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// QueryRepo implements repository.QueryRepository: the Query Composer
// (C13). It builds the filter predicate and six-key ranking clause
// described in spec.md §4.13 as parameterized SQL, the way every other
// repository here keeps query shape out of the usecase layer.
type QueryRepo struct {
	gw *storage.Gateway
}

// NewQueryRepo constructs a QueryRepo over gw.
func NewQueryRepo(gw *storage.Gateway) repository.QueryRepository {
	return &QueryRepo{gw: gw}
}

// rankingClause is spec.md §4.13's ranking tuple, ASC-lexicographic. SQLite
// has no NULLS LAST, so key 4 is emulated with an (IS NULL) tiebreaker
// column evaluated before the DESC timestamp itself.
const rankingClause = `
	CASE WHEN i.is_breaking = 1 AND i.breaking_expires_at > :now THEN 0 ELSE 1 END ASC,
	CASE WHEN i.is_paywalled = 0 THEN 0 WHEN i.paywall_deprioritized = 1 THEN 2 ELSE 1 END ASC,
	CASE WHEN EXISTS (
		SELECT 1 FROM feed_items fi JOIN feeds f ON f.id = fi.feed_id
		WHERE fi.item_id = i.id AND f.is_bing_fallback = 0
	) THEN 0 ELSE 1 END ASC,
	(i.published_at IS NULL) ASC,
	i.published_at DESC,
	i.fetched_at DESC`

// sortKeyExpr is the single coalesced timestamp a cursor anchors to: the
// same value ranking keys 4-5 ultimately resolve to for items with the same
// breaking/paywall/source tier.
const sortKeyExpr = `COALESCE(i.published_at, i.fetched_at)`

// ListItems implements repository.QueryRepository.
func (r *QueryRepo) ListItems(ctx context.Context, filter repository.ItemFilter) ([]*entity.Item, string, bool, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	args := map[string]interface{}{"now": time.Now(), "limit": limit + 1}

	where = append(where, `NOT EXISTS (
		SELECT 1 FROM ingestion_queue q WHERE q.item_id = i.id AND q.status = 'rejected_short'
	)`)

	if !filter.IncludeDuplicates {
		where = append(where, `i.is_duplicate = 0`)
	}
	if !filter.IncludePaywalled {
		where = append(where, `i.is_paywalled = 0`)
	}
	if filter.Category != "" {
		where = append(where, `EXISTS (SELECT 1 FROM item_categories ic WHERE ic.item_id = i.id AND ic.category = :category)`)
		args["category"] = filter.Category
	}
	if filter.RegionScope != "" {
		where = append(where, `i.region_scope = :region_scope`)
		args["region_scope"] = string(filter.RegionScope)
	}
	if len(filter.Counties) > 0 && filter.RegionScope != entity.RegionScopeNational {
		placeholders := make([]string, len(filter.Counties))
		for i, c := range filter.Counties {
			key := fmt.Sprintf("county%d", i)
			placeholders[i] = ":" + key
			args[key] = c
		}
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM item_locations il WHERE il.item_id = i.id AND il.state_code = 'KY' AND il.county IN (%s))`,
			strings.Join(placeholders, ", ")))
	}
	if filter.Since != nil {
		where = append(where, `i.fetched_at >= :since`)
		args["since"] = *filter.Since
	}

	cursor, err := pagination.DecodeCursor(filter.Cursor)
	if err != nil {
		cursor = pagination.Cursor{}
	}
	if cursor.ID != "" {
		where = append(where, fmt.Sprintf(`(%s < :cursor_sort_at OR (%s = :cursor_sort_at AND i.id < :cursor_id))`, sortKeyExpr, sortKeyExpr))
		args["cursor_sort_at"] = cursor.SortAt
		args["cursor_id"] = cursor.ID
	}

	query := `SELECT ` + qualifiedItemColumns() + ` FROM items i
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + rankingClause + `
		LIMIT :limit`

	rows, err := r.namedSelect(ctx, query, args)
	if err != nil {
		return nil, "", false, fmt.Errorf("QueryRepo.ListItems: %w", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	items := make([]*entity.Item, 0, len(rows))
	for _, row := range rows {
		it, err := row.toEntity()
		if err != nil {
			return nil, "", false, fmt.Errorf("QueryRepo.ListItems: %w", err)
		}
		items = append(items, it)
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		sortAt := last.FetchedAt
		if last.PublishedAt != nil {
			sortAt = *last.PublishedAt
		}
		nextCursor = pagination.EncodeCursor(pagination.Cursor{SortAt: sortAt, ID: last.ID})
	}

	return items, nextCursor, hasMore, nil
}

// BreakingTicker implements repository.QueryRepository.
func (r *QueryRepo) BreakingTicker(ctx context.Context, limit int) ([]*entity.Item, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT ` + itemColumns + ` FROM items i
		WHERE i.is_breaking = 1 AND i.breaking_expires_at > ?
		ORDER BY
			CASE i.alert_level
				WHEN 'emergency' THEN 0
				WHEN 'breaking' THEN 1
				WHEN 'developing' THEN 2
				ELSE 3
			END ASC,
			i.published_at DESC,
			i.fetched_at DESC
		LIMIT ?`

	var rows []itemRow
	if err := r.gw.Select(ctx, &rows, query, time.Now(), limit); err != nil {
		return nil, fmt.Errorf("QueryRepo.BreakingTicker: %w", err)
	}
	items := make([]*entity.Item, 0, len(rows))
	for _, row := range rows {
		it, err := row.toEntity()
		if err != nil {
			return nil, fmt.Errorf("QueryRepo.BreakingTicker: %w", err)
		}
		items = append(items, it)
	}
	return items, nil
}

// CoverageReport implements repository.QueryRepository: a 7-day per-county
// item-count aggregate, used by both the admin-facing coverage view and
// the Alerting usecase's diagnostics.
func (r *QueryRepo) CoverageReport(ctx context.Context) ([]entity.CoverageReport, error) {
	const query = `
		SELECT il.state_code AS state_code, il.county AS county,
			COUNT(*) AS item_count_7d, MAX(i.fetched_at) AS last_item_at
		FROM item_locations il
		JOIN items i ON i.id = il.item_id
		WHERE i.fetched_at >= ? AND il.county != ''
		GROUP BY il.state_code, il.county
		ORDER BY il.county`

	type row struct {
		StateCode   string    `db:"state_code"`
		County      string    `db:"county"`
		ItemCount7d int       `db:"item_count_7d"`
		LastItemAt  time.Time `db:"last_item_at"`
	}
	var rows []row
	since := time.Now().Add(-7 * 24 * time.Hour)
	if err := r.gw.Select(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("QueryRepo.CoverageReport: %w", err)
	}
	out := make([]entity.CoverageReport, 0, len(rows))
	for _, rr := range rows {
		lastItemAt := rr.LastItemAt
		out = append(out, entity.CoverageReport{
			StateCode:   rr.StateCode,
			County:      rr.County,
			ItemCount7d: rr.ItemCount7d,
			LastItemAt:  &lastItemAt,
		})
	}
	return out, nil
}

func qualifiedItemColumns() string {
	cols := strings.Split(itemColumns, ",")
	for i, c := range cols {
		cols[i] = "i." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// namedSelect runs a named-parameter SELECT into a slice of itemRow. The
// Gateway's Select only takes positional args, so QueryRepo binds its own
// named statement here rather than widening the Gateway's contract for one
// caller.
func (r *QueryRepo) namedSelect(ctx context.Context, query string, args map[string]interface{}) ([]itemRow, error) {
	stmt, err := r.gw.DB().PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare named query: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var rows []itemRow
	if err := stmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return rows, nil
}
