// Package sqlite provides SQLite implementations of the repository
// interfaces, built on top of internal/infra/storage.Gateway.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// FeedRepo implements repository.FeedRepository.
type FeedRepo struct {
	gw *storage.Gateway
}

// NewFeedRepo constructs a FeedRepo over gw.
func NewFeedRepo(gw *storage.Gateway) repository.FeedRepository {
	return &FeedRepo{gw: gw}
}

// feedRow mirrors the feeds table for sqlx scanning; nullable/marshaled
// columns are kept separate from entity.Feed's richer pointer/struct shape.
type feedRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	URL             string         `db:"url"`
	Category        string         `db:"category"`
	StateCode       string         `db:"state_code"`
	RegionScope     string         `db:"region_scope"`
	FetchMode       string         `db:"fetch_mode"`
	ScraperID       sql.NullString `db:"scraper_id"`
	DefaultCounty   sql.NullString `db:"default_county"`
	Enabled         bool           `db:"enabled"`
	IsBingFallback  bool           `db:"is_bing_fallback"`
	ETag            sql.NullString `db:"etag"`
	LastModified    sql.NullString `db:"last_modified"`
	LastCheckedAt   sql.NullTime   `db:"last_checked_at"`
	ScraperConfig   sql.NullString `db:"scraper_config"`
}

func (r feedRow) toEntity() (*entity.Feed, error) {
	f := &entity.Feed{
		ID:             r.ID,
		Name:           r.Name,
		URL:            r.URL,
		Category:       r.Category,
		StateCode:      r.StateCode,
		RegionScope:    entity.RegionScope(r.RegionScope),
		FetchMode:      entity.FetchMode(r.FetchMode),
		Enabled:        r.Enabled,
		IsBingFallback: r.IsBingFallback,
	}
	if r.ScraperID.Valid {
		f.ScraperID = &r.ScraperID.String
	}
	if r.DefaultCounty.Valid {
		f.DefaultCounty = &r.DefaultCounty.String
	}
	if r.ETag.Valid {
		f.ETag = &r.ETag.String
	}
	if r.LastModified.Valid {
		f.LastModified = &r.LastModified.String
	}
	if r.LastCheckedAt.Valid {
		f.LastCheckedAt = &r.LastCheckedAt.Time
	}
	if r.ScraperConfig.Valid && r.ScraperConfig.String != "" {
		var cfg entity.ScraperConfig
		if err := json.Unmarshal([]byte(r.ScraperConfig.String), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal scraper_config: %w", err)
		}
		f.ScraperConfig = &cfg
	}
	return f, nil
}

const feedColumns = `id, name, url, category, state_code, region_scope, fetch_mode,
	scraper_id, default_county, enabled, is_bing_fallback, etag, last_modified,
	last_checked_at, scraper_config`

func (repo *FeedRepo) Get(ctx context.Context, id string) (*entity.Feed, error) {
	var row feedRow
	err := repo.gw.Get(ctx, &row, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("FeedRepo.Get: %w", err)
	}
	return row.toEntity()
}

func (repo *FeedRepo) ListEnabled(ctx context.Context, limit int) ([]*entity.Feed, error) {
	var rows []feedRow
	err := repo.gw.Select(ctx, &rows,
		`SELECT `+feedColumns+` FROM feeds WHERE enabled = 1
		 ORDER BY last_checked_at IS NOT NULL, last_checked_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("FeedRepo.ListEnabled: %w", err)
	}
	return toFeeds(rows)
}

func (repo *FeedRepo) ListAll(ctx context.Context) ([]*entity.Feed, error) {
	var rows []feedRow
	if err := repo.gw.Select(ctx, &rows, `SELECT `+feedColumns+` FROM feeds ORDER BY name`); err != nil {
		return nil, fmt.Errorf("FeedRepo.ListAll: %w", err)
	}
	return toFeeds(rows)
}

func toFeeds(rows []feedRow) ([]*entity.Feed, error) {
	out := make([]*entity.Feed, 0, len(rows))
	for _, r := range rows {
		f, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (repo *FeedRepo) Upsert(ctx context.Context, f *entity.Feed) error {
	var scraperConfigJSON []byte
	if f.ScraperConfig != nil {
		var err error
		scraperConfigJSON, err = json.Marshal(f.ScraperConfig)
		if err != nil {
			return fmt.Errorf("FeedRepo.Upsert: marshal scraper_config: %w", err)
		}
	}

	const query = `
INSERT INTO feeds (id, name, url, category, state_code, region_scope, fetch_mode,
	scraper_id, default_county, enabled, is_bing_fallback, etag, last_modified,
	last_checked_at, scraper_config)
VALUES (:id, :name, :url, :category, :state_code, :region_scope, :fetch_mode,
	:scraper_id, :default_county, :enabled, :is_bing_fallback, :etag, :last_modified,
	:last_checked_at, :scraper_config)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	url = excluded.url,
	category = excluded.category,
	state_code = excluded.state_code,
	region_scope = excluded.region_scope,
	fetch_mode = excluded.fetch_mode,
	scraper_id = excluded.scraper_id,
	default_county = excluded.default_county,
	enabled = excluded.enabled,
	is_bing_fallback = excluded.is_bing_fallback,
	scraper_config = excluded.scraper_config
`
	params := map[string]interface{}{
		"id":               f.ID,
		"name":             f.Name,
		"url":              f.URL,
		"category":         f.Category,
		"state_code":       f.StateCode,
		"region_scope":     string(f.RegionScope),
		"fetch_mode":       string(f.FetchMode),
		"scraper_id":       nullableString(f.ScraperID),
		"default_county":   nullableString(f.DefaultCounty),
		"enabled":          f.Enabled,
		"is_bing_fallback": f.IsBingFallback,
		"etag":             nullableString(f.ETag),
		"last_modified":    nullableString(f.LastModified),
		"last_checked_at":  nullableTime(f.LastCheckedAt),
		"scraper_config":   nullableBytes(scraperConfigJSON),
	}
	if err := repo.gw.NamedExec(ctx, query, params); err != nil {
		return fmt.Errorf("FeedRepo.Upsert: %w", err)
	}
	return nil
}

func (repo *FeedRepo) TouchValidators(ctx context.Context, id string, etag, lastModified *string, checkedAt time.Time) error {
	const query = `UPDATE feeds SET etag = ?, last_modified = ?, last_checked_at = ? WHERE id = ?`
	if err := repo.gw.Exec(ctx, query, nullableString(etag), nullableString(lastModified), checkedAt, id); err != nil {
		return fmt.Errorf("FeedRepo.TouchValidators: %w", err)
	}
	return nil
}

func (repo *FeedRepo) CountiesWithEnabledNonBingFeed(ctx context.Context) (map[string]bool, error) {
	var counties []string
	err := repo.gw.Select(ctx, &counties,
		`SELECT DISTINCT default_county FROM feeds
		 WHERE enabled = 1 AND is_bing_fallback = 0 AND default_county IS NOT NULL AND default_county != ''`)
	if err != nil {
		return nil, fmt.Errorf("FeedRepo.CountiesWithEnabledNonBingFeed: %w", err)
	}
	out := make(map[string]bool, len(counties))
	for _, c := range counties {
		out[c] = true
	}
	return out, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
