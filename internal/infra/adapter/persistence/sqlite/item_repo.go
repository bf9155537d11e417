package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// ItemRepo implements repository.ItemRepository.
type ItemRepo struct {
	gw *storage.Gateway
}

// NewItemRepo constructs an ItemRepo over gw.
func NewItemRepo(gw *storage.Gateway) repository.ItemRepository {
	return &ItemRepo{gw: gw}
}

type itemRow struct {
	ID                   string         `db:"id"`
	Title                string         `db:"title"`
	URL                  string         `db:"url"`
	GUID                 sql.NullString `db:"guid"`
	Author               sql.NullString `db:"author"`
	RegionScope          string         `db:"region_scope"`
	PublishedAt          sql.NullTime   `db:"published_at"`
	FetchedAt            time.Time      `db:"fetched_at"`
	Summary              sql.NullString `db:"summary"`
	Content              sql.NullString `db:"content"`
	ImageURL             sql.NullString `db:"image_url"`
	BodyText             sql.NullString `db:"body_text"`
	WordCount            int            `db:"word_count"`
	Hash                 string         `db:"hash"`
	MinHash              sql.NullString `db:"minhash"`
	IsDuplicate          bool           `db:"is_duplicate"`
	CanonicalItemID      sql.NullString `db:"canonical_item_id"`
	IsPaywalled          bool           `db:"is_paywalled"`
	PaywallConfidence    int            `db:"paywall_confidence"`
	PaywallSignals       sql.NullString `db:"paywall_signals"`
	PaywallDeprioritized bool           `db:"paywall_deprioritized"`
	IsBreaking           bool           `db:"is_breaking"`
	AlertLevel           string         `db:"alert_level"`
	Sentiment            string         `db:"sentiment"`
	BreakingExpiresAt    sql.NullTime   `db:"breaking_expires_at"`
	AISummary            sql.NullString `db:"ai_summary"`
	AIMetaDescription    sql.NullString `db:"ai_meta_description"`
	CategoriesJSON       sql.NullString `db:"categories_json"`
	IsFacebook           bool           `db:"is_facebook"`
	Tags                 sql.NullString `db:"tags"`
}

func (r itemRow) toEntity() (*entity.Item, error) {
	it := &entity.Item{
		ID:                   r.ID,
		Title:                r.Title,
		URL:                  r.URL,
		RegionScope:          entity.RegionScope(r.RegionScope),
		FetchedAt:            r.FetchedAt,
		WordCount:            r.WordCount,
		Hash:                 r.Hash,
		IsDuplicate:          r.IsDuplicate,
		IsPaywalled:          r.IsPaywalled,
		PaywallConfidence:    r.PaywallConfidence,
		PaywallDeprioritized: r.PaywallDeprioritized,
		IsBreaking:           r.IsBreaking,
		AlertLevel:           entity.AlertLevel(r.AlertLevel),
		Sentiment:            entity.Sentiment(r.Sentiment),
		IsFacebook:           r.IsFacebook,
	}
	if r.GUID.Valid {
		it.GUID = r.GUID.String
	}
	if r.Author.Valid {
		it.Author = r.Author.String
	}
	if r.PublishedAt.Valid {
		it.PublishedAt = &r.PublishedAt.Time
	}
	if r.Summary.Valid {
		it.Summary = r.Summary.String
	}
	if r.Content.Valid {
		it.Content = r.Content.String
	}
	if r.ImageURL.Valid {
		it.ImageURL = r.ImageURL.String
	}
	if r.BodyText.Valid {
		it.BodyText = r.BodyText.String
	}
	if r.MinHash.Valid {
		it.MinHash = r.MinHash.String
	}
	if r.CanonicalItemID.Valid {
		it.CanonicalItemID = r.CanonicalItemID.String
	}
	if r.PaywallSignals.Valid && r.PaywallSignals.String != "" {
		if err := json.Unmarshal([]byte(r.PaywallSignals.String), &it.PaywallSignals); err != nil {
			return nil, fmt.Errorf("unmarshal paywall_signals: %w", err)
		}
	}
	if r.BreakingExpiresAt.Valid {
		it.BreakingExpiresAt = &r.BreakingExpiresAt.Time
	}
	if r.AISummary.Valid {
		it.AISummary = r.AISummary.String
	}
	if r.AIMetaDescription.Valid {
		it.AIMetaDescription = r.AIMetaDescription.String
	}
	if r.CategoriesJSON.Valid {
		it.CategoriesJSON = r.CategoriesJSON.String
	}
	if r.Tags.Valid && r.Tags.String != "" {
		if err := json.Unmarshal([]byte(r.Tags.String), &it.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return it, nil
}

const itemColumns = `id, title, url, guid, author, region_scope, published_at, fetched_at,
	summary, content, image_url, body_text, word_count, hash, minhash, is_duplicate,
	canonical_item_id, is_paywalled, paywall_confidence, paywall_signals, paywall_deprioritized,
	is_breaking, alert_level, sentiment, breaking_expires_at, ai_summary, ai_meta_description,
	categories_json, is_facebook, tags`

func (repo *ItemRepo) Get(ctx context.Context, id string) (*entity.Item, error) {
	var row itemRow
	if err := repo.gw.Get(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("ItemRepo.Get: %w", err)
	}
	return row.toEntity()
}

func (repo *ItemRepo) GetByHash(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := repo.gw.Get(ctx, &hash, `SELECT hash FROM items WHERE id = ?`, id)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ItemRepo.GetByHash: %w", err)
	}
	return hash, true, nil
}

// Upsert inserts a new item or updates an existing one using COALESCE on
// every enrichment column, so re-ingesting an unchanged feed never clobbers
// values the Enrichment Worker has already written (spec §4.9 step 4).
func (repo *ItemRepo) Upsert(ctx context.Context, it *entity.Item) error {
	const query = `
INSERT INTO items (id, title, url, guid, author, region_scope, published_at, fetched_at,
	summary, content, image_url, body_text, word_count, hash, is_facebook)
VALUES (:id, :title, :url, :guid, :author, :region_scope, :published_at, :fetched_at,
	:summary, :content, :image_url, :body_text, :word_count, :hash, :is_facebook)
ON CONFLICT(id) DO UPDATE SET
	title        = excluded.title,
	url          = excluded.url,
	guid         = excluded.guid,
	author       = excluded.author,
	region_scope = excluded.region_scope,
	published_at = excluded.published_at,
	fetched_at   = excluded.fetched_at,
	summary      = COALESCE(items.summary, excluded.summary),
	content      = COALESCE(items.content, excluded.content),
	image_url    = COALESCE(items.image_url, excluded.image_url),
	body_text    = COALESCE(items.body_text, excluded.body_text),
	word_count   = CASE WHEN items.word_count > 0 THEN items.word_count ELSE excluded.word_count END,
	hash         = excluded.hash,
	is_facebook  = excluded.is_facebook
`
	params := map[string]interface{}{
		"id":           it.ID,
		"title":        it.Title,
		"url":          it.URL,
		"guid":         nullableEmptyString(it.GUID),
		"author":       nullableEmptyString(it.Author),
		"region_scope": string(it.RegionScope),
		"published_at": nullableTime(it.PublishedAt),
		"fetched_at":   it.FetchedAt,
		"summary":      nullableEmptyString(it.Summary),
		"content":      nullableEmptyString(it.Content),
		"image_url":    nullableEmptyString(it.ImageURL),
		"body_text":    nullableEmptyString(it.BodyText),
		"word_count":   it.WordCount,
		"hash":         it.Hash,
		"is_facebook":  it.IsFacebook,
	}
	if err := repo.gw.NamedExec(ctx, query, params); err != nil {
		return fmt.Errorf("ItemRepo.Upsert: %w", err)
	}
	return nil
}

// UpdateEnrichment overwrites every enrichment column with the worker's
// freshly computed values; unlike Upsert it does not COALESCE, since the
// worker is the sole authoritative writer of these columns.
func (repo *ItemRepo) UpdateEnrichment(ctx context.Context, it *entity.Item) error {
	signalsJSON, err := marshalStrings(it.PaywallSignals)
	if err != nil {
		return fmt.Errorf("ItemRepo.UpdateEnrichment: marshal paywall_signals: %w", err)
	}
	tagsJSON, err := marshalStrings(it.Tags)
	if err != nil {
		return fmt.Errorf("ItemRepo.UpdateEnrichment: marshal tags: %w", err)
	}

	const query = `
UPDATE items SET
	body_text             = :body_text,
	word_count            = :word_count,
	minhash               = :minhash,
	is_duplicate          = :is_duplicate,
	canonical_item_id     = :canonical_item_id,
	is_paywalled          = :is_paywalled,
	paywall_confidence    = :paywall_confidence,
	paywall_signals       = :paywall_signals,
	paywall_deprioritized = :paywall_deprioritized,
	is_breaking           = :is_breaking,
	alert_level           = :alert_level,
	sentiment             = :sentiment,
	breaking_expires_at   = :breaking_expires_at,
	ai_summary            = :ai_summary,
	ai_meta_description   = :ai_meta_description,
	categories_json       = :categories_json,
	tags                  = :tags
WHERE id = :id
`
	params := map[string]interface{}{
		"id":                    it.ID,
		"body_text":             nullableEmptyString(it.BodyText),
		"word_count":            it.WordCount,
		"minhash":               nullableEmptyString(it.MinHash),
		"is_duplicate":          it.IsDuplicate,
		"canonical_item_id":     nullableEmptyString(it.CanonicalItemID),
		"is_paywalled":          it.IsPaywalled,
		"paywall_confidence":    it.PaywallConfidence,
		"paywall_signals":       nullableBytes(signalsJSON),
		"paywall_deprioritized": it.PaywallDeprioritized,
		"is_breaking":           it.IsBreaking,
		"alert_level":           string(it.AlertLevel),
		"sentiment":             string(it.Sentiment),
		"breaking_expires_at":   nullableTime(it.BreakingExpiresAt),
		"ai_summary":            nullableEmptyString(it.AISummary),
		"ai_meta_description":   nullableEmptyString(it.AIMetaDescription),
		"categories_json":       nullableEmptyString(it.CategoriesJSON),
		"tags":                  nullableBytes(tagsJSON),
	}
	if err := repo.gw.NamedExec(ctx, query, params); err != nil {
		return fmt.Errorf("ItemRepo.UpdateEnrichment: %w", err)
	}
	return nil
}

// UpdateMinHash writes the minhash column alone, ahead of the rest of
// UpdateEnrichment's columns, so a concurrent worker's dedup lookup
// (RecentWithSignature) can see it immediately.
func (repo *ItemRepo) UpdateMinHash(ctx context.Context, itemID, minhash string) error {
	const query = `UPDATE items SET minhash = :minhash WHERE id = :id`
	params := map[string]interface{}{
		"id":      itemID,
		"minhash": nullableEmptyString(minhash),
	}
	if err := repo.gw.NamedExec(ctx, query, params); err != nil {
		return fmt.Errorf("ItemRepo.UpdateMinHash: %w", err)
	}
	return nil
}

func (repo *ItemRepo) LinkFeed(ctx context.Context, feedID, itemID string) error {
	const query = `INSERT INTO feed_items (feed_id, item_id) VALUES (?, ?) ON CONFLICT DO NOTHING`
	if err := repo.gw.Exec(ctx, query, feedID, itemID); err != nil {
		return fmt.Errorf("ItemRepo.LinkFeed: %w", err)
	}
	return nil
}

func (repo *ItemRepo) UnlinkIfOrphaned(ctx context.Context, itemID string) error {
	var linkCount int
	if err := repo.gw.Get(ctx, &linkCount, `SELECT COUNT(*) FROM feed_items WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("ItemRepo.UnlinkIfOrphaned: count: %w", err)
	}
	if linkCount > 0 {
		return nil
	}
	if err := repo.gw.Exec(ctx, `DELETE FROM items WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("ItemRepo.UnlinkIfOrphaned: delete: %w", err)
	}
	return nil
}

func (repo *ItemRepo) ReplaceLocations(ctx context.Context, itemID string, locations []entity.ItemLocation) error {
	return repo.gw.Batch(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_locations WHERE item_id = ?`, itemID); err != nil {
			return err
		}
		for _, loc := range locations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO item_locations (item_id, state_code, county) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
				itemID, loc.StateCode, loc.County); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *ItemRepo) ReplaceCategories(ctx context.Context, itemID string, categories []string) error {
	return repo.gw.Batch(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_categories WHERE item_id = ?`, itemID); err != nil {
			return err
		}
		for _, cat := range categories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO item_categories (item_id, category) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				itemID, cat); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *ItemRepo) RecentWithSignature(ctx context.Context, since time.Time, excludeID string, limit int) ([]*entity.Item, error) {
	var rows []itemRow
	err := repo.gw.Select(ctx, &rows,
		`SELECT `+itemColumns+` FROM items
		 WHERE fetched_at >= ? AND minhash IS NOT NULL AND minhash != '' AND id != ?
		 ORDER BY fetched_at DESC LIMIT ?`, since, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("ItemRepo.RecentWithSignature: %w", err)
	}
	out := make([]*entity.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// CountiesWithRecentItems returns the set of counties with at least one item
// fetched since the given instant, joining item_locations on items so a
// county tag only counts while its item is still inside the window.
func (repo *ItemRepo) CountiesWithRecentItems(ctx context.Context, since time.Time) (map[string]bool, error) {
	var counties []string
	err := repo.gw.Select(ctx, &counties,
		`SELECT DISTINCT il.county FROM item_locations il
		 JOIN items i ON i.id = il.item_id
		 WHERE i.fetched_at >= ? AND il.county != ''`, since)
	if err != nil {
		return nil, fmt.Errorf("ItemRepo.CountiesWithRecentItems: %w", err)
	}
	out := make(map[string]bool, len(counties))
	for _, c := range counties {
		out[c] = true
	}
	return out, nil
}

func nullableEmptyString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func marshalStrings(ss []string) ([]byte, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	return json.Marshal(ss)
}

func isNoRows(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no rows in result set")
}
