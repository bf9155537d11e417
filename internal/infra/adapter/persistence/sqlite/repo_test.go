package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
	kdb "kybuzz/internal/infra/db"
	"kybuzz/internal/infra/storage"
)

func newTestDB(t *testing.T) *storage.Gateway {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sqlxDB, err := kdb.Open(ctx, "file::memory:?cache=shared", kdb.DefaultConnectionConfig())
	require.NoError(t, err)
	require.NoError(t, kdb.MigrateUp(ctx, sqlxDB))
	t.Cleanup(func() { _ = sqlxDB.Close() })

	return storage.New(sqlxDB)
}

func TestFeedRepo_UpsertAndGet(t *testing.T) {
	gw := newTestDB(t)
	repo := NewFeedRepo(gw)
	ctx := context.Background()

	county := "Fayette"
	f := &entity.Feed{
		ID:            "f1",
		Name:          "Lexington Herald",
		URL:           "https://example.com/lex.xml",
		Category:      "news",
		StateCode:     "KY",
		RegionScope:   entity.RegionScopeKY,
		FetchMode:     entity.FetchModeRSS,
		DefaultCounty: &county,
		Enabled:       true,
	}
	require.NoError(t, repo.Upsert(ctx, f))

	got, err := repo.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Lexington Herald", got.Name)
	assert.Equal(t, "Fayette", *got.DefaultCounty)
	assert.True(t, got.Enabled)
}

func TestFeedRepo_ListEnabled_OrdersByOldestChecked(t *testing.T) {
	gw := newTestDB(t)
	repo := NewFeedRepo(gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &entity.Feed{ID: "f1", Name: "A", URL: "https://a.example.com", Enabled: true}))
	require.NoError(t, repo.Upsert(ctx, &entity.Feed{ID: "f2", Name: "B", URL: "https://b.example.com", Enabled: true}))

	now := time.Now().UTC()
	require.NoError(t, repo.TouchValidators(ctx, "f2", nil, nil, now))
	require.NoError(t, repo.TouchValidators(ctx, "f1", nil, nil, now.Add(-time.Hour)))

	feeds, err := repo.ListEnabled(ctx, 10)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "f1", feeds[0].ID)
}

func TestItemRepo_UpdateMinHash_PersistsWithoutTouchingOtherColumns(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	ctx := context.Background()

	it := &entity.Item{
		ID:          "i-minhash",
		Title:       "School board approves budget",
		URL:         "https://example.com/budget",
		RegionScope: entity.RegionScopeKY,
		FetchedAt:   time.Now().UTC(),
		Hash:        "hash-v1",
	}
	require.NoError(t, itemRepo.Upsert(ctx, it))
	it.AISummary = "already summarized"
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, it))

	require.NoError(t, itemRepo.UpdateMinHash(ctx, "i-minhash", "abc123"))

	got, err := itemRepo.Get(ctx, "i-minhash")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.MinHash)
	assert.Equal(t, "already summarized", got.AISummary)
}

func TestItemRepo_UpsertPreservesEnrichment(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	ctx := context.Background()

	it := &entity.Item{
		ID:          "i1",
		Title:       "House passes HB 200",
		URL:         "https://example.com/a",
		RegionScope: entity.RegionScopeKY,
		FetchedAt:   time.Now().UTC(),
		Hash:        "hash-v1",
	}
	require.NoError(t, itemRepo.Upsert(ctx, it))

	it.AISummary = "a generated summary"
	it.IsBreaking = true
	expiry := time.Now().Add(4 * time.Hour)
	it.AlertLevel = entity.AlertLevelBreaking
	it.BreakingExpiresAt = &expiry
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, it))

	// Re-ingest with same hash but blank summary: enrichment must survive.
	it2 := &entity.Item{
		ID:          "i1",
		Title:       "House passes HB 200",
		URL:         "https://example.com/a",
		RegionScope: entity.RegionScopeKY,
		FetchedAt:   time.Now().UTC(),
		Hash:        "hash-v1",
	}
	require.NoError(t, itemRepo.Upsert(ctx, it2))

	got, err := itemRepo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "a generated summary", got.AISummary)
	assert.True(t, got.IsBreaking)
}

func TestItemRepo_ReplaceLocations(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	ctx := context.Background()

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{
		ID: "i1", Title: "t", URL: "https://example.com/a", FetchedAt: time.Now(), Hash: "h",
	}))

	require.NoError(t, itemRepo.ReplaceLocations(ctx, "i1", []entity.ItemLocation{
		{ItemID: "i1", StateCode: "KY", County: ""},
		{ItemID: "i1", StateCode: "KY", County: "Fayette"},
	}))

	var count int
	require.NoError(t, gw.Get(ctx, &count, `SELECT COUNT(*) FROM item_locations WHERE item_id = ?`, "i1"))
	assert.Equal(t, 2, count)

	// Replacing again should clear the old set, not accumulate.
	require.NoError(t, itemRepo.ReplaceLocations(ctx, "i1", []entity.ItemLocation{
		{ItemID: "i1", StateCode: "KY", County: "Perry"},
	}))
	require.NoError(t, gw.Get(ctx, &count, `SELECT COUNT(*) FROM item_locations WHERE item_id = ?`, "i1"))
	assert.Equal(t, 1, count)
}

func TestQueueRepo_ClaimAndRecover(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queueRepo := NewQueueRepo(gw)
	ctx := context.Background()

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{
		ID: "i1", Title: "t", URL: "https://example.com/a", FetchedAt: time.Now(), Hash: "h",
	}))
	require.NoError(t, queueRepo.Enqueue(ctx, "i1"))

	claimed, err := queueRepo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, entity.QueueStatusBodyFetching, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)

	// Force it to look stuck, then recover.
	require.NoError(t, gw.Exec(ctx, `UPDATE ingestion_queue SET updated_at = ? WHERE item_id = ?`,
		time.Now().Add(-20*time.Minute), "i1"))

	recovered, err := queueRepo.RecoverStuck(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	row, err := queueRepo.Get(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, entity.QueueStatusPending, row.Status)
}

func TestBillRepo_ExistsAndLink(t *testing.T) {
	gw := newTestDB(t)
	repo := NewBillRepo(gw)
	itemRepo := NewItemRepo(gw)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "HB 200")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gw.Exec(ctx, `INSERT INTO ky_bills (bill_number, title, session) VALUES (?, ?, ?)`, "HB 200", "An Act", "2026RS"))
	ok, err = repo.Exists(ctx, "HB 200")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{
		ID: "i1", Title: "t", URL: "https://example.com/a", FetchedAt: time.Now(), Hash: "h",
	}))
	require.NoError(t, repo.LinkItem(ctx, "i1", "HB 200"))

	var count int
	require.NoError(t, gw.Get(ctx, &count, `SELECT COUNT(*) FROM article_bills WHERE item_id = ?`, "i1"))
	assert.Equal(t, 1, count)
}

func TestAlertRepo_CooldownLedger(t *testing.T) {
	gw := newTestDB(t)
	repo := NewAlertRepo(gw)
	ctx := context.Background()

	_, found, err := repo.LastFired(ctx, "coverage-gap-x")
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Now().UTC()
	require.NoError(t, repo.RecordFired(ctx, "coverage-gap-x", now))

	fired, found, err := repo.LastFired(ctx, "coverage-gap-x")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, now, fired, time.Second)
}
