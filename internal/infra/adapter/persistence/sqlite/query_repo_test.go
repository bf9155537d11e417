package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/repository"
)

func TestQueryRepo_ListItems_ExcludesDuplicatesAndPaywalled(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	now := time.Now().UTC()
	free := &entity.Item{ID: "free-1", Title: "Free story", URL: "https://example.com/free", FetchedAt: now, Hash: "h1", RegionScope: entity.RegionScopeKY}
	require.NoError(t, itemRepo.Upsert(ctx, free))

	paywalled := &entity.Item{ID: "pay-1", Title: "Paywalled story", URL: "https://example.com/pay", FetchedAt: now, Hash: "h2", RegionScope: entity.RegionScopeKY}
	require.NoError(t, itemRepo.Upsert(ctx, paywalled))
	paywalled.IsPaywalled = true
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, paywalled))

	dup := &entity.Item{ID: "dup-1", Title: "Dup story", URL: "https://example.com/dup", FetchedAt: now, Hash: "h3", RegionScope: entity.RegionScopeKY}
	require.NoError(t, itemRepo.Upsert(ctx, dup))
	dup.IsDuplicate = true
	dup.CanonicalItemID = "free-1"
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, dup))

	items, _, _, err := queryRepo.ListItems(ctx, repository.ItemFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "free-1", items[0].ID)
}

func TestQueryRepo_ListItems_FiltersByCategoryAndCounty(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "sports-fayette", Title: "Big game", URL: "https://example.com/a", FetchedAt: now, Hash: "h1", RegionScope: entity.RegionScopeKY}))
	require.NoError(t, itemRepo.ReplaceCategories(ctx, "sports-fayette", []string{"sports"}))
	require.NoError(t, itemRepo.ReplaceLocations(ctx, "sports-fayette", []entity.ItemLocation{{ItemID: "sports-fayette", StateCode: "KY", County: "Fayette"}}))

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "sports-perry", Title: "Other game", URL: "https://example.com/b", FetchedAt: now, Hash: "h2", RegionScope: entity.RegionScopeKY}))
	require.NoError(t, itemRepo.ReplaceCategories(ctx, "sports-perry", []string{"sports"}))
	require.NoError(t, itemRepo.ReplaceLocations(ctx, "sports-perry", []entity.ItemLocation{{ItemID: "sports-perry", StateCode: "KY", County: "Perry"}}))

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "obit-fayette", Title: "Obituary", URL: "https://example.com/c", FetchedAt: now, Hash: "h3", RegionScope: entity.RegionScopeKY}))
	require.NoError(t, itemRepo.ReplaceCategories(ctx, "obit-fayette", []string{"obituaries"}))
	require.NoError(t, itemRepo.ReplaceLocations(ctx, "obit-fayette", []entity.ItemLocation{{ItemID: "obit-fayette", StateCode: "KY", County: "Fayette"}}))

	items, _, _, err := queryRepo.ListItems(ctx, repository.ItemFilter{
		Category: "sports",
		Counties: []string{"Fayette"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "sports-fayette", items[0].ID)
}

func TestQueryRepo_ListItems_ActiveBreakingRanksFirst(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour).UTC()
	newer := time.Now().UTC()

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "plain", Title: "Plain", URL: "https://example.com/plain", FetchedAt: newer, Hash: "h1"}))

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "breaking", Title: "Breaking", URL: "https://example.com/b", FetchedAt: older, Hash: "h2"}))
	expiry := time.Now().Add(2 * time.Hour)
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, &entity.Item{
		ID: "breaking", IsBreaking: true, BreakingExpiresAt: &expiry, AlertLevel: entity.AlertLevelBreaking,
	}))

	items, _, _, err := queryRepo.ListItems(ctx, repository.ItemFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "breaking", items[0].ID, "active breaking item must rank before a non-breaking, more recent item")
}

func TestQueryRepo_ListItems_Pagination(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		id := "item-" + string(rune('a'+i))
		require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{
			ID: id, Title: "t", URL: "https://example.com/" + id,
			FetchedAt: base.Add(time.Duration(i) * time.Minute), Hash: id,
		}))
	}

	page1, cursor, hasMore, err := queryRepo.ListItems(ctx, repository.ItemFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, hasMore)
	require.NotEmpty(t, cursor)

	page2, _, hasMore2, err := queryRepo.ListItems(ctx, repository.ItemFilter{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.False(t, hasMore2)

	seen := map[string]bool{}
	for _, it := range append(page1, page2...) {
		seen[it.ID] = true
	}
	assert.Len(t, seen, 3, "pagination must not skip or repeat rows")
}

func TestQueryRepo_BreakingTicker_OrdersByAlertLevel(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	now := time.Now().UTC()
	expiry := time.Now().Add(2 * time.Hour)

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "dev", Title: "Developing", URL: "https://example.com/dev", FetchedAt: now, Hash: "h1"}))
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, &entity.Item{ID: "dev", IsBreaking: true, BreakingExpiresAt: &expiry, AlertLevel: entity.AlertLevelDeveloping}))

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "emg", Title: "Emergency", URL: "https://example.com/emg", FetchedAt: now, Hash: "h2"}))
	require.NoError(t, itemRepo.UpdateEnrichment(ctx, &entity.Item{ID: "emg", IsBreaking: true, BreakingExpiresAt: &expiry, AlertLevel: entity.AlertLevelEmergency}))

	ticker, err := queryRepo.BreakingTicker(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ticker, 2)
	assert.Equal(t, "emg", ticker[0].ID)
}

func TestQueryRepo_CoverageReport(t *testing.T) {
	gw := newTestDB(t)
	itemRepo := NewItemRepo(gw)
	queryRepo := NewQueryRepo(gw)
	ctx := context.Background()

	require.NoError(t, itemRepo.Upsert(ctx, &entity.Item{ID: "i1", Title: "t", URL: "https://example.com/a", FetchedAt: time.Now().UTC(), Hash: "h1"}))
	require.NoError(t, itemRepo.ReplaceLocations(ctx, "i1", []entity.ItemLocation{{ItemID: "i1", StateCode: "KY", County: "Fayette"}}))

	report, err := queryRepo.CoverageReport(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "Fayette", report[0].County)
	assert.Equal(t, 1, report[0].ItemCount7d)
}
