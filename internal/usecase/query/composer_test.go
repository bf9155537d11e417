package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/repository"
)

type fakeQueryRepo struct {
	listCalls     int
	tickerCalls   int
	coverageCalls int

	ticker   []*entity.Item
	coverage []entity.CoverageReport
}

func (f *fakeQueryRepo) ListItems(ctx context.Context, filter repository.ItemFilter) ([]*entity.Item, string, bool, error) {
	f.listCalls++
	return nil, "", false, nil
}

func (f *fakeQueryRepo) BreakingTicker(ctx context.Context, limit int) ([]*entity.Item, error) {
	f.tickerCalls++
	return f.ticker, nil
}

func (f *fakeQueryRepo) CoverageReport(ctx context.Context) ([]entity.CoverageReport, error) {
	f.coverageCalls++
	return f.coverage, nil
}

// TestComposer_NilRedis_PassesThroughEveryCall covers the "Redis is
// optional" requirement (spec.md §4.13): with no client configured, every
// call reaches the repository and none are served from a cache.
func TestComposer_NilRedis_PassesThroughEveryCall(t *testing.T) {
	item := &entity.Item{ID: "item-1", Title: "breaking"}
	repo := &fakeQueryRepo{
		ticker:   []*entity.Item{item},
		coverage: []entity.CoverageReport{{County: "Fayette", ItemCount7d: 4}},
	}
	composer := New(repo, nil)

	_, _, _, err := composer.ListItems(context.Background(), repository.ItemFilter{Limit: 10})
	require.NoError(t, err)

	ticker, err := composer.BreakingTicker(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, repo.ticker, ticker)

	ticker2, err := composer.BreakingTicker(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, repo.ticker, ticker2)

	report, err := composer.CoverageReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repo.coverage, report)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 2, repo.tickerCalls, "no redis client means every call recomputes")
	assert.Equal(t, 1, repo.coverageCalls)
}
