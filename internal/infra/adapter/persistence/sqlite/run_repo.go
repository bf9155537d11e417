package sqlite

import (
	"context"
	"fmt"
	"time"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// RunRepo implements repository.RunRepository.
type RunRepo struct {
	gw *storage.Gateway
}

// NewRunRepo constructs a RunRepo over gw.
func NewRunRepo(gw *storage.Gateway) repository.RunRepository {
	return &RunRepo{gw: gw}
}

func (repo *RunRepo) StartRun(ctx context.Context, run *entity.FetchRun) error {
	const query = `
INSERT INTO fetch_runs (id, started_at, status, source, details_json)
VALUES (?, ?, ?, ?, ?)`
	if err := repo.gw.Exec(ctx, query, run.ID, run.StartedAt, run.Status, run.Source, nullableEmptyString(run.DetailsJSON)); err != nil {
		return fmt.Errorf("RunRepo.StartRun: %w", err)
	}
	return nil
}

func (repo *RunRepo) FinishRun(ctx context.Context, run *entity.FetchRun) error {
	const query = `UPDATE fetch_runs SET finished_at = ?, status = ?, details_json = ? WHERE id = ?`
	if err := repo.gw.Exec(ctx, query, nullableTime(run.FinishedAt), run.Status, nullableEmptyString(run.DetailsJSON), run.ID); err != nil {
		return fmt.Errorf("RunRepo.FinishRun: %w", err)
	}
	return nil
}

func (repo *RunRepo) RecordFeedMetric(ctx context.Context, m entity.FeedRunMetric) error {
	const query = `
INSERT INTO feed_run_metrics (run_id, feed_id, status, http_status, duration_ms, items_seen, items_upserted, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if err := repo.gw.Exec(ctx, query, m.RunID, m.FeedID, m.Status, m.HTTPStatus, m.DurationMS, m.ItemsSeen, m.ItemsUpserted, nullableEmptyString(m.ErrorMessage)); err != nil {
		return fmt.Errorf("RunRepo.RecordFeedMetric: %w", err)
	}
	return nil
}

func (repo *RunRepo) RecordFetchError(ctx context.Context, feedID *string, errMsg string) error {
	const query = `INSERT INTO fetch_errors (feed_id, at, error) VALUES (?, ?, ?)`
	if err := repo.gw.Exec(ctx, query, nullableString(feedID), time.Now().UTC(), errMsg); err != nil {
		return fmt.Errorf("RunRepo.RecordFetchError: %w", err)
	}
	return nil
}

func (repo *RunRepo) RecentErrorCount(ctx context.Context, feedID string, since time.Time) (int, error) {
	var count int
	err := repo.gw.Get(ctx, &count,
		`SELECT COUNT(*) FROM fetch_errors WHERE feed_id = ? AND at >= ?`, feedID, since)
	if err != nil {
		return 0, fmt.Errorf("RunRepo.RecentErrorCount: %w", err)
	}
	return count, nil
}
