package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// RunRepository backs C9's FetchRun header rows and per-feed
// FeedRunMetric rows, plus the FetchError ledger used by both the
// Orchestrator and the Scheduler's error-recording policy (spec §7).
type RunRepository interface {
	StartRun(ctx context.Context, run *entity.FetchRun) error
	FinishRun(ctx context.Context, run *entity.FetchRun) error
	RecordFeedMetric(ctx context.Context, m entity.FeedRunMetric) error
	RecordFetchError(ctx context.Context, feedID *string, errMsg string) error
	// RecentErrorCount counts FetchError rows for feedID within the
	// lookback window, for C12's feed-failure detector.
	RecentErrorCount(ctx context.Context, feedID string, since time.Time) (int, error)
}
