package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// QueueRepository is the restart-safe work queue for the Enrichment Worker.
type QueueRepository interface {
	Enqueue(ctx context.Context, itemID string) error
	// ClaimBatch transitions up to n pending rows to body_fetching and
	// returns them, incrementing attempts.
	ClaimBatch(ctx context.Context, n int) ([]*entity.IngestionQueue, error)
	// RecoverStuck reverts rows matching IngestionQueue.NeedsRecovery back
	// to pending (spec §4.10 recovery pass).
	RecoverStuck(ctx context.Context, now time.Time) (int, error)
	SetStatus(ctx context.Context, itemID string, status entity.QueueStatus, lastError string) error
	Get(ctx context.Context, itemID string) (*entity.IngestionQueue, error)
}
