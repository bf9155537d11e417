package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// QueueRepo implements repository.QueueRepository.
type QueueRepo struct {
	gw *storage.Gateway
}

// NewQueueRepo constructs a QueueRepo over gw.
func NewQueueRepo(gw *storage.Gateway) repository.QueueRepository {
	return &QueueRepo{gw: gw}
}

type queueRow struct {
	ItemID    string         `db:"item_id"`
	Status    string         `db:"status"`
	Attempts  int            `db:"attempts"`
	LastError sql.NullString `db:"last_error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r queueRow) toEntity() *entity.IngestionQueue {
	q := &entity.IngestionQueue{
		ItemID:    r.ItemID,
		Status:    entity.QueueStatus(r.Status),
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.LastError.Valid {
		q.LastError = r.LastError.String
	}
	return q
}

func (repo *QueueRepo) Enqueue(ctx context.Context, itemID string) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO ingestion_queue (item_id, status, attempts, created_at, updated_at)
VALUES (?, ?, 0, ?, ?)
ON CONFLICT(item_id) DO NOTHING
`
	if err := repo.gw.Exec(ctx, query, itemID, entity.QueueStatusPending, now, now); err != nil {
		return fmt.Errorf("QueueRepo.Enqueue: %w", err)
	}
	return nil
}

func (repo *QueueRepo) ClaimBatch(ctx context.Context, n int) ([]*entity.IngestionQueue, error) {
	var ids []string
	err := repo.gw.Select(ctx, &ids,
		`SELECT item_id FROM ingestion_queue WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		entity.QueueStatusPending, n)
	if err != nil {
		return nil, fmt.Errorf("QueueRepo.ClaimBatch: select: %w", err)
	}

	now := time.Now().UTC()
	claimed := make([]*entity.IngestionQueue, 0, len(ids))
	for _, id := range ids {
		err := repo.gw.Exec(ctx,
			`UPDATE ingestion_queue SET status = ?, attempts = attempts + 1, updated_at = ?
			 WHERE item_id = ? AND status = ?`,
			entity.QueueStatusBodyFetching, now, id, entity.QueueStatusPending)
		if err != nil {
			return nil, fmt.Errorf("QueueRepo.ClaimBatch: claim %s: %w", id, err)
		}
		row, err := repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, row)
	}
	return claimed, nil
}

func (repo *QueueRepo) RecoverStuck(ctx context.Context, now time.Time) (int, error) {
	var rows []queueRow
	err := repo.gw.Select(ctx, &rows,
		`SELECT item_id, status, attempts, last_error, created_at, updated_at FROM ingestion_queue
		 WHERE status IN (?, ?) AND attempts < ?`,
		entity.QueueStatusBodyFetching, entity.QueueStatusSummarizing, entity.MaxEnrichmentAttempts)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo.RecoverStuck: select: %w", err)
	}

	count := 0
	for _, r := range rows {
		q := r.toEntity()
		if !q.NeedsRecovery(now) {
			continue
		}
		if err := repo.gw.Exec(ctx,
			`UPDATE ingestion_queue SET status = ?, updated_at = ? WHERE item_id = ?`,
			entity.QueueStatusPending, now, q.ItemID); err != nil {
			return count, fmt.Errorf("QueueRepo.RecoverStuck: revert %s: %w", q.ItemID, err)
		}
		count++
	}
	return count, nil
}

func (repo *QueueRepo) SetStatus(ctx context.Context, itemID string, status entity.QueueStatus, lastError string) error {
	const query = `UPDATE ingestion_queue SET status = ?, last_error = ?, updated_at = ? WHERE item_id = ?`
	if err := repo.gw.Exec(ctx, query, status, nullableEmptyString(lastError), time.Now().UTC(), itemID); err != nil {
		return fmt.Errorf("QueueRepo.SetStatus: %w", err)
	}
	return nil
}

func (repo *QueueRepo) Get(ctx context.Context, itemID string) (*entity.IngestionQueue, error) {
	var row queueRow
	err := repo.gw.Get(ctx, &row,
		`SELECT item_id, status, attempts, last_error, created_at, updated_at FROM ingestion_queue WHERE item_id = ?`,
		itemID)
	if err != nil {
		return nil, fmt.Errorf("QueueRepo.Get: %w", err)
	}
	return row.toEntity(), nil
}
