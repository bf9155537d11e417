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

// SchoolEventRepo implements repository.SchoolEventRepository.
type SchoolEventRepo struct {
	gw *storage.Gateway
}

// NewSchoolEventRepo constructs a SchoolEventRepo over gw.
func NewSchoolEventRepo(gw *storage.Gateway) repository.SchoolEventRepository {
	return &SchoolEventRepo{gw: gw}
}

func (repo *SchoolEventRepo) Upsert(ctx context.Context, e *entity.SchoolEvent) error {
	uid := e.UID
	if uid == "" {
		uid = e.FallbackKey()
	}
	const query = `
INSERT INTO school_events (uid, county, title, start_at, end_at, location, url)
VALUES (:uid, :county, :title, :start_at, :end_at, :location, :url)
ON CONFLICT(uid) DO UPDATE SET
	county   = excluded.county,
	title    = excluded.title,
	start_at = excluded.start_at,
	end_at   = excluded.end_at,
	location = excluded.location,
	url      = excluded.url
`
	var endAt sql.NullTime
	if e.EndAt != nil {
		endAt = sql.NullTime{Time: *e.EndAt, Valid: true}
	}
	params := map[string]interface{}{
		"uid":      uid,
		"county":   e.County,
		"title":    e.Title,
		"start_at": e.StartAt,
		"end_at":   endAt,
		"location": nullableEmptyString(e.Location),
		"url":      nullableEmptyString(e.URL),
	}
	if err := repo.gw.NamedExec(ctx, query, params); err != nil {
		return fmt.Errorf("SchoolEventRepo.Upsert: %w", err)
	}
	return nil
}

func (repo *SchoolEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var ids []string
	if err := repo.gw.Select(ctx, &ids, `SELECT uid FROM school_events WHERE start_at < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("SchoolEventRepo.DeleteOlderThan: select: %w", err)
	}
	if err := repo.gw.Exec(ctx, `DELETE FROM school_events WHERE start_at < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("SchoolEventRepo.DeleteOlderThan: delete: %w", err)
	}
	return len(ids), nil
}
