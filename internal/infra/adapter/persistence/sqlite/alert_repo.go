package sqlite

import (
	"context"
	"fmt"
	"time"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// AlertRepo implements repository.AlertRepository.
type AlertRepo struct {
	gw *storage.Gateway
}

// NewAlertRepo constructs an AlertRepo over gw.
func NewAlertRepo(gw *storage.Gateway) repository.AlertRepository {
	return &AlertRepo{gw: gw}
}

func (repo *AlertRepo) LastFired(ctx context.Context, alertKey string) (time.Time, bool, error) {
	var fired time.Time
	err := repo.gw.Get(ctx, &fired,
		`SELECT fired_at FROM alert_log WHERE alert_key = ? ORDER BY fired_at DESC LIMIT 1`, alertKey)
	if err != nil {
		if isNoRows(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("AlertRepo.LastFired: %w", err)
	}
	return fired, true, nil
}

func (repo *AlertRepo) RecordFired(ctx context.Context, alertKey string, at time.Time) error {
	const query = `INSERT INTO alert_log (alert_key, fired_at) VALUES (?, ?)`
	if err := repo.gw.Exec(ctx, query, alertKey, at); err != nil {
		return fmt.Errorf("AlertRepo.RecordFired: %w", err)
	}
	return nil
}

func (repo *AlertRepo) RecordDelivery(ctx context.Context, log entity.ChannelDeliveryLog) error {
	const query = `
INSERT INTO channel_delivery_log (channel, alert_key, success, error, at)
VALUES (?, ?, ?, ?, ?)`
	if err := repo.gw.Exec(ctx, query, log.Channel, log.AlertKey, log.Success, nullableEmptyString(log.Error), log.At); err != nil {
		return fmt.Errorf("AlertRepo.RecordDelivery: %w", err)
	}
	return nil
}
