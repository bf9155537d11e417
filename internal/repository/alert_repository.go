package repository

import (
	"context"
	"time"

	"kybuzz/internal/domain/entity"
)

// AlertRepository backs Alerting (C12)'s cooldown ledger and channel
// delivery audit log.
type AlertRepository interface {
	// LastFired returns the most recent FiredAt for alertKey, and whether a
	// row exists at all.
	LastFired(ctx context.Context, alertKey string) (fired time.Time, found bool, err error)
	RecordFired(ctx context.Context, alertKey string, at time.Time) error
	RecordDelivery(ctx context.Context, log entity.ChannelDeliveryLog) error
}
