package entity

import "time"

// QueueStatus is the lifecycle state of an IngestionQueue row.
type QueueStatus string

const (
	QueueStatusPending        QueueStatus = "pending"
	QueueStatusBodyFetching   QueueStatus = "body_fetching"
	QueueStatusSummarizing    QueueStatus = "summarizing"
	QueueStatusDone           QueueStatus = "done"
	QueueStatusFailed         QueueStatus = "failed"
	QueueStatusRejectedShort  QueueStatus = "rejected_short"
)

// IsTerminal reports whether the status ends the item's journey through the
// Enrichment Worker (no further transitions expected).
func (s QueueStatus) IsTerminal() bool {
	switch s {
	case QueueStatusDone, QueueStatusFailed, QueueStatusRejectedShort:
		return true
	default:
		return false
	}
}

// MaxEnrichmentAttempts bounds retries before a queue row becomes
// permanently QueueStatusFailed (spec §7).
const MaxEnrichmentAttempts = 3

// UnstickWindow is how long a row may sit in a non-terminal status before
// the Enrichment Worker's recovery pass reverts it to pending (spec §4.10).
const UnstickWindow = 10 * time.Minute

// IngestionQueue is the restart-safe work queue for the Enrichment Worker.
// A row appears when an Item is newly upserted by the Orchestrator.
type IngestionQueue struct {
	ItemID    string
	Status    QueueStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NeedsRecovery reports whether this row is stuck mid-pipeline and should be
// reverted to pending by the recovery sweep.
func (q *IngestionQueue) NeedsRecovery(now time.Time) bool {
	if q.Status != QueueStatusBodyFetching && q.Status != QueueStatusSummarizing {
		return false
	}
	if q.Attempts >= MaxEnrichmentAttempts {
		return false
	}
	return now.Sub(q.UpdatedAt) >= UnstickWindow
}
