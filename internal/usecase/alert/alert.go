// Package alert implements the Alerting usecase (C12): coverage-gap and
// feed-failure detection with a per-key cooldown ledger, plus the breaking
// news dispatcher the Enrichment Worker (C10) calls directly. It
// generalizes the teacher's notify.Service fan-out-to-channels shape to
// these three alert sources, dispatching over internal/infra/notifier's
// Channel abstraction instead of the teacher's Discord/Slack pair.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/infra/notifier"
	"kybuzz/internal/repository"
)

// coverageGapWindow is the lookback spec.md §4.12 uses to decide whether a
// county has "no coverage."
const coverageGapWindow = 48 * time.Hour

// feedFailureWindow and feedFailureThreshold implement spec.md §4.12's
// feed-failure detector: "feeds with >= 3 errors in the last 3h."
const (
	feedFailureWindow    = 3 * time.Hour
	feedFailureThreshold = 3
)

// maxGapCountiesInKey bounds how many counties spec.md §4.12's
// coverage-gap alert key names, keeping the cooldown key and the rendered
// alert body both short when many counties go dark at once.
const maxGapCountiesInKey = 5

// DefaultCooldown matches spec.md §4.12's default when ALERT_COOLDOWN_HOURS
// is unset.
const DefaultCooldown = 6 * time.Hour

// Service runs the coverage-gap and feed-failure detectors and dispatches
// breaking-news notifications, all gated by the same cooldown ledger.
type Service struct {
	Items    repository.ItemRepository
	Feeds    repository.FeedRepository
	Runs     repository.RunRepository
	Alerts   repository.AlertRepository
	Channels []notifier.Channel

	// Cooldown is the minimum interval between two fires of the same
	// alert_key. Defaults to DefaultCooldown if zero.
	Cooldown time.Duration
	// OnBreaking gates whether NotifyBreaking dispatches at all, mapped
	// from ALERT_ON_BREAKING.
	OnBreaking bool
}

func (s *Service) cooldown() time.Duration {
	if s.Cooldown <= 0 {
		return DefaultCooldown
	}
	return s.Cooldown
}

// RunStats summarizes one coverage/feed-failure detector pass.
type RunStats struct {
	CoverageGapFired bool
	FeedFailureFired bool
}

// Run executes both detectors once, per spec.md §4.11's coverage-alerts
// cron task. Each detector's failure to fire (e.g. cooldown still active)
// is not an error; only infrastructure failures are returned.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	fired, err := s.checkCoverageGap(ctx)
	if err != nil {
		return stats, fmt.Errorf("alert: coverage gap: %w", err)
	}
	stats.CoverageGapFired = fired

	fired, err = s.checkFeedFailures(ctx)
	if err != nil {
		return stats, fmt.Errorf("alert: feed failures: %w", err)
	}
	stats.FeedFailureFired = fired

	return stats, nil
}

// checkCoverageGap implements spec.md §4.12's coverage-gap detector.
func (s *Service) checkCoverageGap(ctx context.Context) (bool, error) {
	since := time.Now().Add(-coverageGapWindow)
	covered, err := s.Items.CountiesWithRecentItems(ctx, since)
	if err != nil {
		return false, fmt.Errorf("counties with recent items: %w", err)
	}

	var gapped []string
	for _, county := range location.AllCounties() {
		if !covered[county] {
			gapped = append(gapped, county)
		}
	}
	if len(gapped) == 0 {
		return false, nil
	}
	sort.Strings(gapped)

	keyCounties := gapped
	if len(keyCounties) > maxGapCountiesInKey {
		keyCounties = keyCounties[:maxGapCountiesInKey]
	}
	alertKey := "coverage-gap-" + strings.Join(keyCounties, ",")

	fired, err := s.fireIfDue(ctx, alertKey, func() notifier.Message {
		title := fmt.Sprintf("Coverage gap: %d counties with no coverage in %d hours", len(gapped), int(coverageGapWindow.Hours()))
		body := "Counties: " + strings.Join(gapped, ", ")
		return notifier.Message{AlertKey: alertKey, Title: title, Body: body, At: time.Now()}
	})
	if err != nil {
		return false, err
	}
	return fired, nil
}

// checkFeedFailures implements spec.md §4.12's feed-failure detector.
func (s *Service) checkFeedFailures(ctx context.Context) (bool, error) {
	feeds, err := s.Feeds.ListAll(ctx)
	if err != nil {
		return false, fmt.Errorf("list all feeds: %w", err)
	}

	since := time.Now().Add(-feedFailureWindow)
	var failing []string
	for _, f := range feeds {
		count, err := s.Runs.RecentErrorCount(ctx, f.ID, since)
		if err != nil {
			slog.Warn("alert: recent error count failed", slog.String("feed_id", f.ID), slog.Any("error", err))
			continue
		}
		if count >= feedFailureThreshold {
			failing = append(failing, f.ID)
		}
	}
	if len(failing) == 0 {
		return false, nil
	}
	sort.Strings(failing)
	alertKey := "feed-failures-" + strings.Join(failing, ",")

	fired, err := s.fireIfDue(ctx, alertKey, func() notifier.Message {
		title := fmt.Sprintf("%d feeds failing repeatedly in the last %d hours", len(failing), int(feedFailureWindow.Hours()))
		body := "Feed IDs: " + strings.Join(failing, ", ")
		return notifier.Message{AlertKey: alertKey, Title: title, Body: body, At: time.Now()}
	})
	if err != nil {
		return false, err
	}
	return fired, nil
}

// NotifyBreaking implements enrich.BreakingAlerter, dispatched by the
// Enrichment Worker immediately after it sets is_breaking (spec.md §4.10
// step 11 / §4.12). Fires at most once per item via the same cooldown
// ledger as the other two detectors.
func (s *Service) NotifyBreaking(ctx context.Context, item *entity.Item) error {
	if !s.OnBreaking {
		return nil
	}
	alertKey := "breaking-" + item.ID
	_, err := s.fireIfDue(ctx, alertKey, func() notifier.Message {
		title := "Breaking: " + item.Title
		body := item.AISummary
		if body == "" {
			body = item.Summary
		}
		return notifier.Message{AlertKey: alertKey, Title: title, Body: body, URL: item.URL, At: time.Now()}
	})
	return err
}

// fireIfDue checks the cooldown ledger for alertKey, and if due, records
// the fire and dispatches build() to every enabled channel in parallel,
// best-effort.
func (s *Service) fireIfDue(ctx context.Context, alertKey string, build func() notifier.Message) (bool, error) {
	lastFired, found, err := s.Alerts.LastFired(ctx, alertKey)
	if err != nil {
		return false, fmt.Errorf("last fired: %w", err)
	}
	if found && time.Since(lastFired) < s.cooldown() {
		return false, nil
	}

	if err := s.Alerts.RecordFired(ctx, alertKey, time.Now()); err != nil {
		return false, fmt.Errorf("record fired: %w", err)
	}

	msg := build()
	s.dispatch(ctx, msg)
	return true, nil
}

// dispatch sends msg to every enabled channel in parallel. A channel
// failure is logged and recorded to the delivery audit log, never raised —
// "channel failures log but never raise" (spec.md §4.12).
func (s *Service) dispatch(ctx context.Context, msg notifier.Message) {
	done := make(chan struct{}, len(s.Channels))
	for _, ch := range s.Channels {
		ch := ch
		if !ch.IsEnabled() {
			done <- struct{}{}
			continue
		}
		go func() {
			defer func() { done <- struct{}{} }()
			err := ch.Send(ctx, msg)
			logEntry := entity.ChannelDeliveryLog{
				Channel:  ch.Name(),
				AlertKey: msg.AlertKey,
				Success:  err == nil,
				At:       time.Now(),
			}
			if err != nil {
				logEntry.Error = err.Error()
				slog.Warn("alert: channel delivery failed",
					slog.String("channel", ch.Name()), slog.String("alert_key", msg.AlertKey), slog.Any("error", err))
			}
			if recErr := s.Alerts.RecordDelivery(context.WithoutCancel(ctx), logEntry); recErr != nil {
				slog.Warn("alert: record delivery failed", slog.String("channel", ch.Name()), slog.Any("error", recErr))
			}
		}()
	}
	for range s.Channels {
		<-done
	}
}
