// Package enrich implements the Enrichment Worker (C10): a bounded pool
// that drains the pending IngestionQueue, running each item through body
// fetch, paywall detection, dedup, breaking classification, location
// re-tagging, bill linking, and summarization before marking it done.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/billlink"
	"kybuzz/internal/enrich/breaking"
	"kybuzz/internal/enrich/dedup"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/enrich/paywall"
	"kybuzz/internal/infra/summarizer"
	"kybuzz/internal/repository"
)

// Config bounds one Worker pass.
type Config struct {
	BatchSize   int
	Concurrency int
}

// DefaultConfig matches spec.md §4.10's stated defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 10, Concurrency: 3}
}

const minEffectiveBodyWords = 50

// BreakingAlerter is notified when an item's breaking classification sets
// is_breaking, per spec.md §4.10 step 11. Implemented by the Alerting
// usecase; nil-safe so the worker runs standalone before that package
// exists or when alerting is disabled.
type BreakingAlerter interface {
	NotifyBreaking(ctx context.Context, item *entity.Item) error
}

// Worker drains the IngestionQueue in bounded batches.
type Worker struct {
	Items      repository.ItemRepository
	Queue      repository.QueueRepository
	Bills      repository.BillRepository
	Body       *BodyFetcher
	DedupStore dedup.Store
	Summarizer summarizer.Summarizer // nil means no AI credentials configured
	Alerter    BreakingAlerter       // nil disables step 11
	Config     Config
}

// RunStats summarizes one Worker.Run pass.
type RunStats struct {
	Recovered int
	Claimed   int
	Done      int
	Rejected  int
	Failed    int
}

// Run recovers stuck rows, claims up to Config.BatchSize pending rows, and
// processes them with Config.Concurrency workers.
func (w *Worker) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	recovered, err := w.Queue.RecoverStuck(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("enrich: recover stuck: %w", err)
	}
	stats.Recovered = recovered

	batchSize := w.Config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	rows, err := w.Queue.ClaimBatch(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("enrich: claim batch: %w", err)
	}
	stats.Claimed = len(rows)

	concurrency := w.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	type outcome struct {
		status entity.QueueStatus
	}
	outcomes := make([]outcome, len(rows))

	for i, row := range rows {
		i, row := i, row
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			status, procErr := w.processOne(egCtx, row.ItemID)
			if procErr != nil {
				slog.Warn("enrich: item processing failed",
					slog.String("item_id", row.ItemID), slog.Any("error", procErr))
			}
			outcomes[i] = outcome{status: status}
			return nil
		})
	}
	_ = eg.Wait()

	for _, oc := range outcomes {
		switch oc.status {
		case entity.QueueStatusDone:
			stats.Done++
		case entity.QueueStatusRejectedShort:
			stats.Rejected++
		case entity.QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// processOne runs spec.md §4.10 steps 2-11 for one claimed item (step 1,
// the body_fetching transition and attempts increment, already happened in
// QueueRepository.ClaimBatch). It returns the terminal QueueStatus it set.
func (w *Worker) processOne(ctx context.Context, itemID string) (entity.QueueStatus, error) {
	item, err := w.Items.Get(ctx, itemID)
	if err != nil {
		return w.fail(ctx, itemID, fmt.Errorf("load item: %w", err))
	}
	if item == nil {
		return w.fail(ctx, itemID, fmt.Errorf("item %s vanished from queue", itemID))
	}

	var rawHTML string
	if !item.IsFacebook {
		body, html, fetchErr := w.Body.FetchBody(ctx, item.URL)
		if fetchErr != nil {
			slog.Warn("enrich: body fetch failed, falling back to feed content",
				slog.String("item_id", itemID), slog.Any("error", fetchErr))
		} else {
			item.BodyText = body
			rawHTML = html
		}
	}

	effectiveBody := item.BodyText
	if effectiveBody == "" {
		effectiveBody = item.Content
	}
	if effectiveBody == "" {
		effectiveBody = item.Summary
	}
	item.WordCount = countWords(effectiveBody)

	if !item.IsFacebook && item.WordCount < minEffectiveBodyWords {
		if err := w.Items.ReplaceCategories(ctx, itemID, nil); err != nil {
			slog.Warn("enrich: clear categories on rejection failed", slog.String("item_id", itemID), slog.Any("error", err))
		}
		if err := w.Items.UpdateEnrichment(ctx, item); err != nil {
			slog.Warn("enrich: persist rejected item failed", slog.String("item_id", itemID), slog.Any("error", err))
		}
		if err := w.Queue.SetStatus(ctx, itemID, entity.QueueStatusRejectedShort, ""); err != nil {
			return entity.QueueStatusRejectedShort, fmt.Errorf("set status rejected_short: %w", err)
		}
		return entity.QueueStatusRejectedShort, nil
	}

	pwResult := paywall.Score(paywall.Input{
		Domain:    domainOf(item.URL),
		RawHTML:   rawHTML,
		BodyText:  effectiveBody,
		WordCount: item.WordCount,
	})
	item.IsPaywalled = pwResult.IsPaywalled
	item.PaywallConfidence = pwResult.Confidence
	item.PaywallSignals = pwResult.Signals

	sig := dedup.Compute(item.Title, item.Summary)
	item.MinHash = sig.String()
	// Persist the signature before the lookup: two items claimed in the
	// same batch must each see the other's signature, or neither gets
	// flagged as a duplicate of the other (spec's store-before-lookup
	// ordering for dedup).
	if err := w.Items.UpdateMinHash(ctx, itemID, item.MinHash); err != nil {
		slog.Warn("enrich: persist minhash before dedup lookup failed", slog.String("item_id", itemID), slog.Any("error", err))
	}
	match, dupErr := dedup.FindDuplicate(ctx, w.DedupStore, itemID, sig)
	if dupErr != nil {
		slog.Warn("enrich: dedup lookup failed", slog.String("item_id", itemID), slog.Any("error", dupErr))
	} else if match != nil {
		item.IsDuplicate = true
		item.CanonicalItemID = match.CanonicalItemID
		if item.IsPaywalled {
			canonical, getErr := w.Items.Get(ctx, match.CanonicalItemID)
			if getErr == nil && canonical != nil && !canonical.IsPaywalled {
				item.PaywallDeprioritized = true
			}
		}
	}

	breakingResult := breaking.Classify(item.Title, effectiveBody, time.Now())
	item.AlertLevel = breakingResult.AlertLevel
	item.IsBreaking = breakingResult.IsBreaking
	item.Sentiment = breakingResult.Sentiment
	item.BreakingExpiresAt = breakingResult.ExpiresAt

	// No DefaultCounty here: that is a Feed-level fallback the Orchestrator
	// already applied on ingestion; a re-tag on full body relies on the
	// body text itself carrying a real signal.
	tags := location.Tag(location.Input{
		Title:       item.Title,
		BodyText:    effectiveBody,
		RegionScope: item.RegionScope,
		IsFacebook:  item.IsFacebook,
	})
	if len(tags) > 0 {
		locations := make([]entity.ItemLocation, 0, len(tags))
		for _, t := range tags {
			locations = append(locations, entity.ItemLocation{ItemID: itemID, StateCode: t.StateCode, County: t.County})
		}
		if err := w.Items.ReplaceLocations(ctx, itemID, locations); err != nil {
			slog.Warn("enrich: replace locations failed", slog.String("item_id", itemID), slog.Any("error", err))
		}
	}

	var categories []string
	linkResult, linkErr := billlink.Link(ctx, w.Bills, itemID, item.Title+" "+effectiveBody)
	if linkErr != nil {
		slog.Warn("enrich: bill linking failed", slog.String("item_id", itemID), slog.Any("error", linkErr))
	} else if linkResult.AddCategory {
		categories = append(categories, billlink.LegislatureCategory)
	}
	if err := w.Items.ReplaceCategories(ctx, itemID, categories); err != nil {
		slog.Warn("enrich: replace categories failed", slog.String("item_id", itemID), slog.Any("error", err))
	}

	if w.Summarizer != nil {
		summary, meta, sumErr := w.Summarizer.Summarize(ctx, effectiveBody)
		if sumErr != nil {
			if err := w.Items.UpdateEnrichment(ctx, item); err != nil {
				slog.Warn("enrich: persist item before fail failed", slog.String("item_id", itemID), slog.Any("error", err))
			}
			lastErr := truncateError(sumErr, 500)
			if err := w.Queue.SetStatus(ctx, itemID, entity.QueueStatusFailed, lastErr); err != nil {
				return entity.QueueStatusFailed, fmt.Errorf("set status failed: %w", err)
			}
			return entity.QueueStatusFailed, fmt.Errorf("summarize: %w", sumErr)
		}
		item.AISummary = summary
		item.AIMetaDescription = meta
	}

	if err := w.Items.UpdateEnrichment(ctx, item); err != nil {
		return w.fail(ctx, itemID, fmt.Errorf("persist enrichment: %w", err))
	}
	if err := w.Queue.SetStatus(ctx, itemID, entity.QueueStatusDone, ""); err != nil {
		return entity.QueueStatusDone, fmt.Errorf("set status done: %w", err)
	}

	if item.IsBreaking && w.Alerter != nil {
		if err := w.Alerter.NotifyBreaking(ctx, item); err != nil {
			slog.Warn("enrich: breaking alert failed", slog.String("item_id", itemID), slog.Any("error", err))
		}
	}

	return entity.QueueStatusDone, nil
}

func (w *Worker) fail(ctx context.Context, itemID string, cause error) (entity.QueueStatus, error) {
	lastErr := truncateError(cause, 500)
	if err := w.Queue.SetStatus(ctx, itemID, entity.QueueStatusFailed, lastErr); err != nil {
		slog.Warn("enrich: set status failed after error", slog.String("item_id", itemID), slog.Any("error", err))
	}
	return entity.QueueStatusFailed, cause
}

func truncateError(err error, max int) string {
	s := err.Error()
	if len(s) > max {
		return s[:max]
	}
	return s
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
