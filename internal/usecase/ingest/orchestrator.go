// Package ingest implements the Ingestion Orchestrator (C9): one pass over
// every enabled Feed that fetches, parses, dedupes-by-hash, gates on KY
// relevance, tags locations, and enqueues items for the Enrichment Worker.
// It generalizes the teacher's fetch.Service.CrawlAllSources/
// processSingleSource two-method shape to the feed/item/location model here.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/infra/fetch/httpfetch"
	"kybuzz/internal/infra/feedparse"
	"kybuzz/internal/repository"
	"kybuzz/internal/resilience/retry"
	"kybuzz/internal/usecase/enrich"
)

// Config bounds one Orchestrator run, mapped from the MAX_FEEDS_PER_RUN /
// MAX_INGEST_ITEMS_PER_FEED environment variables (spec.md §6).
type Config struct {
	MaxFeedsPerRun  int
	MaxItemsPerFeed int
	FeedConcurrency int
}

// DefaultConfig matches spec.md §4.9's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxFeedsPerRun:  200,
		MaxItemsPerFeed: 100,
		FeedConcurrency: 4,
	}
}

// Orchestrator runs one ingestion pass per invocation of Run.
type Orchestrator struct {
	Feeds  repository.FeedRepository
	Items  repository.ItemRepository
	Queue  repository.QueueRepository
	Runs   repository.RunRepository
	Fetch  *httpfetch.Client
	Body   *enrich.BodyFetcher // used only by the tier-3 relevance fallback; may be nil
	Config Config
}

// RunStats summarizes one Orchestrator.Run invocation.
type RunStats struct {
	FeedsProcessed int
	FeedsFailed    int
	ItemsSeen      int
	ItemsUpserted  int
}

// Run loads up to Config.MaxFeedsPerRun enabled feeds, oldest-checked-first,
// and processes each, per spec.md §4.9. A single feed's failure never aborts
// the run; it is recorded as a FetchError and the run continues.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	run := &entity.FetchRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Status:    entity.RunStatusOK,
		Source:    "orchestrator",
	}
	if err := o.Runs.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("ingest: start run: %w", err)
	}

	feeds, err := o.Feeds.ListEnabled(ctx, o.Config.MaxFeedsPerRun)
	if err != nil {
		o.finishRun(ctx, run, entity.RunStatusFailed)
		return nil, fmt.Errorf("ingest: list enabled feeds: %w", err)
	}

	concurrency := o.Config.FeedConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	stats := &RunStats{}
	sem := make(chan struct{}, concurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	type feedOutcome struct {
		seen, upserted int
		failed         bool
	}
	outcomes := make([]feedOutcome, len(feeds))

	for i, feed := range feeds {
		i, feed := i, feed
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			seen, upserted, procErr := o.processFeed(egCtx, run.ID, feed)
			outcomes[i] = feedOutcome{seen: seen, upserted: upserted, failed: procErr != nil}
			if procErr != nil {
				slog.Warn("ingest: feed processing failed",
					slog.String("feed_id", feed.ID), slog.Any("error", procErr))
				_ = o.Runs.RecordFetchError(context.WithoutCancel(egCtx), &feed.ID, procErr.Error())
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		o.finishRun(ctx, run, entity.RunStatusFailed)
		return stats, err
	}

	for _, oc := range outcomes {
		stats.FeedsProcessed++
		stats.ItemsSeen += oc.seen
		stats.ItemsUpserted += oc.upserted
		if oc.failed {
			stats.FeedsFailed++
		}
	}

	o.finishRun(ctx, run, entity.RunStatusOK)
	return stats, nil
}

func (o *Orchestrator) finishRun(ctx context.Context, run *entity.FetchRun, status entity.RunStatus) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	if err := o.Runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("ingest: finish run failed", slog.String("run_id", run.ID), slog.Any("error", err))
	}
}

// processFeed executes spec.md §4.9's per-feed workflow and returns the
// number of items seen/upserted.
func (o *Orchestrator) processFeed(ctx context.Context, runID string, feed *entity.Feed) (seen, upserted int, err error) {
	start := time.Now()
	metric := entity.FeedRunMetric{RunID: runID, FeedID: feed.ID}
	defer func() {
		metric.DurationMS = time.Since(start).Milliseconds()
		metric.ItemsSeen = seen
		metric.ItemsUpserted = upserted
		if recErr := o.Runs.RecordFeedMetric(context.WithoutCancel(ctx), metric); recErr != nil {
			slog.Warn("ingest: record feed metric failed", slog.String("feed_id", feed.ID), slog.Any("error", recErr))
		}
	}()

	var etag, lastMod string
	if feed.ETag != nil {
		etag = *feed.ETag
	}
	if feed.LastModified != nil {
		lastMod = *feed.LastModified
	}

	var result httpfetch.Result
	retryErr := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
		var fetchErr error
		result, fetchErr = o.Fetch.Fetch(ctx, feed.URL, httpfetch.Options{
			ETag:         etag,
			LastModified: lastMod,
			Accept:       "application/rss+xml, application/atom+xml, text/html, */*",
			MaxBodyBytes: httpfetch.UnboundedBodyBytes,
		})
		return fetchErr
	})

	checkedAt := time.Now()
	if retryErr != nil {
		var newETag, newLastMod *string
		_ = o.Feeds.TouchValidators(context.WithoutCancel(ctx), feed.ID, newETag, newLastMod, checkedAt)
		metric.Status = entity.RunStatusError
		var httpErr *httpfetch.HTTPStatusError
		if errors.As(retryErr, &httpErr) {
			metric.HTTPStatus = httpErr.StatusCode
		}
		metric.ErrorMessage = retryErr.Error()
		return 0, 0, retryErr
	}

	newETag, newLastMod := ptrOrNil(result.ETag), ptrOrNil(result.LastModified)
	if err := o.Feeds.TouchValidators(ctx, feed.ID, newETag, newLastMod, checkedAt); err != nil {
		metric.Status = entity.RunStatusError
		metric.ErrorMessage = err.Error()
		return 0, 0, fmt.Errorf("touch validators: %w", err)
	}

	if result.Status == httpfetch.StatusNotModified || len(result.Body) == 0 {
		metric.Status = entity.RunStatusNotModified
		return 0, 0, nil
	}
	metric.Status = entity.RunStatusOK
	metric.HTTPStatus = result.HTTPStatus

	rawItems, err := feedparse.ForMode(feed.FetchMode).Parse(ctx, feed, result.Body)
	if err != nil {
		metric.Status = entity.RunStatusError
		metric.ErrorMessage = err.Error()
		return 0, 0, fmt.Errorf("parse feed: %w", err)
	}
	if len(rawItems) > o.Config.MaxItemsPerFeed {
		rawItems = rawItems[:o.Config.MaxItemsPerFeed]
	}
	seen = len(rawItems)

	for _, raw := range rawItems {
		ok, procErr := o.processItem(ctx, feed, raw)
		if procErr != nil {
			slog.Warn("ingest: item processing failed",
				slog.String("feed_id", feed.ID), slog.String("url", raw.URL), slog.Any("error", procErr))
			continue
		}
		if ok {
			upserted++
		}
	}
	return seen, upserted, nil
}

// processItem implements spec.md §4.9 steps 4-7 for a single parsed item.
func (o *Orchestrator) processItem(ctx context.Context, feed *entity.Feed, raw feedparse.RawItem) (bool, error) {
	canonicalURL, err := CanonicalizeURL(raw.URL)
	if err != nil {
		return false, fmt.Errorf("canonicalize url: %w", err)
	}
	itemID := DeriveID(canonicalURL, raw.GUID, raw.Title, raw.PublishedAt)
	hash := ComputeHash(raw.Title, raw.Summary, raw.Content, raw.ImageURL)

	storedHash, found, err := o.Items.GetByHash(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("get by hash: %w", err)
	}
	if found && storedHash == hash {
		// Unchanged re-ingestion: only ensure the FeedItem link exists.
		if err := o.Items.LinkFeed(ctx, feed.ID, itemID); err != nil {
			return false, fmt.Errorf("link feed: %w", err)
		}
		return false, nil
	}

	isFacebook := feed.FetchMode == entity.FetchModeFacebookPage
	item := &entity.Item{
		ID:          itemID,
		Title:       raw.Title,
		URL:         canonicalURL,
		GUID:        raw.GUID,
		Author:      raw.Author,
		RegionScope: feed.RegionScope,
		PublishedAt: raw.PublishedAt,
		FetchedAt:   time.Now(),
		Summary:     raw.Summary,
		Content:     raw.Content,
		ImageURL:    raw.ImageURL,
		Hash:        hash,
		IsFacebook:  isFacebook,
	}
	if err := item.Validate(); err != nil {
		return false, fmt.Errorf("validate item: %w", err)
	}
	if err := o.Items.Upsert(ctx, item); err != nil {
		return false, fmt.Errorf("upsert item: %w", err)
	}
	if err := o.Items.LinkFeed(ctx, feed.ID, itemID); err != nil {
		return false, fmt.Errorf("link feed: %w", err)
	}

	if feed.RegionScope == entity.RegionScopeKY && !isFacebook {
		if !checkRelevance(ctx, feed, raw.Title, raw.Summary, raw.Content, canonicalURL, o.Body) {
			if err := o.Items.UnlinkIfOrphaned(ctx, itemID); err != nil {
				return false, fmt.Errorf("unlink orphaned item: %w", err)
			}
			return false, nil
		}
	}

	defaultCounty := ""
	if feed.DefaultCounty != nil {
		defaultCounty = *feed.DefaultCounty
	}
	body := raw.Summary
	if raw.Content != "" {
		body = raw.Content
	}
	tags := location.Tag(location.Input{
		Title:         raw.Title,
		BodyText:      body,
		RegionScope:   feed.RegionScope,
		DefaultCounty: defaultCounty,
		IsFacebook:    isFacebook,
	})
	locations := make([]entity.ItemLocation, 0, len(tags))
	for _, t := range tags {
		locations = append(locations, entity.ItemLocation{ItemID: itemID, StateCode: t.StateCode, County: t.County})
	}
	if err := o.Items.ReplaceLocations(ctx, itemID, locations); err != nil {
		return false, fmt.Errorf("replace locations: %w", err)
	}

	if err := o.Queue.Enqueue(ctx, itemID); err != nil {
		return false, fmt.Errorf("enqueue item: %w", err)
	}
	return true, nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
