// Package calendar implements the School Calendar Sync (C15): for each of
// Kentucky's county districts, probe a handful of conventional ICS paths
// until one returns a calendar body, then parse and upsert its events.
// Probing uses gocolly/colly (the scraping stack pack repo
// Saul-Punybz-folio-pr uses for its own rate-limited collector) rather than
// a plain http.Client, so the per-host candidate-path retries get the same
// respectful-crawling defaults (UA, single collector per district) the
// pack's own scraper carries.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"kybuzz/internal/enrich/location"
	"kybuzz/internal/repository"
)

// politeDelay is spec.md §4.15's "200ms polite delay between districts."
const politeDelay = 200 * time.Millisecond

// maxEventAge is spec.md §4.15's "skip events older than 90 days," applied
// both to events parsed out of a feed and to the DeleteOlderThan sweep run
// after every sync.
const maxEventAge = 90 * 24 * time.Hour

// candidatePaths are tried in order against each district host until one
// response contains a VCALENDAR body.
var candidatePaths = []string{
	"/calendar.ics",
	"/ical.ics",
	"/cal.ics",
	"/events.ics",
	"/calendars/district.ics",
}

// probeTimeout bounds a single candidate-path fetch.
const probeTimeout = 15 * time.Second

// Syncer probes every county district's ICS feed and upserts its events.
type Syncer struct {
	Events    repository.SchoolEventRepository
	UserAgent string

	// fetch performs one candidate-path GET; nil means fetchViaColly.
	// Overridable in tests so a Syncer.Run pass can be exercised without
	// reaching the network, mirroring the teacher's nil-checked optional
	// dependency idiom (fetch.Service.ContentFetcher).
	fetch func(ctx context.Context, candidateURL string) (body []byte, statusCode int, err error)

	// skipPoliteDelay disables the inter-district pacing. Set by tests so
	// a full-county Run doesn't take minutes; production Syncers always
	// leave this false.
	skipPoliteDelay bool
}

// RunStats summarizes one Syncer.Run pass.
type RunStats struct {
	DistrictsProbed int
	DistrictsFound  int
	EventsUpserted  int
	EventsDeleted   int
}

// Run probes every county's district host in turn, upserts the events it
// finds, then deletes events older than maxEventAge.
func (s *Syncer) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	counties := location.AllCounties()

	for i, county := range counties {
		stats.DistrictsProbed++
		body, sourceURL, ok := s.probe(ctx, county)
		if ok {
			events, err := parseICS(body, county, sourceURL)
			if err != nil {
				slog.Warn("calendar: parse ics failed", slog.String("county", county), slog.Any("error", err))
			} else {
				stats.DistrictsFound++
				for _, ev := range events {
					if time.Since(ev.StartAt) > maxEventAge {
						continue
					}
					if err := s.Events.Upsert(ctx, ev); err != nil {
						slog.Warn("calendar: upsert event failed", slog.String("county", county), slog.Any("error", err))
						continue
					}
					stats.EventsUpserted++
				}
			}
		}

		if i < len(counties)-1 && !s.skipPoliteDelay {
			select {
			case <-time.After(politeDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	deleted, err := s.Events.DeleteOlderThan(ctx, time.Now().Add(-maxEventAge))
	if err != nil {
		return stats, fmt.Errorf("calendar: delete older than: %w", err)
	}
	stats.EventsDeleted = deleted

	return stats, nil
}

// probe tries every candidatePaths entry against county's district host in
// order, returning the first response body containing BEGIN:VCALENDAR.
func (s *Syncer) probe(ctx context.Context, county string) (body []byte, sourceURL string, ok bool) {
	host := districtHost(county)

	fetch := s.fetch
	if fetch == nil {
		fetch = s.fetchViaColly
	}

	for _, path := range candidatePaths {
		candidateURL := "https://" + host + path
		respBody, status, err := fetch(ctx, candidateURL)
		if err != nil {
			continue
		}
		if status < 200 || status >= 300 {
			continue
		}
		if bytes.Contains(respBody, []byte("BEGIN:VCALENDAR")) {
			return respBody, candidateURL, true
		}
	}
	return nil, "", false
}

// fetchViaColly performs one candidate-path GET through a fresh collector
// scoped to this call, so one bad candidate path's collector state never
// bleeds into the next.
func (s *Syncer) fetchViaColly(ctx context.Context, candidateURL string) ([]byte, int, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent()),
		colly.AllowURLRevisit(),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       50 * time.Millisecond,
	})
	c.SetRequestTimeout(probeTimeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/calendar, */*")
	})

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		statusCode = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(candidateURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-done:
	}

	if fetchErr != nil {
		return nil, statusCode, fetchErr
	}
	return body, statusCode, nil
}

func (s *Syncer) userAgent() string {
	if s.UserAgent != "" {
		return s.UserAgent
	}
	return "KYBuzzBot/1.0 (+https://kybuzz.example/bot)"
}

// districtHost derives a deterministic hostname for county's school
// district. No registry of real Kentucky district domains is available in
// the pack or spec.md, so this synthesizes the common `<slug>.kyschools.us`
// pattern many Kentucky districts actually use; a production deployment
// would overlay a real per-county hostname table here without changing any
// other part of Syncer.
func districtHost(county string) string {
	slug := strings.ToLower(strings.ReplaceAll(county, " ", ""))
	return slug + ".kyschools.us"
}
