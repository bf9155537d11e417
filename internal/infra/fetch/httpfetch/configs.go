package httpfetch

import (
	"time"

	"kybuzz/internal/resilience/circuitbreaker"
)

// FeedFetchConfig is the circuit breaker profile for polling RSS/Atom/scrape
// sources — tolerant of occasional flaky feeds, since a single feed outage
// should not blind the rest of the crawl.
func FeedFetchConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "feed-fetch",
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.7,
		MinRequests:      10,
	}
}

// ArticleFetchConfig is the circuit breaker profile for fetching individual
// article bodies during enrichment. Tighter than feed fetching because a
// broken publisher site should stop hammering the Enrichment Worker quickly.
func ArticleFetchConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "article-fetch",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          90 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// ICSFetchConfig is the circuit breaker profile for school calendar ICS
// downloads — low request volume, so the breaker trips on fewer samples.
func ICSFetchConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "ics-fetch",
		MaxRequests:      2,
		Interval:         300 * time.Second,
		Timeout:          300 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      3,
	}
}

// WebhookConfig is the circuit breaker profile for outbound alert delivery
// (Slack/Postmark/Mailgun webhooks) — fails fast so a dead channel does not
// stall the alert dispatch of every other channel.
func WebhookConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "webhook-fetch",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      4,
	}
}
