package httpfetch

import (
	"context"
	"net/url"
	"time"

	"kybuzz/pkg/ratelimit"
)

// politeLimit and politeWindow bound how often the Client will hit any one
// host, independent of a call's circuit breaker profile — a friendly
// default so a burst of enqueued articles from the same publisher does not
// read like a load test.
const (
	politeLimit  = 1
	politeWindow = 2 * time.Second
)

// politeLimiter paces requests per host using pkg/ratelimit's sliding
// window algorithm over a single in-memory bucket shared by every call a
// Client makes.
type politeLimiter struct {
	algo  *ratelimit.SlidingWindowAlgorithm
	store *ratelimit.InMemoryRateLimitStore
}

func newPoliteLimiter() *politeLimiter {
	return &politeLimiter{
		algo:  ratelimit.NewSlidingWindowAlgorithm(nil),
		store: ratelimit.NewInMemoryRateLimitStore(ratelimit.DefaultInMemoryStoreConfig()),
	}
}

// wait blocks until urlStr's host is next allowed a request, or ctx is
// done. A lookup failure fails open — pacing is best-effort and must never
// be the reason a fetch never happens.
func (p *politeLimiter) wait(ctx context.Context, urlStr string) error {
	if p == nil {
		return nil
	}
	host := hostOf(urlStr)
	if host == "" {
		return nil
	}
	for {
		decision, err := p.algo.IsAllowed(ctx, host, p.store, politeLimit, politeWindow)
		if err != nil {
			return nil
		}
		if decision.Allowed {
			return nil
		}
		select {
		case <-time.After(decision.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
