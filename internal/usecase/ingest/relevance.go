package ingest

import (
	"context"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/usecase/enrich"
)

// checkRelevance implements spec.md §4.9 step 5's 3-tier KY-relevance gate
// for region_scope='ky' non-Facebook feeds: title strong signal, then body
// strong signal, then a readable-body fallback that fetches the article.
// "Strong signal" is the same county/KY-context detection the Location
// Tagger uses — a feed item whose title or body produces no location tags
// at all is, by construction, not identifiably about Kentucky.
//
// articleFetcher may be nil (e.g. in tests); a nil fetcher simply skips tier
// 3 and treats the item as irrelevant if tiers 1-2 found nothing.
func checkRelevance(ctx context.Context, feed *entity.Feed, title, summary, content, url string, articleFetcher *enrich.BodyFetcher) bool {
	defaultCounty := ""
	if feed.DefaultCounty != nil {
		defaultCounty = *feed.DefaultCounty
	}

	// Tier 1: title alone.
	if len(location.Tag(location.Input{
		Title:         title,
		RegionScope:   feed.RegionScope,
		DefaultCounty: defaultCounty,
	})) > 0 {
		return true
	}

	// Tier 2: RSS-supplied summary/content as body.
	body := summary
	if content != "" {
		body = content
	}
	if len(location.Tag(location.Input{
		Title:         title,
		BodyText:      body,
		RegionScope:   feed.RegionScope,
		DefaultCounty: defaultCounty,
	})) > 0 {
		return true
	}

	// Tier 3: fetch the article and re-check against the full readable body.
	if articleFetcher == nil {
		return false
	}
	fullBody, _, err := articleFetcher.FetchBody(ctx, url)
	if err != nil {
		// A fetch failure here is not a pipeline error: the item simply
		// fails the relevance gate for lack of a readable body.
		return false
	}
	tags := location.Tag(location.Input{
		Title:         title,
		BodyText:      fullBody,
		RegionScope:   feed.RegionScope,
		DefaultCounty: defaultCounty,
	})
	return len(tags) > 0
}
