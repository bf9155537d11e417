package feedparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kybuzz/internal/domain/entity"
)

// ScrapeParser implements Parser for sites whose articles can only be
// located by CSS selector, not RSS. It generalizes the teacher's three
// page-shape-specific scrapers (webflow.go/nextjs.go/remix.go) into a single
// selector-map-driven implementation keyed by each Feed's ScraperConfig —
// the selectors are data (feeds.scraper_config), not code, so one parser
// covers every page shape a feed's config describes.
type ScrapeParser struct{}

func (p *ScrapeParser) Parse(ctx context.Context, feed *entity.Feed, body []byte) ([]RawItem, error) {
	cfg := feed.ScraperConfig
	if cfg == nil {
		return nil, errors.New("feedparse: scrape: feed has no scraper_config")
	}
	if cfg.ItemSelector == "" {
		return nil, errors.New("feedparse: scrape: scraper_config.item_selector is required")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feedparse: scrape: parse html: %w", err)
	}

	var items []RawItem
	doc.Find(cfg.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(selectorText(sel, cfg.TitleSelector))
		if title == "" {
			slog.Debug("feedparse: scrape: skipping item with empty title",
				slog.String("feed_id", feed.ID), slog.Int("index", i))
			return
		}

		link := selectorHref(sel, cfg.LinkSelector)
		if link == "" {
			slog.Debug("feedparse: scrape: skipping item with empty link",
				slog.String("feed_id", feed.ID), slog.Int("index", i))
			return
		}
		link = makeAbsoluteURL(link, cfg.URLPrefix)

		dateStr := strings.TrimSpace(selectorText(sel, cfg.DateSelector))
		publishedAt := parseDate(dateStr, cfg.DateFormat)

		imageURL := selectorSrc(sel, cfg.ImageSelector)

		items = append(items, RawItem{
			Title:       title,
			URL:         link,
			Summary:     strings.TrimSpace(selectorText(sel, cfg.SummarySelector)),
			ImageURL:    imageURL,
			PublishedAt: publishedAt,
		})
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("feedparse: scrape: no items matched selector %q", cfg.ItemSelector)
	}
	return items, nil
}

func selectorText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return sel.Find(selector).First().Text()
}

func selectorHref(sel *goquery.Selection, selector string) string {
	target := sel
	if selector != "" {
		target = sel.Find(selector).First()
	}
	if href, ok := target.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

func selectorSrc(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	if src, ok := sel.Find(selector).First().Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

// makeAbsoluteURL joins a relative href onto prefix, leaving already-absolute
// URLs untouched.
func makeAbsoluteURL(href, prefix string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if prefix == "" {
		return href
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(href, "/")
}

// parseDate parses dateStr with format, falling back through a handful of
// common layouts, and finally to nil (meaning "unknown" rather than "now" —
// the Orchestrator is responsible for deciding a default, not the parser).
func parseDate(dateStr, format string) *time.Time {
	if dateStr == "" {
		return nil
	}
	layouts := []string{"2006-01-02", time.RFC3339, "Jan 2, 2006", "January 2, 2006"}
	if format != "" {
		layouts = append([]string{format}, layouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return &t
		}
	}
	slog.Warn("feedparse: scrape: unparseable date", slog.String("raw", dateStr))
	return nil
}
