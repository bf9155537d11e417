package feedparse

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kybuzz/internal/domain/entity"
)

// FacebookPageParser implements Parser for a county Facebook page mirrored
// through a public embed/export endpoint. Unlike ScrapeParser it never
// rejects an otherwise-empty extraction with an error — Facebook-sourced
// posts are exempt from the relevance/word-count gate (spec.md §4.3), so an
// empty result here is a normal "nothing new posted" outcome, not a failure.
type FacebookPageParser struct{}

func (p *FacebookPageParser) Parse(ctx context.Context, feed *entity.Feed, body []byte) ([]RawItem, error) {
	cfg := feed.ScraperConfig
	if cfg == nil || cfg.ItemSelector == "" {
		return nil, fmt.Errorf("feedparse: facebook: feed %s has no scraper_config.item_selector", feed.ID)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feedparse: facebook: parse html: %w", err)
	}

	var items []RawItem
	doc.Find(cfg.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		link := selectorHref(sel, cfg.LinkSelector)
		if link == "" {
			return
		}
		text := strings.TrimSpace(selectorText(sel, cfg.SummarySelector))
		title := strings.TrimSpace(selectorText(sel, cfg.TitleSelector))
		if title == "" {
			title = firstLine(text)
		}

		items = append(items, RawItem{
			Title:       title,
			URL:         makeAbsoluteURL(link, cfg.URLPrefix),
			Summary:     text,
			ImageURL:    selectorSrc(sel, cfg.ImageSelector),
			PublishedAt: parseDate(strings.TrimSpace(selectorText(sel, cfg.DateSelector)), cfg.DateFormat),
		})
	})

	return items, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
