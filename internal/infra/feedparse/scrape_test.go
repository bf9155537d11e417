package feedparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
)

const sampleScrapeHTML = `
<html><body>
<div class="post">
  <a class="post-link" href="/news/bill-200">House passes HB 200</a>
  <span class="post-date">2026-01-15</span>
  <p class="post-summary">A short summary.</p>
</div>
<div class="post">
  <a class="post-link" href="https://example.com/news/other">Other story</a>
  <span class="post-date">2026-01-16</span>
</div>
</body></html>`

func scrapeFeed() *entity.Feed {
	return &entity.Feed{
		ID:        "f1",
		FetchMode: entity.FetchModeScrape,
		URL:       "https://example.com",
		ScraperConfig: &entity.ScraperConfig{
			ItemSelector:    ".post",
			TitleSelector:   ".post-link",
			LinkSelector:    ".post-link",
			SummarySelector: ".post-summary",
			DateSelector:    ".post-date",
			URLPrefix:       "https://example.com",
		},
	}
}

func TestScrapeParser_Parse(t *testing.T) {
	p := &ScrapeParser{}
	items, err := p.Parse(context.Background(), scrapeFeed(), []byte(sampleScrapeHTML))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "House passes HB 200", items[0].Title)
	assert.Equal(t, "https://example.com/news/bill-200", items[0].URL)
	assert.Equal(t, "A short summary.", items[0].Summary)
	assert.Equal(t, "https://example.com/news/other", items[1].URL)
}

func TestScrapeParser_Parse_NoConfig(t *testing.T) {
	p := &ScrapeParser{}
	feed := &entity.Feed{ID: "f1", FetchMode: entity.FetchModeScrape}
	_, err := p.Parse(context.Background(), feed, []byte(sampleScrapeHTML))
	assert.Error(t, err)
}

func TestScrapeParser_Parse_NoMatches(t *testing.T) {
	p := &ScrapeParser{}
	feed := scrapeFeed()
	feed.ScraperConfig.ItemSelector = ".nonexistent"
	_, err := p.Parse(context.Background(), feed, []byte(sampleScrapeHTML))
	assert.Error(t, err)
}
