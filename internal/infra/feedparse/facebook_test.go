package feedparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
)

const sampleFacebookHTML = `
<html><body>
<div class="fb-post">
  <a class="fb-link" href="/posts/123">School board meeting tonight at 7pm.
Agenda attached.</a>
  <span class="fb-date">2026-01-15</span>
</div>
</body></html>`

func TestFacebookPageParser_Parse(t *testing.T) {
	p := &FacebookPageParser{}
	feed := &entity.Feed{
		ID:        "f1",
		FetchMode: entity.FetchModeFacebookPage,
		ScraperConfig: &entity.ScraperConfig{
			ItemSelector:    ".fb-post",
			LinkSelector:    ".fb-link",
			SummarySelector: ".fb-link",
			DateSelector:    ".fb-date",
			URLPrefix:       "https://facebook.com",
		},
	}

	items, err := p.Parse(context.Background(), feed, []byte(sampleFacebookHTML))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://facebook.com/posts/123", items[0].URL)
	assert.Contains(t, items[0].Title, "School board meeting")
}

func TestFacebookPageParser_Parse_EmptyIsNotError(t *testing.T) {
	p := &FacebookPageParser{}
	feed := &entity.Feed{
		ID:            "f1",
		ScraperConfig: &entity.ScraperConfig{ItemSelector: ".nonexistent"},
	}
	items, err := p.Parse(context.Background(), feed, []byte(sampleFacebookHTML))
	require.NoError(t, err)
	assert.Empty(t, items)
}
