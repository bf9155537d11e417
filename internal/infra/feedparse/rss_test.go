package feedparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Test Feed</title>
<item>
  <title>House passes HB 200</title>
  <link>https://example.com/a</link>
  <guid>guid-1</guid>
  <description>A bill summary.</description>
  <pubDate>Wed, 21 Oct 2026 07:28:00 GMT</pubDate>
</item>
</channel></rss>`

func TestRSSParser_Parse(t *testing.T) {
	p := &RSSParser{}
	feed := &entity.Feed{ID: "f1", FetchMode: entity.FetchModeRSS}

	items, err := p.Parse(context.Background(), feed, []byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "House passes HB 200", items[0].Title)
	assert.Equal(t, "https://example.com/a", items[0].URL)
	assert.Equal(t, "guid-1", items[0].GUID)
	require.NotNil(t, items[0].PublishedAt)
}

func TestRSSParser_Parse_InvalidBody(t *testing.T) {
	p := &RSSParser{}
	feed := &entity.Feed{ID: "f1"}
	_, err := p.Parse(context.Background(), feed, []byte("not xml at all <<<"))
	assert.Error(t, err)
}

func TestForMode(t *testing.T) {
	assert.IsType(t, &RSSParser{}, ForMode(entity.FetchModeRSS))
	assert.IsType(t, &ScrapeParser{}, ForMode(entity.FetchModeScrape))
	assert.IsType(t, &FacebookPageParser{}, ForMode(entity.FetchModeFacebookPage))
}
