package feedparse

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"kybuzz/internal/domain/entity"
)

// RSSParser implements Parser for standard RSS/Atom/JSON feeds via gofeed —
// the teacher's exact feed-parsing library, carried forward unchanged from
// internal/infra/scraper/rss.go's doFetch step (minus the HTTP call, which
// now lives in httpfetch).
type RSSParser struct{}

func (p *RSSParser) Parse(ctx context.Context, feed *entity.Feed, body []byte) ([]RawItem, error) {
	fp := gofeed.NewParser()
	parsed, err := fp.ParseWithContext(bytes.NewReader(body), ctx)
	if err != nil {
		return nil, fmt.Errorf("feedparse: rss: %w", err)
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		content := it.Content
		if content == "" {
			content = it.Description
		}

		var imageURL string
		if it.Image != nil {
			imageURL = it.Image.URL
		} else if len(it.Enclosures) > 0 {
			imageURL = it.Enclosures[0].URL
		}

		author := ""
		if it.Author != nil {
			author = it.Author.Name
		} else if len(it.Authors) > 0 {
			author = it.Authors[0].Name
		}

		items = append(items, RawItem{
			Title:       it.Title,
			URL:         it.Link,
			GUID:        it.GUID,
			Author:      author,
			Summary:     it.Description,
			Content:     content,
			ImageURL:    imageURL,
			PublishedAt: it.PublishedParsed,
		})
	}
	return items, nil
}
