package ingest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher reads RSS and Atom feeds listed on the source.
type RSSFetcher struct {
	clients *clientPool
}

func (f *RSSFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	feeds := src.Feeds
	if len(feeds) == 0 && src.BaseURL != "" {
		feeds = []string{src.BaseURL}
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%s: no feeds configured", src.Name)
	}

	client := f.clients.get(src)
	parser := gofeed.NewParser()
	limit := src.Query.limit(0)

	var out []RawRecord
	for _, feedURL := range feeds {
		body, err := client.Do(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
		}
		feed, err := parser.ParseString(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
		}
		for _, item := range feed.Items {
			out = append(out, feedItemRecord(feed, item))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func feedItemRecord(feed *gofeed.Feed, item *gofeed.Item) RawRecord {
	rec := RawRecord{
		"title":       item.Title,
		"description": item.Description,
		"link":        item.Link,
	}
	if item.Content != "" && len(item.Content) > len(item.Description) {
		rec["content"] = item.Content
		if item.Description == "" {
			rec["description"] = item.Content
		}
	}
	if item.GUID != "" {
		rec["guid"] = item.GUID
	} else if item.Link != "" {
		rec["guid"] = item.Link
	}
	if item.PublishedParsed != nil {
		rec["published"] = *item.PublishedParsed
	} else if item.Published != "" {
		rec["published"] = item.Published
	}
	if len(item.Categories) > 0 {
		rec["category"] = item.Categories[0]
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		rec["agency"] = item.Authors[0].Name
		if item.Authors[0].Email != "" {
			rec["email"] = item.Authors[0].Email
		}
	} else if feed.Title != "" {
		rec["agency"] = feed.Title
	}
	return rec
}
