package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

// RSSExtractor reads RSS, Atom and JSON Feed documents.
type RSSExtractor struct{}

func (RSSExtractor) Kind() string { return "rss" }

func (RSSExtractor) Extract(ctx context.Context, client *http.Client, src config.Source) ([]Entry, error) {
	body, err := get(ctx, client, src.Name, src.URL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedItem, "fetcher", src.Name, "parse feed", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		text := item.Content
		if strings.TrimSpace(text) == "" {
			text = item.Description
		}
		entry := Entry{
			Title: strings.TrimSpace(item.Title),
			Body:  plainText(text),
			URL:   strings.TrimSpace(item.Link),
			Tags:  lowerAll(item.Categories),
		}
		if item.PublishedParsed != nil {
			entry.PublishDate = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			entry.PublishDate = item.UpdatedParsed.UTC()
		}
		entries = append(entries, entry)
		if src.Limit > 0 && len(entries) >= src.Limit {
			break
		}
	}
	return entries, nil
}
