package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

const defaultArticleLimit = 10

// ArticleExtractor discovers article links on a listing page and extracts
// each article's main text with readability.
type ArticleExtractor struct{}

func (ArticleExtractor) Kind() string { return "article" }

func (ArticleExtractor) Extract(ctx context.Context, client *http.Client, src config.Source) ([]Entry, error) {
	doc, base, err := fetchDocument(ctx, client, src.Name, src.URL)
	if err != nil {
		return nil, err
	}

	limit := src.Limit
	if limit <= 0 {
		limit = defaultArticleLimit
	}
	type link struct{ href, title string }
	var links []link
	seen := map[string]bool{}
	doc.Find(src.Selectors.Item).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		href := selectLink(node, src.Selectors.Link, base)
		if href == "" || seen[href] {
			return true
		}
		seen[href] = true
		links = append(links, link{href: href, title: selectText(node, src.Selectors.Title)})
		return len(links) < limit
	})

	var (
		entries []Entry
		lastErr error
	)
	for _, l := range links {
		if ctx.Err() != nil {
			return entries, ctx.Err()
		}
		entry, err := extractArticle(ctx, client, src.Name, l.href)
		if err != nil {
			lastErr = err
			continue
		}
		if entry.Title == "" {
			entry.Title = l.title
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return entries, nil
}

func extractArticle(ctx context.Context, client *http.Client, source, rawURL string) (Entry, error) {
	body, err := get(ctx, client, source, rawURL)
	if err != nil {
		return Entry{}, err
	}
	pageURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return Entry{}, services.Wrap(services.ErrMalformedItem, "fetcher", source, "extract article "+rawURL, err)
	}
	entry := Entry{
		Title: strings.TrimSpace(article.Title),
		Body:  collapseSpace(article.TextContent),
		URL:   rawURL,
	}
	if article.PublishedTime != nil {
		entry.PublishDate = article.PublishedTime.UTC()
	}
	return entry, nil
}
