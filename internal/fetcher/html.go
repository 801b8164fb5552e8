package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

// HTMLExtractor reads listing pages with CSS selectors.
type HTMLExtractor struct{}

func (HTMLExtractor) Kind() string { return "html" }

func (HTMLExtractor) Extract(ctx context.Context, client *http.Client, src config.Source) ([]Entry, error) {
	doc, base, err := fetchDocument(ctx, client, src.Name, src.URL)
	if err != nil {
		return nil, err
	}

	sel := src.Selectors
	var entries []Entry
	doc.Find(sel.Item).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		entry := Entry{
			Title: selectText(node, sel.Title),
			Body:  selectText(node, sel.Body),
			URL:   selectLink(node, sel.Link, base),
		}
		if sel.Date != "" {
			entry.PublishDate = parseDate(selectDate(node, sel.Date), sel.DateLayout)
		}
		entries = append(entries, entry)
		return src.Limit <= 0 || len(entries) < src.Limit
	})
	return entries, nil
}

func fetchDocument(ctx context.Context, client *http.Client, source, rawURL string) (*goquery.Document, *url.URL, error) {
	body, err := get(ctx, client, source, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrMalformedItem, "fetcher", source, "parse document", err)
	}
	base, _ := url.Parse(rawURL)
	return doc, base, nil
}

// selectText returns the trimmed text of the first match, or of node itself
// when selector is empty.
func selectText(node *goquery.Selection, selector string) string {
	if selector != "" {
		node = node.Find(selector).First()
	}
	return collapseSpace(node.Text())
}

func selectLink(node *goquery.Selection, selector string, base *url.URL) string {
	target := node
	if selector != "" {
		target = node.Find(selector).First()
	} else if !node.Is("a") {
		target = node.Find("a[href]").First()
	}
	href, ok := target.Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(base, href)
}

func selectDate(node *goquery.Selection, selector string) string {
	target := node.Find(selector).First()
	if value, ok := target.Attr("datetime"); ok {
		return value
	}
	return strings.TrimSpace(target.Text())
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

var fallbackLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"2 Jan 2006",
}

// parseDate parses value with layout, falling back to common layouts. It
// returns the zero time when nothing matches.
func parseDate(value, layout string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := fallbackLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackLayouts...)
	}
	for _, candidate := range layouts {
		if parsed, err := time.Parse(candidate, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// plainText strips markup from an HTML fragment.
func plainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
