// Package fetcher pulls candidate items from configured sources, normalizes and
// hashes them, drops duplicates, scores relevance, and persists the survivors.
//
// Extraction is pluggable per source kind through a Registry of Extractors:
// rss (gofeed), html (goquery selectors), json (dotted field paths) and
// article (goquery link discovery plus readability body extraction). Sources
// are queried concurrently; a failing source never fails the batch.
package fetcher
