package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/fetcher"
)

const listingPage = `<html><body>
<div class="story"><h2><a href="/a/1">Opening trends at the Olympiad</a></h2>
  <p class="summary">Teams favored the Catalan this year.</p><time datetime="2026-02-10T08:00:00Z">Feb 10</time></div>
<div class="story"><h2><a href="/a/2">Endgame study of the week</a></h2>
  <p class="summary">A rook ending with a twist.</p><time datetime="2026-02-11T08:00:00Z">Feb 11</time></div>
</body></html>`

const articlePage = `<html><head><title>Opening trends at the Olympiad</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Opening trends at the Olympiad</h1>
<p>The Catalan was the most popular opening among the top boards, with white scoring well above
average across all eleven rounds. Several teams prepared deep lines in the closed variations.</p>
<p>Analysts noted that the Berlin defence saw a decline, while the Nimzo-Indian remained a steady
choice for black players who wanted to avoid the heavily analysed main lines of the Queen's Gambit.</p>
<p>The final rounds produced decisive results on the top boards, and the Catalan featured in four of
those games, underlining how much preparation now shapes results in team competitions.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func newHTMLServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage)
	})
	mux.HandleFunc("/a/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articlePage)
	})
	mux.HandleFunc("/a/2", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTMLExtractorUsesSelectors(t *testing.T) {
	server := newHTMLServer(t)
	src := config.Source{
		Name: "site", Kind: "html", URL: server.URL + "/list",
		Selectors: config.Selectors{Item: "div.story", Title: "h2", Body: "p.summary", Link: "h2 a", Date: "time"},
	}
	entries, err := fetcher.HTMLExtractor{}.Extract(context.Background(), server.Client(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Title != "Opening trends at the Olympiad" || first.Body != "Teams favored the Catalan this year." {
		t.Fatalf("unexpected entry: %+v", first)
	}
	if first.URL != server.URL+"/a/1" {
		t.Fatalf("expected resolved link, got %q", first.URL)
	}
	if first.PublishDate.IsZero() || first.PublishDate.Day() != 10 {
		t.Fatalf("expected parsed datetime, got %v", first.PublishDate)
	}

	src.Limit = 1
	limited, err := fetcher.HTMLExtractor{}.Extract(context.Background(), server.Client(), src)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d (%v)", len(limited), err)
	}
}

func TestArticleExtractorSkipsBrokenArticles(t *testing.T) {
	server := newHTMLServer(t)
	src := config.Source{
		Name: "longform", Kind: "article", URL: server.URL + "/list",
		Selectors: config.Selectors{Item: "div.story", Title: "h2", Link: "h2 a"},
	}
	entries, err := fetcher.ArticleExtractor{}.Extract(context.Background(), server.Client(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one readable article, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Body, "Catalan was the most popular opening") {
		t.Fatalf("expected article text, got %q", entries[0].Body)
	}
	if strings.Contains(entries[0].Body, "Copyright") {
		t.Fatal("expected boilerplate to be stripped")
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := fetcher.DefaultRegistry()
	if got := strings.Join(reg.Kinds(), ","); got != "article,html,json,rss" {
		t.Fatalf("Kinds = %s", got)
	}
	if _, err := reg.Resolve("ftp"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
