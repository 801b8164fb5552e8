package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/store"
)

// Entry is one raw item as extracted from a source, before normalization.
type Entry struct {
	Title       string
	Body        string
	URL         string
	PublishDate time.Time
	Payload     *store.Payload
	Category    string
	Event       string
	Entities    []string
	Tags        []string
}

// Extractor turns one source endpoint into entries.
type Extractor interface {
	Kind() string
	Extract(ctx context.Context, client *http.Client, src config.Source) ([]Entry, error)
}

// Registry maps source kinds to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]Extractor{}}
}

// DefaultRegistry returns a registry holding every built-in extractor.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(RSSExtractor{})
	reg.Register(HTMLExtractor{})
	reg.Register(JSONExtractor{})
	reg.Register(ArticleExtractor{})
	return reg
}

// Register adds or replaces an extractor.
func (r *Registry) Register(extractor Extractor) {
	if r.extractors == nil {
		r.extractors = map[string]Extractor{}
	}
	r.extractors[extractor.Kind()] = extractor
}

// Resolve returns the extractor for kind.
func (r *Registry) Resolve(kind string) (Extractor, error) {
	if extractor, ok := r.extractors[kind]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("no extractor registered for source kind %q", kind)
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.extractors))
	for kind := range r.extractors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
