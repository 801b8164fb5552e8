package publisher

import (
	"context"
	"sort"
	"strings"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/services/platform"
)

// Platform is the capability set every publication target exposes.
type Platform interface {
	Name() string
	CreatePost(ctx context.Context, post platform.Post) (platform.PostResult, error)
	ListComments(ctx context.Context, postID string) ([]platform.Comment, error)
	Reply(ctx context.Context, commentID, text string) (string, error)
}

// Registry resolves platforms by name.
type Registry struct {
	platforms map[string]Platform
}

// NewRegistry builds a registry from the given platforms.
func NewRegistry(platforms ...Platform) *Registry {
	r := &Registry{platforms: make(map[string]Platform, len(platforms))}
	for _, p := range platforms {
		r.Register(p)
	}
	return r
}

// FromConfig builds HTTP clients for every enabled platform.
func FromConfig(cfg *config.Config, limiters *services.Limiters, opts ...platform.Option) *Registry {
	opts = append([]platform.Option{platform.WithLimiters(limiters)}, opts...)
	r := NewRegistry()
	for _, p := range cfg.EnabledPlatforms() {
		r.Register(platform.NewClient(p, opts...))
	}
	return r
}

// Register adds or replaces a platform.
func (r *Registry) Register(p Platform) {
	if p == nil {
		return
	}
	r.platforms[normalize(p.Name())] = p
}

// Get returns the named platform.
func (r *Registry) Get(name string) (Platform, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.platforms[normalize(name)]
	return p, ok
}

// Names lists registered platforms in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
