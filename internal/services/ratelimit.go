package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"reelcast/internal/config"
)

// External API names used for client-side rate limiting.
const (
	APISources  = "sources"
	APITextGen  = "textgen"
	APITTS      = "tts"
	APIAvatar   = "avatar"
	platformAPI = "platform:"
)

// PlatformAPI returns the limiter key for a publication platform.
func PlatformAPI(name string) string {
	return platformAPI + strings.ToLower(strings.TrimSpace(name))
}

// Limiters holds one token bucket per external API. Every platform gets its
// own bucket sized from rate_limits.platform_per_minute.
type Limiters struct {
	mu       sync.Mutex
	perMin   map[string]int
	platform int
	limiters map[string]*rate.Limiter
	onWait   func(api string)
}

// NewLimiters builds limiters from the [rate_limits] section. A zero rate disables limiting for that API.
func NewLimiters(cfg config.RateLimits) *Limiters {
	return &Limiters{
		perMin: map[string]int{
			APISources: cfg.SourcesPerMinute,
			APITextGen: cfg.TextGenPerMinute,
			APITTS:     cfg.TTSPerMinute,
			APIAvatar:  cfg.AvatarPerMinute,
		},
		platform: cfg.PlatformPerMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

// OnWait registers a callback invoked whenever a call has to wait for a token.
func (l *Limiters) OnWait(fn func(api string)) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.onWait = fn
	l.mu.Unlock()
}

// Wait blocks until the named API has a token available or ctx is done.
func (l *Limiters) Wait(ctx context.Context, api string) error {
	if l == nil {
		return nil
	}
	limiter, onWait := l.limiterFor(api)
	if limiter == nil {
		return nil
	}
	if limiter.Allow() {
		return nil
	}
	if onWait != nil {
		onWait(api)
	}
	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return Wrap(ErrProviderRateLimit, "ratelimit", "wait", api+" budget exhausted before deadline", err)
	}
	return nil
}

func (l *Limiters) limiterFor(api string) (*rate.Limiter, func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[api]; ok {
		return limiter, l.onWait
	}
	perMinute, ok := l.perMin[api]
	if !ok && strings.HasPrefix(api, platformAPI) {
		perMinute, ok = l.platform, true
	}
	if !ok || perMinute <= 0 {
		return nil, nil
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	l.limiters[api] = limiter
	return limiter, l.onWait
}
