package interaction

import (
	"context"
	"sync"
	"time"
)

// ReplyCounter reports how many replies a platform has sent since a time.
type ReplyCounter interface {
	CountRepliesSince(ctx context.Context, platform string, since time.Time) (int, error)
}

// Quota gates replies per platform per clock hour. The count for a new window
// is seeded from the store so a restart does not reset it.
type Quota struct {
	limit   int
	counter ReplyCounter

	mu      sync.Mutex
	windows map[string]quotaWindow
}

type quotaWindow struct {
	start time.Time
	used  int
}

// NewQuota creates a quota of limit replies per platform per hour. A limit of
// zero disables replies.
func NewQuota(limit int, counter ReplyCounter) *Quota {
	return &Quota{limit: limit, counter: counter, windows: map[string]quotaWindow{}}
}

// Reserve claims one reply slot for platform at now. It returns false when
// the hour's quota is exhausted.
func (q *Quota) Reserve(ctx context.Context, platform string, now time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	w, err := q.window(ctx, platform, now)
	if err != nil {
		return false, err
	}
	if w.used >= q.limit {
		return false, nil
	}
	w.used++
	q.windows[platform] = w
	return true, nil
}

// Release returns a reserved slot after a reply that was not sent.
func (q *Quota) Release(platform string, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.windows[platform]
	if !ok || !w.start.Equal(now.UTC().Truncate(time.Hour)) || w.used == 0 {
		return
	}
	w.used--
	q.windows[platform] = w
}

// Used returns the replies counted in the current window for each platform.
func (q *Quota) Used(now time.Time) map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	start := now.UTC().Truncate(time.Hour)
	out := make(map[string]int, len(q.windows))
	for platform, w := range q.windows {
		if w.start.Equal(start) {
			out[platform] = w.used
		}
	}
	return out
}

func (q *Quota) window(ctx context.Context, platform string, now time.Time) (quotaWindow, error) {
	start := now.UTC().Truncate(time.Hour)
	w, ok := q.windows[platform]
	if ok && w.start.Equal(start) {
		return w, nil
	}
	w = quotaWindow{start: start}
	if q.counter != nil {
		used, err := q.counter.CountRepliesSince(ctx, platform, start)
		if err != nil {
			return w, err
		}
		w.used = used
	}
	q.windows[platform] = w
	return w, nil
}
