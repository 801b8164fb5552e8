package interaction

import (
	"sync"

	"reelcast/internal/store"
)

// Templates hands out reply templates per sentiment in round-robin order.
type Templates struct {
	mu    sync.Mutex
	sets  map[store.Sentiment][]string
	nexts map[store.Sentiment]int
}

// NewTemplates builds a rotation from the [interaction.templates] table.
// Keys that are not sentiments are ignored.
func NewTemplates(sets map[string][]string) *Templates {
	t := &Templates{
		sets:  make(map[store.Sentiment][]string, len(sets)),
		nexts: make(map[store.Sentiment]int, len(sets)),
	}
	for key, values := range sets {
		s := store.Sentiment(key)
		if !Answerable(s) {
			continue
		}
		var kept []string
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			t.sets[s] = kept
		}
	}
	return t
}

// Has reports whether s has any template configured.
func (t *Templates) Has(s store.Sentiment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sets[s]) > 0
}

// Next returns the next template for s, or false when none are configured.
func (t *Templates) Next(s store.Sentiment) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sets[s]
	if len(set) == 0 {
		return "", false
	}
	i := t.nexts[s] % len(set)
	t.nexts[s] = i + 1
	return set[i], true
}
