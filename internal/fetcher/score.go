package fetcher

import (
	"math"
	"strings"

	"reelcast/internal/config"
	"reelcast/internal/store"
)

const (
	trustWeight   = 30.0
	payloadBonus  = 30.0
	eventBonus    = 10.0
	entitiesBonus = 10.0
)

// lengthBuckets award substantiveness points by body length in characters.
var lengthBuckets = []struct {
	minChars int
	points   float64
}{
	{1500, 20},
	{800, 15},
	{300, 10},
	{100, 5},
}

// Scorer computes relevance scores in [0, 100].
type Scorer struct {
	cfg config.Scoring
}

// NewScorer builds a scorer from the [scoring] section.
func NewScorer(cfg config.Scoring) Scorer {
	return Scorer{cfg: cfg}
}

// Score returns the weighted relevance of item.
func (s Scorer) Score(item *store.ContentItem) float64 {
	if item == nil {
		return 0
	}
	score := clamp(item.Source.TrustWeight, 0, 1) * trustWeight

	length := len([]rune(item.Body))
	for _, bucket := range lengthBuckets {
		if length >= bucket.minChars {
			score += bucket.points
			break
		}
	}
	if item.Payload != nil {
		score += payloadBonus
	}
	if strings.TrimSpace(item.Event) != "" {
		score += eventBonus
	}
	if len(item.Entities) > 0 {
		score += entitiesBonus
	}
	score += s.cfg.CategoryWeights[string(item.Category)]
	score += s.keywordBonus(item.Title + " " + item.Body)
	return clamp(score, 0, 100)
}

func (s Scorer) keywordBonus(text string) float64 {
	if s.cfg.KeywordBonus <= 0 || len(s.cfg.Keywords) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	bonus := 0.0
	for _, keyword := range s.cfg.Keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			bonus += s.cfg.KeywordBonus
		}
	}
	if s.cfg.MaxKeywordBonus > 0 {
		bonus = math.Min(bonus, s.cfg.MaxKeywordBonus)
	}
	return bonus
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}
