package interaction

import (
	"strings"
	"unicode"

	"reelcast/internal/store"
)

var (
	spamPhrases = []string{
		"check my channel", "subscribe to my", "follow me", "free followers", "dm me",
		"click the link", "promo code", "crypto", "giveaway", "earn money",
	}
	negativeWords = []string{
		"hate", "boring", "terrible", "worst", "trash", "garbage", "stupid", "awful",
		"fake", "clickbait", "cringe", "useless", "dislike", "unsubscribed",
	}
	questionWords = []string{
		"what", "why", "how", "when", "where", "who", "which", "can", "could",
		"does", "did", "is", "are", "should", "would",
	}
	thoughtfulWords = []string{
		"interesting", "think", "analysis", "perhaps", "however", "instead", "alternative",
		"position", "engine", "evaluation", "plan", "idea", "sacrifice", "compensation",
	}
	positiveWords = []string{
		"great", "love", "loved", "awesome", "amazing", "brilliant", "nice", "thanks",
		"thank", "beautiful", "wow", "best", "cool", "excellent", "fantastic", "incredible",
	}
)

// thoughtfulLength is the rune count at which an otherwise neutral comment
// counts as thoughtful.
const thoughtfulLength = 140

// Classify assigns a sentiment by keyword precedence: spam and negative
// first, then question, thoughtful, positive. Long comments without other
// signals are thoughtful; everything else is neutral.
func Classify(text string) store.Sentiment {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return store.SentimentNeutral
	}
	if strings.Contains(lowered, "http://") || strings.Contains(lowered, "https://") || containsAny(lowered, spamPhrases) {
		return store.SentimentNegative
	}

	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}

	switch {
	case hasAny(set, negativeWords):
		return store.SentimentNegative
	case strings.Contains(lowered, "?") || (len(words) > 0 && contains(questionWords, words[0])):
		return store.SentimentQuestion
	case hasAny(set, thoughtfulWords):
		return store.SentimentThoughtful
	case hasAny(set, positiveWords):
		return store.SentimentPositive
	case len([]rune(lowered)) >= thoughtfulLength:
		return store.SentimentThoughtful
	default:
		return store.SentimentNeutral
	}
}

// Answerable reports whether a sentiment warrants a reply.
func Answerable(s store.Sentiment) bool {
	switch s {
	case store.SentimentPositive, store.SentimentQuestion, store.SentimentThoughtful:
		return true
	default:
		return false
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func hasAny(set map[string]bool, words []string) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

func contains(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}
