package fetcher

import (
	"regexp"
	"strings"
	"unicode"

	"reelcast/internal/store"
)

var (
	sanMove    = `(?:O-O(?:-O)?|[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=[QRBN])?)[+#]?`
	movesExpr  = regexp.MustCompile(`(?:\b\d{1,3}\.\s*` + sanMove + `(?:\s+` + sanMove + `)?\s*){2,}`)
	resultExpr = regexp.MustCompile(`(?:^|\s)(1-0|0-1|1/2-1/2|½-½)(?:\s|$)`)
)

// DetectPayload looks for a move list in text and returns a pgn payload when
// at least two numbered moves are present.
func DetectPayload(text string) *store.Payload {
	moves := movesExpr.FindString(text)
	if moves == "" {
		return nil
	}
	payload := &store.Payload{Kind: "pgn", Moves: strings.TrimSpace(moves)}
	if m := resultExpr.FindStringSubmatch(text); m != nil {
		payload.Result = m[1]
	}
	return payload
}

var categoryKeywords = []struct {
	category store.Category
	words    []string
}{
	{store.CategoryTournament, []string{"tournament", "championship", "olympiad", "candidates", "grand prix", "grand swiss", "round"}},
	{store.CategoryGame, []string{"game", "defeats", "beats", "draws", "vs", "checkmate", "resigns"}},
	{store.CategoryAnalysis, []string{"analysis", "annotated", "opening", "endgame", "novelty", "middlegame", "evaluation"}},
	{store.CategoryNews, []string{"announces", "announced", "news", "report", "interview", "rating list"}},
	{store.CategoryEducational, []string{"lesson", "tutorial", "learn", "beginner", "tips", "puzzle", "how to"}},
}

// InferCategory classifies text by whole-word keyword precedence: tournament,
// game, analysis, news, educational. A payload implies at least a game. The
// default is news.
func InferCategory(title, body string, payload *store.Payload) store.Category {
	words := strings.FieldsFunc(strings.ToLower(title+" "+body), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	text := " " + strings.Join(words, " ") + " "
	for _, rule := range categoryKeywords {
		for _, word := range rule.words {
			if strings.Contains(text, " "+word+" ") {
				return rule.category
			}
		}
		if rule.category == store.CategoryTournament && payload != nil {
			return store.CategoryGame
		}
	}
	return store.CategoryNews
}
