// Package style maps content categories to narration settings. The mapping is
// a fixed table so the same item always gets the same tone, voice and
// background.
package style

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelcast/internal/config"
	"reelcast/internal/store"
)

// Style is the narration profile for one category.
type Style struct {
	Category   store.Category
	Tone       string
	Voice      string
	Background string
}

// Instructions renders the tone guidance used in the narrative prompt.
func (s Style) Instructions() string {
	return fmt.Sprintf("Write the %s segment in a %s tone. The narrator is a %s.",
		DisplayName(s.Category), s.Tone, s.Voice)
}

// Table resolves styles by category.
type Table struct {
	styles   map[store.Category]Style
	fallback Style
}

// NewTable builds a table from the [[styles]] rows. Categories without a row
// use the news row.
func NewTable(rows []config.Style) (*Table, error) {
	table := &Table{styles: make(map[store.Category]Style, len(rows))}
	for _, row := range rows {
		category, ok := store.ParseCategory(strings.ToLower(strings.TrimSpace(row.Category)))
		if !ok {
			return nil, fmt.Errorf("style: unknown category %q", row.Category)
		}
		table.styles[category] = Style{
			Category:   category,
			Tone:       strings.TrimSpace(row.Tone),
			Voice:      strings.TrimSpace(row.Voice),
			Background: strings.TrimSpace(row.Background),
		}
	}
	fallback, ok := table.styles[store.CategoryNews]
	if !ok {
		return nil, fmt.Errorf("style: a %q row is required", store.CategoryNews)
	}
	table.fallback = fallback
	return table, nil
}

// For returns the style for category.
func (t *Table) For(category store.Category) Style {
	if s, ok := t.styles[category]; ok {
		return s
	}
	s := t.fallback
	s.Category = category
	return s
}

// DisplayName returns a human label for a category, e.g. "Tournament".
func DisplayName(category store.Category) string {
	return cases.Title(language.English).String(string(category))
}
