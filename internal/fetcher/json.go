package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// JSONExtractor reads JSON feeds using dotted field paths ("data.items",
// "white.name", "games.0.pgn").
type JSONExtractor struct{}

func (JSONExtractor) Kind() string { return "json" }

func (JSONExtractor) Extract(ctx context.Context, client *http.Client, src config.Source) ([]Entry, error) {
	body, err := get(ctx, client, src.Name, src.URL)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, services.Wrap(services.ErrMalformedItem, "fetcher", src.Name, "decode json", err)
	}

	fields := src.Fields
	root := doc
	if fields.Items != "" {
		var ok bool
		if root, ok = lookup(doc, fields.Items); !ok {
			return nil, services.Wrap(services.ErrMalformedItem, "fetcher", src.Name,
				fmt.Sprintf("items path %q not found", fields.Items), nil)
		}
	}
	list, ok := root.([]any)
	if !ok {
		return nil, services.Wrap(services.ErrMalformedItem, "fetcher", src.Name, "items path is not an array", nil)
	}

	entries := make([]Entry, 0, len(list))
	for _, raw := range list {
		entry := Entry{
			Title:    lookupString(raw, fields.Title),
			Body:     plainText(lookupString(raw, fields.Body)),
			URL:      lookupString(raw, fields.URL),
			Category: strings.ToLower(lookupString(raw, fields.Category)),
			Event:    lookupString(raw, fields.Event),
			Entities: lookupStrings(raw, fields.Entities),
			Tags:     lowerAll(lookupStrings(raw, fields.Tags)),
		}
		if fields.Date != "" {
			entry.PublishDate = lookupTime(raw, fields.Date)
		}
		if fields.Payload != "" {
			entry.Payload = lookupPayload(raw, fields.Payload)
		}
		entries = append(entries, entry)
		if src.Limit > 0 && len(entries) >= src.Limit {
			break
		}
	}
	return entries, nil
}

func lookup(value any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	current := value
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func lookupString(value any, path string) string {
	found, ok := lookup(value, path)
	if !ok || found == nil {
		return ""
	}
	switch v := found.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func lookupStrings(value any, path string) []string {
	found, ok := lookup(value, path)
	if !ok {
		return nil
	}
	switch v := found.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

func lookupTime(value any, path string) time.Time {
	found, ok := lookup(value, path)
	if !ok {
		return time.Time{}
	}
	switch v := found.(type) {
	case string:
		return parseDate(v, "")
	case float64:
		// Epoch seconds or milliseconds.
		if v > 1e12 {
			return time.UnixMilli(int64(v)).UTC()
		}
		return time.Unix(int64(v), 0).UTC()
	default:
		return time.Time{}
	}
}

// lookupPayload accepts either a raw game score string or an object with
// kind/moves/result keys.
func lookupPayload(value any, path string) *store.Payload {
	found, ok := lookup(value, path)
	if !ok || found == nil {
		return nil
	}
	switch v := found.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if payload := DetectPayload(v); payload != nil {
			payload.Raw = v
			return payload
		}
		return &store.Payload{Kind: "raw", Raw: v}
	case map[string]any:
		payload := &store.Payload{
			Kind:   lookupString(v, "kind"),
			Moves:  lookupString(v, "moves"),
			Result: lookupString(v, "result"),
		}
		if payload.Kind == "" {
			payload.Kind = "pgn"
		}
		if payload.Moves == "" && payload.Result == "" {
			return nil
		}
		return payload
	default:
		return nil
	}
}
