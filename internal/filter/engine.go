// Package filter implements the release keyword matching engine.
package filter

import (
	"strings"

	"release_bot/internal/model"
)

// NormalizeKeywords lowercases and trims keywords, dropping empties. The
// result may be empty, which callers must treat as "no filter".
func NormalizeKeywords(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Matches reports whether a release passes a user's keyword filter.
//
// An empty keyword list always matches. Otherwise every keyword must be a
// case-insensitive substring of the release's name, tag and body taken
// together. Plain containment, no tokenization.
func Matches(rel *model.Release, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	var b strings.Builder
	if rel.Name != "" {
		b.WriteString(strings.ToLower(rel.Name))
		b.WriteString(" ")
	}
	if rel.Tag != "" {
		b.WriteString(strings.ToLower(rel.Tag))
		b.WriteString(" ")
	}
	if rel.Body != "" {
		b.WriteString(strings.ToLower(rel.Body))
		b.WriteString(" ")
	}
	text := b.String()

	for _, k := range keywords {
		if !strings.Contains(text, strings.ToLower(k)) {
			return false
		}
	}
	return true
}
