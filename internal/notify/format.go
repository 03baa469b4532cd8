package notify

import (
	"fmt"
	"strings"

	"release_bot/internal/model"
)

// Telegram rejects messages longer than 4096 characters.
const messageLimit = 4096

// FormatRelease formats a release as a notification message, truncated to
// the Telegram message limit.
func FormatRelease(rel *model.Release) string {
	name := rel.Name
	if name == "" {
		name = rel.Tag
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 New release in %s\n\n", rel.RepoName)
	b.WriteString(name)
	b.WriteString("\n")
	b.WriteString(rel.Tag)
	b.WriteString("\n")
	if rel.PublishedAt != nil {
		fmt.Fprintf(&b, "📅 %s\n", rel.PublishedAt.Format("2006-01-02 15:04"))
	}

	if rel.Body != "" {
		b.WriteString("\n")
		b.WriteString(rel.Body)
		b.WriteString("\n")
	}

	var links []string
	for _, a := range rel.Assets {
		if a.Name == "" || a.DownloadURL == "" || strings.HasPrefix(a.Name, "Source code") {
			continue
		}
		links = append(links, fmt.Sprintf("%s\n%s", a.Name, a.DownloadURL))
	}
	if len(links) > 0 {
		b.WriteString("\n📥 Downloads:\n")
		b.WriteString(strings.Join(links, "\n"))
	}

	return Truncate(b.String(), messageLimit)
}

// Truncate cuts s to at most limit bytes on a rune boundary, appending an
// ellipsis when anything was removed.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
