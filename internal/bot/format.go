package bot

import (
	"fmt"
	"strings"

	"release_bot/internal/model"
	"release_bot/internal/priority"
)

const maxListedReleases = 20

// FormatReleaseList formats recently observed releases for display,
// newest first, capped to keep the message within Telegram limits.
func FormatReleaseList(releases []model.Release, days int) string {
	if len(releases) == 0 {
		return fmt.Sprintf("No releases seen in the last %d day(s).", days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Releases seen in the last %d day(s):\n", days)
	for i, rel := range releases {
		if i == maxListedReleases {
			fmt.Fprintf(&b, "\n...and %d more", len(releases)-maxListedReleases)
			break
		}
		fmt.Fprintf(&b, "\n%s %s", rel.RepoName, rel.Tag)
		if rel.PublishedAt != nil {
			fmt.Fprintf(&b, " (%s)", rel.PublishedAt.Format("2006-01-02"))
		}
	}
	return b.String()
}

// FormatPriorityList formats the scheduling state of every repository,
// highest priority first.
func FormatPriorityList(priorities []model.RepoPriority) string {
	if len(priorities) == 0 {
		return "No priority data yet. Run /check to seed it."
	}

	var b strings.Builder
	b.WriteString("📊 Repository priorities:\n")
	for _, p := range priorities {
		fmt.Fprintf(&b, "\n%s %s\n", priorityMarker(p.PriorityScore), p.RepoName)
		fmt.Fprintf(&b, "   score %.3f, every %d min\n", p.PriorityScore, p.CheckInterval)
		fmt.Fprintf(&b, "   %d release(s), %d check(s)", p.UpdateCount, p.TotalChecks)
		if p.ConsecutiveFailures > 0 {
			fmt.Fprintf(&b, ", ⚠️ %d failure(s)", p.ConsecutiveFailures)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStats formats the aggregate priority statistics.
func FormatStats(s priority.Stats) string {
	var b strings.Builder
	b.WriteString("📈 Statistics:\n\n")
	fmt.Fprintf(&b, "Repositories: %d\n", s.TotalRepos)
	fmt.Fprintf(&b, "🔴 high priority: %d\n", s.HighPriority)
	fmt.Fprintf(&b, "🟡 medium priority: %d\n", s.MediumPriority)
	fmt.Fprintf(&b, "🟢 low priority: %d\n", s.LowPriority)
	if s.FailingRepos > 0 {
		fmt.Fprintf(&b, "⚠️ failing: %d\n", s.FailingRepos)
	}
	fmt.Fprintf(&b, "\nAverage interval: %.1f min\n", s.AverageInterval)
	fmt.Fprintf(&b, "Total checks: %d\n", s.TotalChecks)
	fmt.Fprintf(&b, "Total releases: %d", s.TotalUpdates)
	return b.String()
}

func priorityMarker(score float64) string {
	switch {
	case score >= priority.HighThreshold:
		return "🔴"
	case score <= priority.LowThreshold:
		return "🟢"
	default:
		return "🟡"
	}
}
