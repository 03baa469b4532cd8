package bot

import (
	"context"
	"fmt"
	"strings"

	"release_bot/internal/filter"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID,
		"👋 Hi! I watch GitHub repositories and notify you about new releases.\n\n"+
			"📌 Main commands:\n"+
			"/filter - set notification keywords\n"+
			"/myfilters - show current keywords\n"+
			"/clearfilters - remove all keywords\n"+
			"/recent - recently seen releases\n"+
			"/help - usage help")
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID,
		"📚 How filtering works\n\n"+
			"/filter <word> [word...] stores your keywords. You will only be\n"+
			"notified about releases whose name, tag or notes contain every\n"+
			"keyword (case-insensitive). Without keywords you receive all releases.\n\n"+
			"Commands:\n"+
			"/filter cuda linux - only releases mentioning both words\n"+
			"/myfilters - show your keywords\n"+
			"/clearfilters - receive everything again\n"+
			"/recent [days] - releases seen in the last days (default 7)")
}

func (b *Bot) handleFilter(ctx context.Context, chatID, userID int64, args string) {
	keywords := filter.NormalizeKeywords(strings.Fields(args))
	if len(keywords) == 0 {
		b.reply(chatID, "Usage: /filter <keyword> [keyword...]\nExample: /filter cuda linux")
		return
	}

	if err := b.store.SetFilter(ctx, userID, keywords); err != nil {
		b.log.Error("set filter", "user_id", userID, "error", err)
		b.reply(chatID, "Failed to save filters, please try again.")
		return
	}

	b.reply(chatID, fmt.Sprintf(
		"✅ Filters saved: %s\n\nYou will only be notified about releases containing all of these words.",
		strings.Join(keywords, ", ")))
}

func (b *Bot) handleMyFilters(ctx context.Context, chatID, userID int64) {
	keywords, err := b.store.GetFilter(ctx, userID)
	if err != nil {
		b.log.Error("get filter", "user_id", userID, "error", err)
		b.reply(chatID, "Failed to load filters, please try again.")
		return
	}

	if len(keywords) == 0 {
		b.reply(chatID, "📭 You have no filters set. You receive every release.")
		return
	}
	b.reply(chatID, "📋 Your keywords: "+strings.Join(keywords, ", "))
}

func (b *Bot) handleClearFilters(ctx context.Context, chatID, userID int64) {
	if err := b.store.ClearFilter(ctx, userID); err != nil {
		b.log.Error("clear filter", "user_id", userID, "error", err)
		b.reply(chatID, "Failed to clear filters, please try again.")
		return
	}
	b.reply(chatID, "🗑 Filters removed. You now receive every release.")
}

func (b *Bot) handleRecent(ctx context.Context, chatID int64, args string) {
	days, err := ParseDaysArg(args, 7, 30)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	releases, err := b.store.RecentReleases(ctx, days)
	if err != nil {
		b.log.Error("recent releases", "error", err)
		b.reply(chatID, "Failed to load release history, please try again.")
		return
	}

	b.reply(chatID, FormatReleaseList(releases, days))
}

func (b *Bot) handlePriorities(ctx context.Context, chatID, userID int64) {
	if !b.cfg.IsAdmin(userID) {
		b.reply(chatID, "Access denied.")
		return
	}

	priorities, err := b.store.ListPriorities(ctx)
	if err != nil {
		b.log.Error("list priorities", "error", err)
		b.reply(chatID, "Failed to load priorities, please try again.")
		return
	}

	b.reply(chatID, FormatPriorityList(priorities))
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	if !b.cfg.IsAdmin(userID) {
		b.reply(chatID, "Access denied.")
		return
	}

	stats, err := b.engine.GetStats(ctx)
	if err != nil {
		b.log.Error("priority stats", "error", err)
		b.reply(chatID, "Failed to load statistics, please try again.")
		return
	}

	b.reply(chatID, FormatStats(stats))
}

func (b *Bot) handleCheck(ctx context.Context, chatID, userID int64) {
	if !b.cfg.IsAdmin(userID) {
		b.reply(chatID, "Access denied.")
		return
	}
	if b.checker == nil {
		b.reply(chatID, "Checker is not available.")
		return
	}

	b.reply(chatID, "🔄 Checking all repositories...")

	// A full pass can take a while; keep the update loop responsive.
	go func() {
		found := b.checker.ForceCheckAll(ctx)
		b.reply(chatID, fmt.Sprintf("✅ Check finished: %d new release(s) found.", found))
	}()
}
