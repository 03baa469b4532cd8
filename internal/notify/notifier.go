// Package notify delivers release announcements to subscribers.
package notify

import (
	"context"
	"log/slog"
	"time"

	"release_bot/internal/filter"
	"release_bot/internal/model"
	"release_bot/internal/storage"
)

// Users with no activity inside this window are skipped during fanout.
const activeWindowDays = 30

// Sender is the interface for delivering a text to a chat or channel.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Notifier fans a release announcement out to matching users and,
// independently, to the broadcast channel.
type Notifier struct {
	store     storage.Storage
	sender    Sender
	channelID int64 // 0 disables channel broadcast
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Notifier. channelID 0 disables the broadcast channel.
func New(store storage.Storage, sender Sender, channelID int64, log *slog.Logger) *Notifier {
	return &Notifier{
		store:     store,
		sender:    sender,
		channelID: channelID,
		log:       log,
		now:       time.Now,
	}
}

// SetNow overrides the notifier's clock (useful for testing).
func (n *Notifier) SetNow(now func() time.Time) {
	n.now = now
}

// Fanout delivers one release announcement to every recipient it should
// reach and returns the number of successful deliveries.
//
// Active users without a filter receive everything; users with a filter
// receive the release only if all their keywords match. The broadcast
// channel always receives the release, independent of per-user outcomes.
// A failed delivery is logged and never aborts the rest of the batch.
func (n *Notifier) Fanout(ctx context.Context, rel *model.Release) int {
	text := FormatRelease(rel)
	delivered := 0

	users, err := n.store.ListUsers(ctx)
	if err != nil {
		n.log.Error("list users", "error", err)
	}

	cutoff := n.now().UTC().AddDate(0, 0, -activeWindowDays)
	for _, u := range users {
		if !u.LastActivity.IsZero() && u.LastActivity.Before(cutoff) {
			continue
		}

		keywords, err := n.store.GetFilter(ctx, u.ID)
		if err != nil {
			n.log.Error("get filter", "user_id", u.ID, "error", err)
			continue
		}
		if !filter.Matches(rel, keywords) {
			continue
		}

		if err := n.sender.SendMessage(u.ID, text); err != nil {
			n.log.Error("deliver notification", "user_id", u.ID, "repo", rel.RepoName, "error", err)
			continue
		}
		delivered++
		if err := n.store.RecordNotification(ctx, u.ID); err != nil {
			n.log.Error("record notification", "user_id", u.ID, "error", err)
		}
	}

	if n.channelID != 0 {
		if err := n.sender.SendMessage(n.channelID, text); err != nil {
			n.log.Error("deliver to channel", "channel_id", n.channelID, "repo", rel.RepoName, "error", err)
		} else {
			delivered++
		}
	}

	n.log.Info("fanout complete", "repo", rel.RepoName, "tag", rel.Tag, "delivered", delivered)
	return delivered
}
