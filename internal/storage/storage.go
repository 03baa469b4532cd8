// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"release_bot/internal/model"
)

// Storage is the interface for all persistence operations.
//
// It covers five conceptual stores: last-seen release tags (novelty
// detection), release history (append-only, age-pruned), per-user keyword
// filters, the user registry, and per-repository scheduling priorities.
type Storage interface {
	// Last-seen tag per repository. GetLastTag returns "" when the
	// repository has never produced a release.
	GetLastTag(ctx context.Context, repo string) (string, error)
	SetLastTag(ctx context.Context, repo, tag string) error

	// AddRelease appends a release to the history. It returns false
	// without error when the (repo, tag) pair is already recorded.
	// Entries older than the retention window are pruned on every add.
	AddRelease(ctx context.Context, rel *model.Release) (bool, error)
	RecentReleases(ctx context.Context, days int) ([]model.Release, error)
	ReleasesOnDate(ctx context.Context, day time.Time) ([]model.Release, error)
	CountReleasesSince(ctx context.Context, repo string, since time.Time) (int, error)

	// User keyword filters. An absent entry means "receive everything";
	// SetFilter with an empty normalized keyword list clears the entry so
	// the two states are indistinguishable.
	GetFilter(ctx context.Context, userID int64) ([]string, error)
	SetFilter(ctx context.Context, userID int64, keywords []string) error
	ClearFilter(ctx context.Context, userID int64) error

	// User registry. TouchUser upserts the user, bumps LastActivity and
	// the command counter. Users are never deleted.
	TouchUser(ctx context.Context, userID int64) error
	RecordNotification(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]model.User, error)

	// Scheduling priorities. GetPriority returns nil without error when
	// no record exists for the repository.
	GetPriority(ctx context.Context, repo string) (*model.RepoPriority, error)
	SavePriority(ctx context.Context, p *model.RepoPriority) error
	ListPriorities(ctx context.Context) ([]model.RepoPriority, error)

	// Small key-value metadata, e.g. the last priority recalculation time.
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	Close() error
}
