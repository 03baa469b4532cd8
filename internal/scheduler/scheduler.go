// Package scheduler drives the periodic release check loop.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"release_bot/internal/github"
	"release_bot/internal/model"
	"release_bot/internal/priority"
	"release_bot/internal/storage"
)

// Source fetches the latest release of a repository.
type Source interface {
	FetchLatest(ctx context.Context, repo string) (*model.Release, error)
}

// Notifier fans a release announcement out to subscribers.
type Notifier interface {
	Fanout(ctx context.Context, rel *model.Release) int
}

// Scheduler periodically checks repositories that are due and pushes novel
// releases through the history/priority/notification pipeline.
type Scheduler struct {
	store       storage.Storage
	source      Source
	engine      *priority.Engine
	notifier    Notifier
	repos       []string
	log         *slog.Logger
	tick        time.Duration
	concurrency int
}

// New creates a Scheduler over the configured repository list.
func New(store storage.Storage, source Source, engine *priority.Engine, notifier Notifier, repos []string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		source:      source,
		engine:      engine,
		notifier:    notifier,
		repos:       repos,
		log:         log,
		tick:        30 * time.Minute,
		concurrency: 3,
	}
}

// SetTickInterval overrides the default 30-minute tick.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled. The first
// pass runs immediately; never-checked repositories are always due.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

// checkDue recalculates priorities when overdue, then checks every
// repository whose interval has elapsed.
func (s *Scheduler) checkDue(ctx context.Context) {
	if due, err := s.engine.ShouldRecalculate(ctx); err != nil {
		s.log.Error("check recalculation due", "error", err)
	} else if due {
		if err := s.engine.Recalculate(ctx); err != nil {
			s.log.Error("recalculate priorities", "error", err)
		}
	}

	now := time.Now().UTC()
	var repos []string
	for _, repo := range s.repos {
		isDue, err := s.engine.IsDue(ctx, repo, now)
		if err != nil {
			s.log.Error("check due", "repo", repo, "error", err)
			continue
		}
		if isDue {
			repos = append(repos, repo)
		}
	}

	if len(repos) == 0 {
		s.log.Debug("no repositories due")
		return
	}

	s.log.Info("checking repositories", "due", len(repos), "total", len(s.repos))
	s.checkRepos(ctx, repos)
}

// ForceCheckAll checks every configured repository regardless of its
// schedule and returns the number of novel releases found.
func (s *Scheduler) ForceCheckAll(ctx context.Context) int {
	return s.checkRepos(ctx, s.repos)
}

// checkRepos runs checks with bounded concurrency to respect upstream rate
// limits. Each repository's failures are isolated from the others.
func (s *Scheduler) checkRepos(ctx context.Context, repos []string) int {
	var found atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, repo := range repos {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if s.checkOne(gctx, repo) {
				found.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(found.Load())
}

// checkOne fetches a repository's latest release and, when the tag differs
// from the last one seen, records it and fans out notifications. Returns
// true when a novel release was detected.
//
// State is written in a fixed order: history first, then the priority
// update, then fanout, and the last-seen tag only at the very end. A crash
// mid-fanout re-detects the same tag on the next tick, giving at-least-once
// delivery rather than lost notifications.
func (s *Scheduler) checkOne(ctx context.Context, repo string) bool {
	s.log.Debug("checking repository", "repo", repo)

	start := time.Now()
	rel, err := s.source.FetchLatest(ctx, repo)
	elapsed := time.Since(start).Seconds()

	success := err == nil && rel.Tag != ""
	if recErr := s.engine.RecordCheck(ctx, repo, success, elapsed); recErr != nil {
		s.log.Error("record check", "repo", repo, "error", recErr)
	}

	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			s.log.Debug("no release found", "repo", repo)
		} else {
			s.log.Error("fetch release", "repo", repo, "error", err)
		}
		return false
	}
	if rel.Tag == "" {
		s.log.Warn("release has no tag", "repo", repo)
		return false
	}

	lastTag, err := s.store.GetLastTag(ctx, repo)
	if err != nil {
		s.log.Error("get last tag", "repo", repo, "error", err)
		return false
	}
	if lastTag == rel.Tag {
		return false
	}

	s.log.Info("novel release", "repo", repo, "tag", rel.Tag, "previous", lastTag)

	added, err := s.store.AddRelease(ctx, rel)
	if err != nil {
		s.log.Error("add release to history", "repo", repo, "tag", rel.Tag, "error", err)
	} else if !added {
		// Already in history: the previous pass crashed between the
		// history write and the tag update. Deliver again.
		s.log.Warn("release already in history, re-notifying", "repo", repo, "tag", rel.Tag)
	}

	if err := s.engine.RecordUpdate(ctx, repo); err != nil {
		s.log.Error("record update", "repo", repo, "error", err)
	}

	s.notifier.Fanout(ctx, rel)

	if err := s.store.SetLastTag(ctx, repo, rel.Tag); err != nil {
		s.log.Error("set last tag", "repo", repo, "tag", rel.Tag, "error", err)
	}

	return true
}
