// Package priority maintains per-repository adaptive check intervals.
//
// Repositories that release often are checked at shorter intervals;
// repositories that fail their checks repeatedly drift toward the maximum
// interval through a score penalty. Individual checks only update counters
// and timestamps; the score and interval are rewritten by a periodic
// recalculation pass so the schedule does not thrash on every poll.
package priority

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"release_bot/internal/model"
	"release_bot/internal/storage"
)

// Score thresholds mapping release frequency to check intervals.
const (
	HighThreshold = 0.5
	LowThreshold  = 0.1

	failurePenaltyStep = 0.1
	failurePenaltyCap  = 0.5

	analysisWindowDays = 7
	recalcPeriod       = 6 * time.Hour

	metaLastRecalc = "last_priority_recalc"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Engine derives check intervals from observed release activity.
type Engine struct {
	store storage.Storage
	repos []string
	log   *slog.Logger
	now   func() time.Time
}

// New creates an Engine over the configured repository list.
func New(store storage.Storage, repos []string, log *slog.Logger) *Engine {
	return &Engine{
		store: store,
		repos: repos,
		log:   log,
		now:   time.Now,
	}
}

// SetNow overrides the engine's clock (useful for testing).
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// GetPriority returns the priority record for a repository, creating and
// persisting a default record on first access.
func (e *Engine) GetPriority(ctx context.Context, repo string) (*model.RepoPriority, error) {
	p, err := e.store.GetPriority(ctx, repo)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = &model.RepoPriority{
		RepoName:      repo,
		CheckInterval: model.DefaultCheckInterval,
	}
	if err := e.store.SavePriority(ctx, p); err != nil {
		return nil, fmt.Errorf("persist default priority: %w", err)
	}
	return p, nil
}

// RecordCheck registers the outcome of a single repository check. A
// successful check resets the failure streak and folds the response time
// into the running average; a failed check grows the streak. The average
// uses the (old+new)/2 rule, which overweights recent samples.
func (e *Engine) RecordCheck(ctx context.Context, repo string, success bool, responseTime float64) error {
	p, err := e.GetPriority(ctx, repo)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	p.TotalChecks++
	p.LastCheck = &now

	if success {
		p.ConsecutiveFailures = 0
		if p.AvgResponseTime > 0 {
			p.AvgResponseTime = (p.AvgResponseTime + responseTime) / 2
		} else {
			p.AvgResponseTime = responseTime
		}
	} else {
		p.ConsecutiveFailures++
	}

	return e.store.SavePriority(ctx, p)
}

// RecordUpdate registers that a novel release was detected for a repository.
func (e *Engine) RecordUpdate(ctx context.Context, repo string) error {
	p, err := e.GetPriority(ctx, repo)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	p.UpdateCount++
	p.LastUpdate = &now
	p.ConsecutiveFailures = 0

	if err := e.store.SavePriority(ctx, p); err != nil {
		return err
	}
	e.log.Info("recorded release", "repo", repo, "total_updates", p.UpdateCount)
	return nil
}

// ShouldRecalculate reports whether the periodic recalculation is overdue.
func (e *Engine) ShouldRecalculate(ctx context.Context) (bool, error) {
	raw, err := e.store.GetMeta(ctx, metaLastRecalc)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return true, nil
	}
	last, err := time.Parse(timeLayout, raw)
	if err != nil {
		return true, nil
	}
	return e.now().UTC().Sub(last) > recalcPeriod, nil
}

// Recalculate recomputes every repository's score and check interval from
// release counts in the trailing analysis window, penalized by consecutive
// check failures.
func (e *Engine) Recalculate(ctx context.Context) error {
	now := e.now().UTC()
	cutoff := now.AddDate(0, 0, -analysisWindowDays)

	for _, repo := range e.repos {
		p, err := e.GetPriority(ctx, repo)
		if err != nil {
			return err
		}

		windowCount, err := e.store.CountReleasesSince(ctx, repo, cutoff)
		if err != nil {
			return err
		}

		rawScore := float64(windowCount) / analysisWindowDays
		penalty := math.Min(float64(p.ConsecutiveFailures)*failurePenaltyStep, failurePenaltyCap)
		adjusted := math.Max(0, rawScore-penalty)

		p.PriorityScore = math.Round(adjusted*1000) / 1000
		p.CheckInterval = IntervalForScore(adjusted)

		if err := e.store.SavePriority(ctx, p); err != nil {
			return err
		}

		e.log.Debug("priority recalculated",
			"repo", repo,
			"score", p.PriorityScore,
			"interval_min", p.CheckInterval,
			"failures", p.ConsecutiveFailures,
		)
	}

	if err := e.store.SetMeta(ctx, metaLastRecalc, now.Format(timeLayout)); err != nil {
		return fmt.Errorf("store recalculation time: %w", err)
	}
	e.log.Info("priorities recalculated", "repos", len(e.repos))
	return nil
}

// IntervalForScore maps an adjusted priority score to a check interval in
// minutes. Scores at or above the high threshold get the minimum interval,
// scores at or below the low threshold the maximum, with linear
// interpolation in between.
func IntervalForScore(score float64) int {
	switch {
	case score >= HighThreshold:
		return model.MinCheckInterval
	case score <= LowThreshold:
		return model.MaxCheckInterval
	default:
		ratio := (score - LowThreshold) / (HighThreshold - LowThreshold)
		return model.MaxCheckInterval - int(ratio*float64(model.MaxCheckInterval-model.MinCheckInterval))
	}
}

// IsDue reports whether a repository is due for a check at the given time.
// A never-checked repository is always due.
func (e *Engine) IsDue(ctx context.Context, repo string, now time.Time) (bool, error) {
	p, err := e.GetPriority(ctx, repo)
	if err != nil {
		return false, err
	}
	if p.LastCheck == nil {
		return true, nil
	}
	return now.Sub(*p.LastCheck) >= time.Duration(p.CheckInterval)*time.Minute, nil
}

// Stats aggregates the priority records of all configured repositories.
type Stats struct {
	HighPriority    int
	MediumPriority  int
	LowPriority     int
	FailingRepos    int
	TotalRepos      int
	AverageInterval float64
	TotalChecks     int
	TotalUpdates    int
}

// GetStats summarizes the current priority records.
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{TotalRepos: len(e.repos)}

	totalInterval := 0
	for _, repo := range e.repos {
		p, err := e.GetPriority(ctx, repo)
		if err != nil {
			return Stats{}, err
		}

		switch {
		case p.PriorityScore >= HighThreshold:
			stats.HighPriority++
		case p.PriorityScore <= LowThreshold:
			stats.LowPriority++
		default:
			stats.MediumPriority++
		}

		if p.ConsecutiveFailures > 3 {
			stats.FailingRepos++
		}

		totalInterval += p.CheckInterval
		stats.TotalChecks += p.TotalChecks
		stats.TotalUpdates += p.UpdateCount
	}

	if len(e.repos) > 0 {
		stats.AverageInterval = math.Round(float64(totalInterval)/float64(len(e.repos))*10) / 10
	}
	return stats, nil
}
