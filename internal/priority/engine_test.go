package priority

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"release_bot/internal/model"
	"release_bot/internal/storage"
)

func newTestEngine(t *testing.T, repos ...string) (*Engine, *storage.SQLite) {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, repos, log), s
}

func TestGetPriorityCreatesDefault(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "alice/tool")

	p, err := e.GetPriority(ctx, "alice/tool")
	if err != nil {
		t.Fatalf("get priority: %v", err)
	}

	want := &model.RepoPriority{
		RepoName:      "alice/tool",
		CheckInterval: model.DefaultCheckInterval,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("default priority mismatch (-want +got):\n%s", diff)
	}

	// The default must have been persisted on first access.
	stored, err := store.GetPriority(ctx, "alice/tool")
	if err != nil {
		t.Fatalf("get stored priority: %v", err)
	}
	if stored == nil {
		t.Fatal("expected default priority to be persisted")
	}
}

func TestRecordCheck(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, "alice/tool")

	if err := e.RecordCheck(ctx, "alice/tool", true, 2.0); err != nil {
		t.Fatalf("record check: %v", err)
	}
	p, err := e.GetPriority(ctx, "alice/tool")
	if err != nil {
		t.Fatalf("get priority: %v", err)
	}
	if p.TotalChecks != 1 {
		t.Errorf("TotalChecks = %d, want 1", p.TotalChecks)
	}
	if p.LastCheck == nil {
		t.Error("expected LastCheck to be set")
	}
	if p.AvgResponseTime != 2.0 {
		t.Errorf("AvgResponseTime = %v, want 2.0 (first sample)", p.AvgResponseTime)
	}

	// Second successful check folds in via (old+new)/2.
	if err := e.RecordCheck(ctx, "alice/tool", true, 4.0); err != nil {
		t.Fatalf("record check: %v", err)
	}
	p, _ = e.GetPriority(ctx, "alice/tool")
	if p.AvgResponseTime != 3.0 {
		t.Errorf("AvgResponseTime = %v, want 3.0", p.AvgResponseTime)
	}

	// Failures grow the streak; a success resets it.
	for i := 0; i < 3; i++ {
		if err := e.RecordCheck(ctx, "alice/tool", false, 0); err != nil {
			t.Fatalf("record check: %v", err)
		}
	}
	p, _ = e.GetPriority(ctx, "alice/tool")
	if p.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", p.ConsecutiveFailures)
	}

	if err := e.RecordCheck(ctx, "alice/tool", true, 1.0); err != nil {
		t.Fatalf("record check: %v", err)
	}
	p, _ = e.GetPriority(ctx, "alice/tool")
	if p.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after success", p.ConsecutiveFailures)
	}
}

func TestRecordUpdate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, "alice/tool")

	for i := 0; i < 2; i++ {
		if err := e.RecordCheck(ctx, "alice/tool", false, 0); err != nil {
			t.Fatalf("record check: %v", err)
		}
	}
	if err := e.RecordUpdate(ctx, "alice/tool"); err != nil {
		t.Fatalf("record update: %v", err)
	}

	p, err := e.GetPriority(ctx, "alice/tool")
	if err != nil {
		t.Fatalf("get priority: %v", err)
	}
	if p.UpdateCount != 1 {
		t.Errorf("UpdateCount = %d, want 1", p.UpdateCount)
	}
	if p.LastUpdate == nil {
		t.Error("expected LastUpdate to be set")
	}
	if p.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after update", p.ConsecutiveFailures)
	}
}

func TestIntervalForScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  int
	}{
		{"above high threshold", 0.6, model.MinCheckInterval},
		{"exactly high threshold", 0.5, model.MinCheckInterval},
		{"below low threshold", 0.05, model.MaxCheckInterval},
		{"exactly low threshold", 0.1, model.MaxCheckInterval},
		{"zero", 0, model.MaxCheckInterval},
		{"midpoint interpolates", 0.3, model.MaxCheckInterval - (model.MaxCheckInterval-model.MinCheckInterval)/2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IntervalForScore(tt.score); got != tt.want {
				t.Errorf("IntervalForScore(%v) = %d, want %d", tt.score, got, tt.want)
			}
		})
	}
}

func TestIntervalForScoreBoundsAndMonotonicity(t *testing.T) {
	prev := model.MaxCheckInterval
	for score := 0.0; score <= 1.0; score += 0.01 {
		got := IntervalForScore(score)
		if got < model.MinCheckInterval || got > model.MaxCheckInterval {
			t.Fatalf("IntervalForScore(%v) = %d, outside [%d, %d]",
				score, got, model.MinCheckInterval, model.MaxCheckInterval)
		}
		if got > prev {
			t.Fatalf("IntervalForScore(%v) = %d, increased from %d: not monotone", score, got, prev)
		}
		prev = got
	}
}

func TestRecalculate(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "alice/hot", "bob/quiet")

	// 5 releases in the window: raw score 5/7 ≈ 0.71 → minimum interval.
	for _, tag := range []string{"v1", "v2", "v3", "v4", "v5"} {
		if _, err := store.AddRelease(ctx, &model.Release{RepoName: "alice/hot", Tag: tag}); err != nil {
			t.Fatalf("add release: %v", err)
		}
	}

	if err := e.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	hot, err := e.GetPriority(ctx, "alice/hot")
	if err != nil {
		t.Fatalf("get priority: %v", err)
	}
	if hot.CheckInterval != model.MinCheckInterval {
		t.Errorf("hot repo interval = %d, want %d", hot.CheckInterval, model.MinCheckInterval)
	}
	if hot.PriorityScore < HighThreshold {
		t.Errorf("hot repo score = %v, want >= %v", hot.PriorityScore, HighThreshold)
	}

	quiet, err := e.GetPriority(ctx, "bob/quiet")
	if err != nil {
		t.Fatalf("get priority: %v", err)
	}
	if quiet.CheckInterval != model.MaxCheckInterval {
		t.Errorf("quiet repo interval = %d, want %d", quiet.CheckInterval, model.MaxCheckInterval)
	}
	if quiet.PriorityScore != 0 {
		t.Errorf("quiet repo score = %v, want 0", quiet.PriorityScore)
	}
}

func TestRecalculateFailurePenalty(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "alice/flaky")

	// 5 releases would normally pin the repo to the minimum interval.
	for _, tag := range []string{"v1", "v2", "v3", "v4", "v5"} {
		if _, err := store.AddRelease(ctx, &model.Release{RepoName: "alice/flaky", Tag: tag}); err != nil {
			t.Fatalf("add release: %v", err)
		}
	}

	if err := e.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	clean, _ := e.GetPriority(ctx, "alice/flaky")

	// Pile on failures and recalculate: the interval must not shrink.
	for i := 0; i < 5; i++ {
		if err := e.RecordCheck(ctx, "alice/flaky", false, 0); err != nil {
			t.Fatalf("record check: %v", err)
		}
	}
	if err := e.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	penalized, _ := e.GetPriority(ctx, "alice/flaky")

	if penalized.CheckInterval < clean.CheckInterval {
		t.Errorf("interval shrank under failures: %d -> %d", clean.CheckInterval, penalized.CheckInterval)
	}
	if penalized.PriorityScore > clean.PriorityScore {
		t.Errorf("score grew under failures: %v -> %v", clean.PriorityScore, penalized.PriorityScore)
	}
}

func TestShouldRecalculate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, "alice/tool")

	due, err := e.ShouldRecalculate(ctx)
	if err != nil {
		t.Fatalf("should recalculate: %v", err)
	}
	if !due {
		t.Error("expected recalculation to be due before the first pass")
	}

	if err := e.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	due, err = e.ShouldRecalculate(ctx)
	if err != nil {
		t.Fatalf("should recalculate: %v", err)
	}
	if due {
		t.Error("expected recalculation not to be due right after a pass")
	}

	// Move the clock past the recalculation period.
	e.SetNow(func() time.Time { return time.Now().Add(7 * time.Hour) })
	due, err = e.ShouldRecalculate(ctx)
	if err != nil {
		t.Fatalf("should recalculate: %v", err)
	}
	if !due {
		t.Error("expected recalculation to be due after the period elapsed")
	}
}

func TestIsDue(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, "alice/tool")

	now := time.Now().UTC()

	due, err := e.IsDue(ctx, "alice/tool", now)
	if err != nil {
		t.Fatalf("is due: %v", err)
	}
	if !due {
		t.Error("never-checked repository must be due")
	}

	if err := e.RecordCheck(ctx, "alice/tool", true, 1.0); err != nil {
		t.Fatalf("record check: %v", err)
	}

	due, err = e.IsDue(ctx, "alice/tool", now)
	if err != nil {
		t.Fatalf("is due: %v", err)
	}
	if due {
		t.Error("just-checked repository must not be due")
	}

	later := now.Add(time.Duration(model.DefaultCheckInterval)*time.Minute + time.Minute)
	due, err = e.IsDue(ctx, "alice/tool", later)
	if err != nil {
		t.Fatalf("is due: %v", err)
	}
	if !due {
		t.Error("repository must be due after its interval elapsed")
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "alice/hot", "bob/quiet", "carol/broken")

	for _, tag := range []string{"v1", "v2", "v3", "v4", "v5"} {
		if _, err := store.AddRelease(ctx, &model.Release{RepoName: "alice/hot", Tag: tag}); err != nil {
			t.Fatalf("add release: %v", err)
		}
	}
	for i := 0; i < 4; i++ {
		if err := e.RecordCheck(ctx, "carol/broken", false, 0); err != nil {
			t.Fatalf("record check: %v", err)
		}
	}
	if err := e.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	stats, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}

	if stats.TotalRepos != 3 {
		t.Errorf("TotalRepos = %d, want 3", stats.TotalRepos)
	}
	if stats.HighPriority != 1 {
		t.Errorf("HighPriority = %d, want 1", stats.HighPriority)
	}
	if stats.LowPriority != 2 {
		t.Errorf("LowPriority = %d, want 2", stats.LowPriority)
	}
	if stats.FailingRepos != 1 {
		t.Errorf("FailingRepos = %d, want 1", stats.FailingRepos)
	}
	if stats.TotalChecks != 4 {
		t.Errorf("TotalChecks = %d, want 4", stats.TotalChecks)
	}
}
