package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"release_bot/internal/model"
	"release_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const defaultRetentionDays = 14

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db            *sql.DB
	retentionDays int
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, retentionDays: defaultRetentionDays}, nil
}

// SetHistoryRetention overrides the default 14-day history retention window.
func (s *SQLite) SetHistoryRetention(days int) {
	s.retentionDays = days
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetLastTag returns the last-seen release tag for a repository, or "" if
// the repository has never been recorded.
func (s *SQLite) GetLastTag(ctx context.Context, repo string) (string, error) {
	var tag string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_tag FROM repo_state WHERE repo_name = ?`, repo,
	).Scan(&tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last tag: %w", err)
	}
	return tag, nil
}

// SetLastTag records the last-seen release tag for a repository.
func (s *SQLite) SetLastTag(ctx context.Context, repo, tag string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repo_state (repo_name, last_tag, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(repo_name) DO UPDATE SET last_tag = excluded.last_tag, updated_at = excluded.updated_at`,
		repo, tag, now,
	)
	if err != nil {
		return fmt.Errorf("set last tag: %w", err)
	}
	return nil
}

// AddRelease appends a release to the history. Returns false when the
// (repo, tag) pair is already present. Old entries are pruned on every add.
func (s *SQLite) AddRelease(ctx context.Context, rel *model.Release) (bool, error) {
	assets, err := json.Marshal(assetsOrEmpty(rel.Assets))
	if err != nil {
		return false, fmt.Errorf("marshal assets: %w", err)
	}

	var published *string
	if rel.PublishedAt != nil {
		v := rel.PublishedAt.UTC().Format(timeLayout)
		published = &v
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO release_history (repo_name, tag, name, body, published_at, assets, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rel.RepoName, rel.Tag, rel.Name, rel.Body, published, string(assets), now.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert release: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	cutoff := now.AddDate(0, 0, -s.retentionDays).Format(timeLayout)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM release_history WHERE recorded_at < ?`, cutoff,
	); err != nil {
		return n > 0, fmt.Errorf("prune history: %w", err)
	}

	return n > 0, nil
}

// RecentReleases returns releases recorded within the trailing number of
// days, newest first.
func (s *SQLite) RecentReleases(ctx context.Context, days int) ([]model.Release, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_name, tag, name, body, published_at, assets FROM release_history
		 WHERE recorded_at >= ? ORDER BY recorded_at DESC, id DESC`, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent releases: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanReleases(rows)
}

// ReleasesOnDate returns releases recorded on the given calendar day (UTC).
func (s *SQLite) ReleasesOnDate(ctx context.Context, day time.Time) ([]model.Release, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_name, tag, name, body, published_at, assets FROM release_history
		 WHERE recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at DESC, id DESC`,
		start.Format(timeLayout), end.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query releases by date: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanReleases(rows)
}

// CountReleasesSince counts history entries for a repository recorded at or
// after the given time.
func (s *SQLite) CountReleasesSince(ctx context.Context, repo string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM release_history WHERE repo_name = ? AND recorded_at >= ?`,
		repo, since.UTC().Format(timeLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count releases: %w", err)
	}
	return count, nil
}

// GetFilter returns the keyword filter for a user, or nil if none is set.
func (s *SQLite) GetFilter(ctx context.Context, userID int64) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT keywords FROM user_filters WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get filter: %w", err)
	}
	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return keywords, nil
}

// SetFilter stores a user's keyword filter. An empty list clears the entry,
// so "empty filter" and "no filter" behave identically.
func (s *SQLite) SetFilter(ctx context.Context, userID int64, keywords []string) error {
	if len(keywords) == 0 {
		return s.ClearFilter(ctx, userID)
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_filters (user_id, keywords) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET keywords = excluded.keywords`,
		userID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("set filter: %w", err)
	}
	return nil
}

// ClearFilter removes a user's keyword filter.
func (s *SQLite) ClearFilter(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_filters WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear filter: %w", err)
	}
	return nil
}

// TouchUser upserts a user record, bumping the activity timestamp and the
// command counter.
func (s *SQLite) TouchUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, joined_at, last_activity, commands_used) VALUES (?, ?, ?, 1)
		 ON CONFLICT(user_id) DO UPDATE SET last_activity = excluded.last_activity,
		                                    commands_used = commands_used + 1`,
		userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

// RecordNotification increments a user's delivered-notification counter.
func (s *SQLite) RecordNotification(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET notifications_received = notifications_received + 1 WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// ListUsers returns all registered users.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, joined_at, last_activity, commands_used, notifications_received
		 FROM users ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var joined, active string
		if err := rows.Scan(&u.ID, &joined, &active, &u.CommandsUsed, &u.NotificationsReceived); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.JoinedAt, _ = time.Parse(timeLayout, joined)
		u.LastActivity, _ = time.Parse(timeLayout, active)
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetPriority returns the priority record for a repository, or nil if none
// exists yet.
func (s *SQLite) GetPriority(ctx context.Context, repo string) (*model.RepoPriority, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT repo_name, update_count, last_update, check_interval, priority_score,
		        last_check, consecutive_failures, total_checks, average_response_time
		 FROM repo_priorities WHERE repo_name = ?`, repo,
	)
	p, err := scanPriority(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SavePriority upserts a priority record.
func (s *SQLite) SavePriority(ctx context.Context, p *model.RepoPriority) error {
	var lastUpdate, lastCheck *string
	if p.LastUpdate != nil {
		v := p.LastUpdate.UTC().Format(timeLayout)
		lastUpdate = &v
	}
	if p.LastCheck != nil {
		v := p.LastCheck.UTC().Format(timeLayout)
		lastCheck = &v
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repo_priorities (repo_name, update_count, last_update, check_interval,
		                              priority_score, last_check, consecutive_failures,
		                              total_checks, average_response_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repo_name) DO UPDATE SET
		     update_count = excluded.update_count,
		     last_update = excluded.last_update,
		     check_interval = excluded.check_interval,
		     priority_score = excluded.priority_score,
		     last_check = excluded.last_check,
		     consecutive_failures = excluded.consecutive_failures,
		     total_checks = excluded.total_checks,
		     average_response_time = excluded.average_response_time`,
		p.RepoName, p.UpdateCount, lastUpdate, p.CheckInterval, p.PriorityScore,
		lastCheck, p.ConsecutiveFailures, p.TotalChecks, p.AvgResponseTime,
	)
	if err != nil {
		return fmt.Errorf("save priority: %w", err)
	}
	return nil
}

// ListPriorities returns all priority records ordered by score, highest first.
func (s *SQLite) ListPriorities(ctx context.Context) ([]model.RepoPriority, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_name, update_count, last_update, check_interval, priority_score,
		        last_check, consecutive_failures, total_checks, average_response_time
		 FROM repo_priorities ORDER BY priority_score DESC, repo_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query priorities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var priorities []model.RepoPriority
	for rows.Next() {
		p, err := scanPriority(rows)
		if err != nil {
			return nil, err
		}
		priorities = append(priorities, *p)
	}
	return priorities, rows.Err()
}

// GetMeta returns a metadata value, or "" if the key is absent.
func (s *SQLite) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value.
func (s *SQLite) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

func assetsOrEmpty(assets []model.Asset) []model.Asset {
	if assets == nil {
		return []model.Asset{}
	}
	return assets
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPriority(row scannable) (*model.RepoPriority, error) {
	var p model.RepoPriority
	var lastUpdate, lastCheck sql.NullString
	err := row.Scan(&p.RepoName, &p.UpdateCount, &lastUpdate, &p.CheckInterval,
		&p.PriorityScore, &lastCheck, &p.ConsecutiveFailures, &p.TotalChecks, &p.AvgResponseTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan priority: %w", err)
	}
	if lastUpdate.Valid {
		t, _ := time.Parse(timeLayout, lastUpdate.String)
		p.LastUpdate = &t
	}
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		p.LastCheck = &t
	}
	return &p, nil
}

func scanReleases(rows *sql.Rows) ([]model.Release, error) {
	var releases []model.Release
	for rows.Next() {
		var rel model.Release
		var published sql.NullString
		var assets string
		err := rows.Scan(&rel.RepoName, &rel.Tag, &rel.Name, &rel.Body, &published, &assets)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		if published.Valid {
			t, _ := time.Parse(timeLayout, published.String)
			rel.PublishedAt = &t
		}
		if err := json.Unmarshal([]byte(assets), &rel.Assets); err != nil {
			return nil, fmt.Errorf("decode assets: %w", err)
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}
