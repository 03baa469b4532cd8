// Package model defines the domain types used across the application.
package model

import "time"

// Release is a normalized GitHub release, independent of which source
// (REST API or atom feed) produced it. Body may be empty for sources
// that do not carry release notes.
type Release struct {
	RepoName    string
	Tag         string
	Name        string
	Body        string
	PublishedAt *time.Time
	Assets      []Asset
}

// Asset is a single downloadable release artifact.
type Asset struct {
	Name        string
	DownloadURL string
}

// RepoPriority holds the adaptive scheduling state for one repository.
// CheckInterval is always within [MinCheckInterval, MaxCheckInterval];
// PriorityScore is only rewritten by the periodic recalculation pass.
type RepoPriority struct {
	RepoName            string
	UpdateCount         int
	LastUpdate          *time.Time
	CheckInterval       int // minutes
	PriorityScore       float64
	LastCheck           *time.Time
	ConsecutiveFailures int
	TotalChecks         int
	AvgResponseTime     float64 // seconds
}

// Scheduling bounds in minutes. Defaults sized for a small VPS deployment
// polling the public GitHub API.
const (
	MinCheckInterval     = 30
	MaxCheckInterval     = 2880
	DefaultCheckInterval = 720
)

// User is a registered bot user. Users are never deleted; inactivity is
// derived from LastActivity.
type User struct {
	ID                    int64
	JoinedAt              time.Time
	LastActivity          time.Time
	CommandsUsed          int
	NotificationsReceived int
}
