// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default repositories watched when GITHUB_REPOS is not set.
var defaultRepos = []string{
	"andru-kun/wildrig-multi",
	"OneZeroMiner/onezerominer",
	"trexminer/T-Rex",
	"xmrig/xmrig",
	"Lolliedieb/lolMiner-releases",
	"doktor83/SRBMiner-Multi",
	"nicehash/nicehashminer",
	"pooler/cpuminer",
	"rplant8/cpuminer-opt-rplant",
	"JayDDee/cpuminer-opt",
	"alephium/gpu-miner",
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	GitHubToken      string
	ChannelID        int64 // broadcast channel, 0 = disabled
	AdminIDs         []int64
	DatabasePath     string
	LogLevel         string
	Repos            []string
	TickMinutes      int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var channelID int64
	if raw := os.Getenv("CHANNEL_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHANNEL_ID %q: %w", raw, err)
		}
		channelID = id
	}

	var adminIDs []int64
	if raw := os.Getenv("ADMIN_IDS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ADMIN_IDS: %w", s, err)
			}
			adminIDs = append(adminIDs, uid)
		}
	}

	repos := defaultRepos
	if raw := os.Getenv("GITHUB_REPOS"); raw != "" {
		repos = nil
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if strings.Count(s, "/") != 1 {
				return nil, fmt.Errorf("invalid repository %q in GITHUB_REPOS, want owner/name", s)
			}
			repos = append(repos, s)
		}
		if len(repos) == 0 {
			return nil, fmt.Errorf("GITHUB_REPOS is set but contains no repositories")
		}
	}

	tick := 30
	if raw := os.Getenv("CHECK_TICK_MINUTES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("CHECK_TICK_MINUTES must be a positive integer, got %q", raw)
		}
		tick = n
	}

	return &Config{
		TelegramBotToken: token,
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		ChannelID:        channelID,
		AdminIDs:         adminIDs,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		Repos:            repos,
		TickMinutes:      tick,
	}, nil
}

// IsAdmin checks whether a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
