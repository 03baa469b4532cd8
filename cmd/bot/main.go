package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"release_bot/internal/bot"
	"release_bot/internal/config"
	"release_bot/internal/github"
	"release_bot/internal/notify"
	"release_bot/internal/priority"
	"release_bot/internal/scheduler"
	"release_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	engine := priority.New(store, cfg.Repos, log)
	source := github.NewClient(cfg.GitHubToken, log)

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, engine, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	notifier := notify.New(store, b, cfg.ChannelID, log)
	sched := scheduler.New(store, source, engine, notifier, cfg.Repos, log)
	sched.SetTickInterval(time.Duration(cfg.TickMinutes) * time.Minute)
	b.SetChecker(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "repos", len(cfg.Repos), "tick_minutes", cfg.TickMinutes)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
