package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/config"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/storage"
	"github.com/Veraticus/quest/internal/tracker"
	"github.com/spf13/viper"
)

// app bundles the store and engines a command works with.
type app struct {
	store        *storage.SQLiteStorage
	scorer       *scoring.Engine
	achievements *achievement.Engine
	tracker      *tracker.Service
	cfg          config.Config
}

// openApp loads the configuration, opens and migrates the database and builds the engines.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	scoringCfg, err := cfg.ScoringOptions()
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewWithConfig(scoringCfg)
	if err != nil {
		return nil, err
	}

	rules := achievement.DefaultRules()
	if cfg.Achievements.File != "" {
		rules, err = achievement.LoadRulesFile(cfg.Achievements.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load achievement rules: %w", err)
		}
		slog.Debug("Loaded achievement rules", "file", cfg.Achievements.File, "count", len(rules))
	}
	engine, err := achievement.NewEngine(rules, scorer)
	if err != nil {
		return nil, err
	}

	store, err := openStorage(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	return &app{
		store:        store,
		scorer:       scorer,
		achievements: engine,
		tracker:      tracker.NewService(store, scorer, engine, nil),
		cfg:          cfg,
	}, nil
}

// openStorage opens the database at dbPath and applies pending migrations.
func openStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func (a *app) importer(opts ...importer.Option) *importer.Reconciler {
	opts = append([]importer.Option{importer.WithMaxRows(a.cfg.Import.MaxRows)}, opts...)
	return importer.New(a.store, a.scorer, a.achievements, opts...)
}

// user returns the acting user id and registers the user with its display name.
func (a *app) user(ctx context.Context) (string, error) {
	userID := viper.GetString("user.id")
	if userID == "" {
		return "", common.NewUserError("no user selected; pass --user", common.ErrMissingUser)
	}
	if err := a.store.EnsureUser(ctx, userID, viper.GetString("user.name")); err != nil {
		return "", err
	}
	return userID, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("%q is not an application id", arg), err)
	}
	return id, nil
}

// userFacing turns domain errors into messages worth printing without a stack of prefixes.
func userFacing(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, record.ErrValidation):
		return common.NewUserError("Invalid application: "+err.Error(), err)
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError("Application not found", err)
	default:
		return err
	}
}

// tolerateCycle downgrades a rule table that never settles to a warning; the change itself was saved.
func tolerateCycle(err error) error {
	if errors.Is(err, achievement.ErrPredicateCycle) {
		slog.Warn("Achievement rules did not settle", "error", err)
		return nil
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
