// Package testutil provides shared test helpers for packages that need a real store.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/storage"
)

// TestDB is a migrated in-memory database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedUser("u1", "Ada")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedUser creates a user.
func (db *TestDB) SeedUser(userID, name string) {
	db.t.Helper()
	if err := db.Storage.EnsureUser(context.Background(), userID, name); err != nil {
		db.t.Fatalf("failed to seed user %q: %v", userID, err)
	}
}

// SeedApplications stores apps for the user and returns them with ids assigned.
func (db *TestDB) SeedApplications(userID string, apps ...model.Application) []model.Application {
	db.t.Helper()
	ctx := context.Background()

	out := make([]model.Application, len(apps))
	for i := range apps {
		app := apps[i]
		if _, err := db.Storage.SaveApplication(ctx, userID, &app); err != nil {
			db.t.Fatalf("failed to seed application %s: %v", app, err)
		}
		out[i] = app
	}
	return out
}

// SeedProgress sets the user's XP.
func (db *TestDB) SeedProgress(userID string, xp int) {
	db.t.Helper()
	if err := db.Storage.SaveUserProgress(context.Background(), userID, &model.UserProgress{XP: xp}); err != nil {
		db.t.Fatalf("failed to seed progress for %q: %v", userID, err)
	}
}

// SeedUnlocked marks achievements as unlocked for the user.
func (db *TestDB) SeedUnlocked(userID string, names ...string) {
	db.t.Helper()
	for _, name := range names {
		if err := db.Storage.UnlockAchievement(context.Background(), userID, name); err != nil {
			db.t.Fatalf("failed to seed achievement %q: %v", name, err)
		}
	}
}

// MustXP returns the stored XP of the user.
func (db *TestDB) MustXP(userID string) int {
	db.t.Helper()
	progress, err := db.Storage.GetUserProgress(context.Background(), userID)
	if err != nil {
		db.t.Fatalf("failed to load progress for %q: %v", userID, err)
	}
	return progress.XP
}

// MustApplications returns the stored applications of the user.
func (db *TestDB) MustApplications(userID string) []model.Application {
	db.t.Helper()
	apps, err := db.Storage.GetApplications(context.Background(), userID)
	if err != nil {
		db.t.Fatalf("failed to load applications for %q: %v", userID, err)
	}
	return apps
}
