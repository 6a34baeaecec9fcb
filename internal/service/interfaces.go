// Package service defines the collaborator contracts the domain engines depend on.
package service

import (
	"context"

	"github.com/Veraticus/quest/internal/model"
)

// Store defines the persistence contract used by the tracker and the importer.
// Implementations must be safe for one in-flight mutation per user; callers
// serialize writes for the same user.
type Store interface {
	// Users
	EnsureUser(ctx context.Context, userID, name string) error

	// Application operations
	GetApplications(ctx context.Context, userID string) ([]model.Application, error)
	GetApplication(ctx context.Context, userID string, id int64) (*model.Application, error)
	SaveApplication(ctx context.Context, userID string, app *model.Application) (int64, error)
	UpdateApplication(ctx context.Context, userID string, app *model.Application) error
	DeleteApplication(ctx context.Context, userID string, id int64) error

	// Progress tracking
	GetUserProgress(ctx context.Context, userID string) (*model.UserProgress, error)
	SaveUserProgress(ctx context.Context, userID string, progress *model.UserProgress) error

	// RecordAward registers that action earned XP for an application.
	// It returns false when the award was already recorded.
	RecordAward(ctx context.Context, userID string, applicationID int64, action string) (bool, error)

	// Achievement operations
	GetUnlockedAchievements(ctx context.Context, userID string) ([]model.UnlockedAchievement, error)
	UnlockAchievement(ctx context.Context, userID, name string) error
}

// LeaderboardStore exposes the cross-user summaries ranked by the leaderboard.
type LeaderboardStore interface {
	GetLeaderboardEntries(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Storage is the full persistence layer used by the command line and the HTTP adapter.
type Storage interface {
	Store
	LeaderboardStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
