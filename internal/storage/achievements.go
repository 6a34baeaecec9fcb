package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/quest/internal/model"
)

// GetUnlockedAchievements returns the achievements the user unlocked, oldest first.
func (s *SQLiteStorage) GetUnlockedAchievements(ctx context.Context, userID string) ([]model.UnlockedAchievement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, unlocked_at
		FROM unlocked_achievements
		WHERE user_id = ?
		ORDER BY unlocked_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var unlocked []model.UnlockedAchievement
	for rows.Next() {
		var a model.UnlockedAchievement
		if err := rows.Scan(&a.Name, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		unlocked = append(unlocked, a)
	}

	return unlocked, rows.Err()
}

// UnlockAchievement records an unlock. Unlocking twice is a no-op.
func (s *SQLiteStorage) UnlockAchievement(ctx context.Context, userID, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO unlocked_achievements (user_id, name) VALUES (?, ?)`,
		userID, name); err != nil {
		return fmt.Errorf("failed to unlock achievement: %w", err)
	}

	slog.Debug("unlocked achievement", "user_id", userID, "name", name)
	return nil
}

// GetLeaderboardEntries returns one summary per user. Level and Rank are left for the caller.
func (s *SQLiteStorage) GetLeaderboardEntries(ctx context.Context) ([]model.LeaderboardEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name,
			COALESCE(p.xp, 0),
			(SELECT COUNT(*) FROM unlocked_achievements a WHERE a.user_id = u.id),
			(SELECT COUNT(*) FROM applications ap WHERE ap.user_id = u.id)
		FROM users u
		LEFT JOIN user_progress p ON p.user_id = u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.XP, &e.Achievements, &e.Applications); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
