package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/quest/internal/model"
)

// GetUserProgress returns the stored XP of the user. A user without a row starts at zero.
func (s *SQLiteStorage) GetUserProgress(ctx context.Context, userID string) (*model.UserProgress, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	progress := &model.UserProgress{UserID: userID}
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT xp, updated_at FROM user_progress WHERE user_id = ?`, userID,
	).Scan(&progress.XP, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user progress: %w", err)
	}
	if updatedAt.Valid {
		progress.UpdatedAt = updatedAt.Time
	}
	return progress, nil
}

// SaveUserProgress stores the XP of the user. XP never decreases; a lower value is ignored.
func (s *SQLiteStorage) SaveUserProgress(ctx context.Context, userID string, progress *model.UserProgress) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateProgress(progress); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, xp, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			xp = MAX(user_progress.xp, excluded.xp),
			updated_at = excluded.updated_at`,
		userID, progress.XP, now)
	if err != nil {
		return fmt.Errorf("failed to save user progress: %w", err)
	}

	progress.UserID = userID
	progress.UpdatedAt = now
	slog.Debug("saved user progress", "user_id", userID, "xp", progress.XP)
	return nil
}

// RecordAward registers an (application, action) award. It returns false if it already existed.
func (s *SQLiteStorage) RecordAward(ctx context.Context, userID string, applicationID int64, action string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return false, err
	}
	if err := validateString(action, "action"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO xp_awards (user_id, application_id, action) VALUES (?, ?, ?)`,
		userID, applicationID, action)
	if err != nil {
		return false, fmt.Errorf("failed to record award: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
