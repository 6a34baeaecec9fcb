package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/model"
)

// ErrApplicationNotFound is returned when an application does not exist for the user.
var ErrApplicationNotFound = fmt.Errorf("application %w", common.ErrNotFound)

// EnsureUser creates the user row if it does not exist. A non-empty name replaces the stored one.
func (s *SQLiteStorage) EnsureUser(ctx context.Context, userID, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END`,
		userID, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetApplications returns every application of the user in creation order.
func (s *SQLiteStorage) GetApplications(ctx context.Context, userID string) ([]model.Application, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getApplicationsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getApplicationsTx(ctx context.Context, q queryable, userID string) ([]model.Application, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, company, position, status, applied_date, notes, created_at
		FROM applications
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var apps []model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}

	return apps, rows.Err()
}

// GetApplication returns one application owned by the user.
func (s *SQLiteStorage) GetApplication(ctx context.Context, userID string, id int64) (*model.Application, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, company, position, status, applied_date, notes, created_at
		FROM applications
		WHERE user_id = ? AND id = ?`, userID, id)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

// SaveApplication inserts a new application and returns its id.
func (s *SQLiteStorage) SaveApplication(ctx context.Context, userID string, app *model.Application) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateApplication(app); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (user_id, company, position, status, applied_date, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, app.Company, app.Position, string(app.Status), dateValue(app.AppliedDate), app.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to save application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	app.ID = id
	slog.Debug("saved application", "user_id", userID, "id", id, "company", app.Company)
	return id, nil
}

// UpdateApplication replaces the editable fields of an existing application.
func (s *SQLiteStorage) UpdateApplication(ctx context.Context, userID string, app *model.Application) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateApplication(app); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET company = ?, position = ?, status = ?, applied_date = ?, notes = ?
		WHERE user_id = ? AND id = ?`,
		app.Company, app.Position, string(app.Status), dateValue(app.AppliedDate), app.Notes, userID, app.ID)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	return requireOneRow(result, ErrApplicationNotFound)
}

// DeleteApplication removes an application. Awarded XP is kept.
func (s *SQLiteStorage) DeleteApplication(ctx context.Context, userID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	return requireOneRow(result, ErrApplicationNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		app     model.Application
		status  string
		applied sql.NullString
	)
	if err := row.Scan(&app.ID, &app.Company, &app.Position, &status, &applied, &app.Notes, &app.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	app.Status = model.Status(status)
	if applied.Valid && applied.String != "" {
		d, err := model.ParseDate(applied.String)
		if err != nil {
			return nil, fmt.Errorf("application %d: %w", app.ID, err)
		}
		app.AppliedDate = &d
	}
	return &app, nil
}

func dateValue(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func requireOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
