// Package storage provides the SQLite persistence layer for applications, progress and achievements.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/quest/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidApplication = errors.New("invalid application")
	ErrInvalidProgress    = errors.New("invalid progress")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateApplication checks the stored invariants of an application.
func validateApplication(app *model.Application) error {
	if app == nil {
		return fmt.Errorf("%w: application", ErrNilParameter)
	}
	if strings.TrimSpace(app.Company) == "" {
		return fmt.Errorf("%w: missing company", ErrInvalidApplication)
	}
	if strings.TrimSpace(app.Position) == "" {
		return fmt.Errorf("%w: missing position", ErrInvalidApplication)
	}
	if !app.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidApplication, app.Status)
	}
	return nil
}

// validateProgress rejects negative XP.
func validateProgress(progress *model.UserProgress) error {
	if progress == nil {
		return fmt.Errorf("%w: progress", ErrNilParameter)
	}
	if progress.XP < 0 {
		return fmt.Errorf("%w: xp cannot be negative", ErrInvalidProgress)
	}
	return nil
}
