// Package importer reconciles bulk application imports against a user's stored records.
//
// A batch moves through Parsing, Validating, Deduplicating, Scoring and Reporting once.
// Bad rows are reported and skipped; a payload that cannot be read at all fails the
// whole batch with a *PayloadParseError.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/service"
	"github.com/google/uuid"
)

// DefaultMaxRows is the largest batch accepted by default.
const DefaultMaxRows = 1000

// Stage is the position of a batch in the import pipeline.
type Stage int

// Import stages in order.
const (
	StageParsing Stage = iota
	StageValidating
	StageDeduplicating
	StageScoring
	StageReporting
)

func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "parsing"
	case StageValidating:
		return "validating"
	case StageDeduplicating:
		return "deduplicating"
	case StageScoring:
		return "scoring"
	case StageReporting:
		return "reporting"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ProgressFunc is called after each input row with the number of rows handled so far.
type ProgressFunc func(done, total int)

// Reconciler imports batches for one store.
type Reconciler struct {
	store        service.Store
	validator    *record.Validator
	scorer       *scoring.Engine
	achievements *achievement.Engine
	progress     ProgressFunc
	newID        func() string
	maxRows      int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMaxRows caps the batch size.
func WithMaxRows(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxRows = n
		}
	}
}

// WithProgress registers a per-row progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Reconciler) {
		r.progress = fn
	}
}

// WithValidator replaces the row validator, typically to inject a clock.
func WithValidator(v *record.Validator) Option {
	return func(r *Reconciler) {
		if v != nil {
			r.validator = v
		}
	}
}

// New creates a reconciler.
func New(store service.Store, scorer *scoring.Engine, achievements *achievement.Engine, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:        store,
		validator:    record.NewValidator(),
		scorer:       scorer,
		achievements: achievements,
		newID:        uuid.NewString,
		maxRows:      DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRows returns the batch size limit.
func (r *Reconciler) MaxRows() int {
	return r.maxRows
}

// ImportPayload parses payload in format and imports the rows for userID.
func (r *Reconciler) ImportPayload(ctx context.Context, userID string, format Format, payload io.Reader) (*model.ImportReport, error) {
	rows, err := Parse(format, payload)
	if err != nil {
		slog.Warn("Import payload rejected", "user_id", userID, "format", format, "error", err)
		return nil, err
	}
	return r.Import(ctx, userID, rows)
}

// Source yields raw rows from an external system.
type Source interface {
	ReadRows(ctx context.Context) ([]record.RawRow, error)
}

// ImportSource reads rows from src and imports them for userID.
func (r *Reconciler) ImportSource(ctx context.Context, userID string, src Source) (*model.ImportReport, error) {
	rows, err := src.ReadRows(ctx)
	if err != nil {
		slog.Warn("Import source failed", "user_id", userID, "error", err)
		return nil, err
	}
	return r.Import(ctx, userID, rows)
}

// batch is the working state of one Import call.
type batch struct {
	report   *model.ImportReport
	apps     []model.Application
	byKey    map[string][]model.Application
	unlocked []string
	reported map[string]bool
	userID   string
	xp       int
}

// Import processes rows in order for userID and returns the report.
// Row numbers are 1-based positions in rows. Nil entries mark blank input lines;
// they keep their number and are counted in BlankRowsSkipped only.
//
// Per-row validation problems and duplicates are recorded in the report. Store
// failures stop the batch: rows accepted before the failure stay persisted together
// with the XP they earned, and the error is returned without a report.
//
// If the achievement rules fail to settle, the batch still completes and the report
// is returned together with an error wrapping achievement.ErrPredicateCycle.
func (r *Reconciler) Import(ctx context.Context, userID string, rows []record.RawRow) (*model.ImportReport, error) {
	if userID == "" {
		return nil, common.ErrMissingUser
	}

	logger := slog.With("user_id", userID)
	logger.Debug("Import stage", "stage", StageParsing, "rows", len(rows))

	if len(rows) > r.maxRows {
		return nil, parseError("", fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(rows), r.maxRows))
	}

	b, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var configErr error
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, r.abort(ctx, b, err)
		}

		if row == nil {
			b.report.BlankRowsSkipped++
			slog.Debug("Row skipped", "stage", StageValidating, "row", i+1, "reason", "blank")
			if r.progress != nil {
				r.progress(i+1, len(rows))
			}
			continue
		}

		rowErr := r.processRow(ctx, b, i+1, row)
		var cycleErr *achievement.PredicateCycleError
		switch {
		case rowErr == nil:
		case errors.As(rowErr, &cycleErr):
			if configErr == nil {
				configErr = rowErr
			}
		default:
			return nil, r.abort(ctx, b, fmt.Errorf("row %d: %w", i+1, rowErr))
		}

		if r.progress != nil {
			r.progress(i+1, len(rows))
		}
	}

	logger.Debug("Import stage", "stage", StageReporting)
	if err := r.saveProgress(ctx, b); err != nil {
		return nil, err
	}

	report := b.report
	report.Summary.TotalProcessed = len(rows) - report.BlankRowsSkipped
	report.FinalXP = b.xp
	report.FinalLevel = r.scorer.LevelOf(b.xp)

	logger.Info("Import finished",
		"import_id", report.ImportID,
		"total", report.Summary.TotalProcessed,
		"successful", report.Summary.Successful,
		"failed", report.Summary.Failed,
		"duplicates", report.DuplicatesSkipped,
		"blank", report.BlankRowsSkipped,
		"xp_gained", report.TotalXPGained,
		"new_achievements", len(report.NewAchievements))

	return report, configErr
}

func (r *Reconciler) load(ctx context.Context, userID string) (*batch, error) {
	if err := r.store.EnsureUser(ctx, userID, ""); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	existing, err := r.store.GetApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}

	progress, err := r.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	unlocked, err := r.store.GetUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	b := &batch{
		report: &model.ImportReport{
			ImportID:          r.newID(),
			NewAchievements:   []model.Achievement{},
			FailedImports:     []model.RowFailure{},
			SuccessfulImports: []model.ImportedRow{},
			Duplicates:        []model.RowDuplicate{},
		},
		apps:     existing,
		byKey:    make(map[string][]model.Application, len(existing)),
		reported: make(map[string]bool),
		userID:   userID,
		xp:       progress.XP,
	}
	for _, app := range existing {
		b.byKey[app.DedupKey()] = append(b.byKey[app.DedupKey()], app)
	}
	for _, u := range unlocked {
		b.unlocked = append(b.unlocked, u.Name)
	}
	return b, nil
}

// processRow runs one row through validation, dedup and scoring.
func (r *Reconciler) processRow(ctx context.Context, b *batch, rowNum int, row record.RawRow) error {
	app, err := r.validator.Validate(row)
	if err != nil {
		var verrs record.ValidationErrors
		messages := []string{err.Error()}
		if errors.As(err, &verrs) {
			messages = verrs.Messages()
		}
		b.report.FailedImports = append(b.report.FailedImports, model.RowFailure{Row: rowNum, Errors: messages})
		b.report.Summary.Failed++
		slog.Debug("Row rejected", "stage", StageValidating, "row", rowNum, "errors", len(messages))
		return nil
	}

	if b.isDuplicate(app) {
		b.report.DuplicatesSkipped++
		b.report.Duplicates = append(b.report.Duplicates, model.RowDuplicate{
			Row:      rowNum,
			Company:  app.Company,
			Position: app.Position,
		})
		slog.Debug("Row skipped", "stage", StageDeduplicating, "row", rowNum, "company", app.Company)
		return nil
	}

	id, err := r.store.SaveApplication(ctx, b.userID, &app)
	if err != nil {
		return err
	}
	app.ID = id
	slog.Debug("Row accepted", "stage", StageScoring, "row", rowNum, "application_id", id)

	gained, err := r.awardCreate(ctx, b, id)
	if err != nil {
		return err
	}

	b.apps = append(b.apps, app)
	b.byKey[app.DedupKey()] = append(b.byKey[app.DedupKey()], app)
	b.report.Summary.Successful++
	b.report.SuccessfulImports = append(b.report.SuccessfulImports, model.ImportedRow{
		Row:           rowNum,
		ApplicationID: id,
		Company:       app.Company,
		Position:      app.Position,
		Status:        app.Status,
		XPGained:      gained,
	})

	return r.evaluate(ctx, b)
}

func (b *batch) isDuplicate(app model.Application) bool {
	for _, other := range b.byKey[app.DedupKey()] {
		if app.IsDuplicateOf(other) {
			return true
		}
	}
	return false
}

// awardCreate grants the create reward once per application.
func (r *Reconciler) awardCreate(ctx context.Context, b *batch, applicationID int64) (int, error) {
	fresh, err := r.store.RecordAward(ctx, b.userID, applicationID, string(scoring.ActionCreate))
	if err != nil {
		return 0, err
	}
	if !fresh {
		return 0, nil
	}

	xp, err := r.scorer.ApplyAction(b.xp, scoring.ActionCreate)
	if err != nil {
		return 0, err
	}
	gained := xp - b.xp
	b.xp = xp
	b.report.TotalXPGained += gained
	return gained, nil
}

// evaluate unlocks achievements against the updated aggregate.
// A predicate cycle still applies what was unlocked before the pass limit.
func (r *Reconciler) evaluate(ctx context.Context, b *batch) error {
	result, evalErr := r.achievements.Evaluate(r.achievements.Aggregate(b.apps, b.xp, b.unlocked))
	var cycleErr *achievement.PredicateCycleError
	if evalErr != nil && !errors.As(evalErr, &cycleErr) {
		return evalErr
	}

	for _, a := range result.Unlocked {
		if err := r.store.UnlockAchievement(ctx, b.userID, a.Name); err != nil {
			return err
		}
		b.unlocked = append(b.unlocked, a.Name)
		if !b.reported[a.Name] {
			b.reported[a.Name] = true
			b.report.NewAchievements = append(b.report.NewAchievements, a)
		}
	}
	b.report.AchievementXP += result.XPAwarded
	b.xp = result.XP

	return evalErr
}

func (r *Reconciler) saveProgress(ctx context.Context, b *batch) error {
	if err := r.store.SaveUserProgress(ctx, b.userID, &model.UserProgress{UserID: b.userID, XP: b.xp}); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// abort persists the XP of rows accepted so far and returns cause.
func (r *Reconciler) abort(ctx context.Context, b *batch, cause error) error {
	if b.report.Summary.Successful > 0 {
		// The request context may already be done.
		saveCtx := context.WithoutCancel(ctx)
		if err := r.saveProgress(saveCtx, b); err != nil {
			slog.Error("Failed to save progress after aborted import", "user_id", b.userID, "error", err)
		}
	}
	slog.Error("Import aborted",
		"user_id", b.userID,
		"import_id", b.report.ImportID,
		"accepted", b.report.Summary.Successful,
		"error", cause)
	return cause
}
