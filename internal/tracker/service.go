package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/service"
)

// Service runs single-record operations for a user against the store.
// Callers serialize operations per user.
type Service struct {
	store        service.Store
	validator    *record.Validator
	scorer       *scoring.Engine
	achievements *achievement.Engine
}

// NewService creates a tracker service.
func NewService(store service.Store, scorer *scoring.Engine, achievements *achievement.Engine, validator *record.Validator) *Service {
	if validator == nil {
		validator = record.NewValidator()
	}
	return &Service{
		store:        store,
		validator:    validator,
		scorer:       scorer,
		achievements: achievements,
	}
}

// Result is the outcome of a mutation.
type Result struct {
	State           State
	Application     model.Application
	NewAchievements []model.Achievement
	Notifications   []Notification
	XPGained        int
	AchievementXP   int
}

// Patch holds optional edits to an application. Nil fields are left unchanged.
// An empty AppliedDate clears the date.
type Patch struct {
	Company     *string
	Position    *string
	AppliedDate *string
	Notes       *string
}

// Snapshot loads the current state of userID.
func (s *Service) Snapshot(ctx context.Context, userID string) (State, error) {
	apps, err := s.store.GetApplications(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load applications: %w", err)
	}

	progress, err := s.store.GetUserProgress(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load progress: %w", err)
	}

	unlocked, err := s.store.GetUnlockedAchievements(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load achievements: %w", err)
	}
	names := make([]string, len(unlocked))
	for i, u := range unlocked {
		names[i] = u.Name
	}

	return ReduceAll(NewState(userID),
		Action{Kind: SetApplications, Applications: apps},
		Action{Kind: SetProgress, Progress: *progress},
		Action{Kind: UnlockAchievements, Names: names},
	)
}

// Create validates row, stores it and awards the create reward.
// Validation problems are returned as record.ValidationErrors.
func (s *Service) Create(ctx context.Context, userID string, row record.RawRow) (Result, error) {
	app, err := s.validator.Validate(row)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.EnsureUser(ctx, userID, ""); err != nil {
		return Result{}, fmt.Errorf("failed to register user: %w", err)
	}

	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.store.SaveApplication(ctx, userID, &app); err != nil {
		return Result{}, fmt.Errorf("failed to save application: %w", err)
	}

	next, err := Reduce(st, Action{Kind: AddApplication, Application: app})
	if err != nil {
		return Result{}, err
	}

	gained, err := s.award(ctx, userID, app.ID, scoring.ActionCreate)
	if err != nil {
		return Result{}, err
	}

	slog.Info("Application created", "user_id", userID, "application_id", app.ID, "company", app.Company)
	return s.settle(ctx, next, app, gained)
}

// UpdateStatus moves an application to status. The matching status reward is granted
// at most once per application.
func (s *Service) UpdateStatus(ctx context.Context, userID string, id int64, status string) (Result, error) {
	normalized, ok := record.NormalizeStatus(status)
	if !ok {
		return Result{}, record.ValidationErrors{{
			Field:   record.FieldStatus,
			Message: fmt.Sprintf("Invalid status: %s. Must be one of: %s", status, model.StatusNames()),
		}}
	}

	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	app, err := s.store.GetApplication(ctx, userID, id)
	if err != nil {
		return Result{}, err
	}
	if app.Status == normalized {
		return Result{State: st, Application: *app}, nil
	}

	previous := app.Status
	app.Status = normalized
	if err := s.store.UpdateApplication(ctx, userID, app); err != nil {
		return Result{}, fmt.Errorf("failed to update application: %w", err)
	}

	next, err := Reduce(st, Action{Kind: UpdateApplication, Application: *app})
	if err != nil {
		return Result{}, err
	}

	action, err := scoring.ActionForStatus(normalized)
	if err != nil {
		return Result{}, err
	}
	gained, err := s.award(ctx, userID, id, action)
	if err != nil {
		return Result{}, err
	}

	slog.Info("Application status changed",
		"user_id", userID,
		"application_id", id,
		"from", previous,
		"to", normalized,
		"xp", gained)
	return s.settle(ctx, next, *app, gained)
}

// Update applies patch to an application. Status changes go through UpdateStatus.
func (s *Service) Update(ctx context.Context, userID string, id int64, patch Patch) (Result, error) {
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	current, err := s.store.GetApplication(ctx, userID, id)
	if err != nil {
		return Result{}, err
	}

	row := record.RawRow{
		record.FieldCompany:  current.Company,
		record.FieldPosition: current.Position,
		record.FieldStatus:   string(current.Status),
		record.FieldNotes:    current.Notes,
	}
	if current.AppliedDate != nil {
		row[record.FieldAppliedDate] = current.AppliedDate.String()
	}
	apply := func(field string, value *string) {
		if value != nil {
			row[field] = *value
		}
	}
	apply(record.FieldCompany, patch.Company)
	apply(record.FieldPosition, patch.Position)
	apply(record.FieldAppliedDate, patch.AppliedDate)
	apply(record.FieldNotes, patch.Notes)

	edited, err := s.validator.Validate(row)
	if err != nil {
		return Result{}, err
	}
	edited.ID = current.ID
	edited.CreatedAt = current.CreatedAt

	if err := s.store.UpdateApplication(ctx, userID, &edited); err != nil {
		return Result{}, fmt.Errorf("failed to update application: %w", err)
	}

	next, err := Reduce(st, Action{Kind: UpdateApplication, Application: edited})
	if err != nil {
		return Result{}, err
	}

	slog.Info("Application edited", "user_id", userID, "application_id", id)
	return s.settle(ctx, next, edited, 0)
}

// Delete removes an application. XP and achievements already earned are kept.
func (s *Service) Delete(ctx context.Context, userID string, id int64) (State, error) {
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return State{}, err
	}

	if err := s.store.DeleteApplication(ctx, userID, id); err != nil {
		return State{}, err
	}

	next, err := Reduce(st, Action{Kind: DeleteApplication, ApplicationID: id})
	if err != nil {
		return State{}, err
	}

	slog.Info("Application deleted", "user_id", userID, "application_id", id)
	return next, nil
}

// award records action for an application and returns the XP it grants.
// An award already in the ledger grants nothing.
func (s *Service) award(ctx context.Context, userID string, applicationID int64, action scoring.ActionKind) (int, error) {
	fresh, err := s.store.RecordAward(ctx, userID, applicationID, string(action))
	if err != nil {
		return 0, fmt.Errorf("failed to record award: %w", err)
	}
	if !fresh {
		slog.Debug("Award already granted", "user_id", userID, "application_id", applicationID, "action", action)
		return 0, nil
	}
	return s.scorer.Reward(action)
}

// settle adds gained XP, unlocks achievements and persists progress.
func (s *Service) settle(ctx context.Context, st State, app model.Application, gained int) (Result, error) {
	userID := st.UserID
	before := st.Progress.XP

	xp, err := s.scorer.Award(before, gained)
	if err != nil {
		return Result{}, err
	}

	eval, evalErr := s.achievements.Evaluate(s.achievements.Aggregate(st.Applications, xp, st.Unlocked))
	var cycleErr *achievement.PredicateCycleError
	if evalErr != nil && !errors.As(evalErr, &cycleErr) {
		return Result{}, evalErr
	}

	for _, a := range eval.Unlocked {
		if err := s.store.UnlockAchievement(ctx, userID, a.Name); err != nil {
			return Result{}, fmt.Errorf("failed to unlock %s: %w", a.Name, err)
		}
	}

	if eval.XP != before {
		if err := s.store.SaveUserProgress(ctx, userID, &model.UserProgress{UserID: userID, XP: eval.XP}); err != nil {
			return Result{}, fmt.Errorf("failed to save progress: %w", err)
		}
	}

	actions := []Action{
		{Kind: SetProgress, Progress: model.UserProgress{UserID: userID, XP: eval.XP, UpdatedAt: time.Now()}},
		{Kind: UnlockAchievements, Names: eval.Names()},
	}
	notices := notificationsFor(gained, eval, s.scorer.LevelOf(before))
	for _, n := range notices {
		actions = append(actions, Action{Kind: AddNotification, Notification: n})
	}

	next, err := ReduceAll(st, actions...)
	if err != nil {
		return Result{}, err
	}

	return Result{
		State:           next,
		Application:     app,
		NewAchievements: eval.Unlocked,
		Notifications:   next.Notifications[len(st.Notifications):],
		XPGained:        gained,
		AchievementXP:   eval.XPAwarded,
	}, evalErr
}

func notificationsFor(gained int, eval achievement.Evaluation, levelBefore int) []Notification {
	var out []Notification
	if gained > 0 {
		out = append(out, Notification{
			Kind:    NotifyXPGained,
			Message: fmt.Sprintf("+%d XP", gained),
			XP:      gained,
		})
	}
	for _, a := range eval.Unlocked {
		out = append(out, Notification{
			Kind:        NotifyAchievementUnlocked,
			Message:     fmt.Sprintf("Achievement unlocked: %s %s", a.Icon, a.Name),
			Achievement: a.Name,
			XP:          a.XPReward,
		})
	}
	if eval.Level > levelBefore {
		out = append(out, Notification{
			Kind:    NotifyLevelUp,
			Message: fmt.Sprintf("Level up! You reached level %d", eval.Level),
			Level:   eval.Level,
		})
	}
	return out
}

// Stats summarizes a user's applications.
type Stats struct {
	ByStatus          map[model.Status]int `json:"by_status"`
	TotalApplications int                  `json:"total_applications"`
	Interviews        int                  `json:"interviews"`
	Offers            int                  `json:"offers"`
	InterviewRate     float64              `json:"interview_rate"`
	OfferRate         float64              `json:"offer_rate"`
}

// Profile is a user's score summary.
type Profile struct {
	UserID        string                      `json:"user_id"`
	Achievements  []model.UnlockedAchievement `json:"achievements"`
	Stats         Stats                       `json:"stats"`
	XP            int                         `json:"xp"`
	Level         int                         `json:"level"`
	XPToNextLevel int                         `json:"xp_to_next_level"`
}

// Profile returns the score summary of userID.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	apps, err := s.store.GetApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}

	progress, err := s.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	unlocked, err := s.store.GetUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	return &Profile{
		UserID:        userID,
		XP:            progress.XP,
		Level:         s.scorer.LevelOf(progress.XP),
		XPToNextLevel: s.scorer.XPToNextLevel(progress.XP),
		Stats:         StatsOf(apps),
		Achievements:  unlocked,
	}, nil
}

// StatsOf counts apps per status. Rates are percentages rounded to one decimal.
func StatsOf(apps []model.Application) Stats {
	stats := Stats{
		ByStatus:          make(map[model.Status]int, len(model.Statuses)),
		TotalApplications: len(apps),
	}
	for _, status := range model.Statuses {
		stats.ByStatus[status] = 0
	}
	for _, app := range apps {
		stats.ByStatus[app.Status]++
	}
	stats.Interviews = stats.ByStatus[model.StatusInterviewing]
	stats.Offers = stats.ByStatus[model.StatusOffer]
	stats.InterviewRate = percent(stats.Interviews, stats.TotalApplications)
	stats.OfferRate = percent(stats.Offers, stats.TotalApplications)
	return stats
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// CatalogEntry is an achievement with the user's unlock state.
type CatalogEntry struct {
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	model.Achievement
	Unlocked bool `json:"unlocked"`
}

// Catalog lists every achievement for a user.
type Catalog struct {
	Achievements []CatalogEntry `json:"achievements"`
	EarnedCount  int            `json:"earned_count"`
	TotalCount   int            `json:"total_count"`
}

// Achievements returns the achievement catalog with userID's unlock state.
func (s *Service) Achievements(ctx context.Context, userID string) (*Catalog, error) {
	unlocked, err := s.store.GetUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	at := make(map[string]time.Time, len(unlocked))
	for _, u := range unlocked {
		at[u.Name] = u.UnlockedAt
	}

	rules := s.achievements.Rules()
	catalog := &Catalog{
		Achievements: make([]CatalogEntry, len(rules)),
		TotalCount:   len(rules),
	}
	for i, rule := range rules {
		entry := CatalogEntry{Achievement: rule}
		if when, ok := at[rule.Name]; ok {
			entry.Unlocked = true
			entry.UnlockedAt = &when
			catalog.EarnedCount++
		}
		catalog.Achievements[i] = entry
	}
	return catalog, nil
}
