package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	scorer := scoring.New()
	engine, err := achievement.NewEngine(achievement.DefaultRules(), scorer)
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC) }
	return NewService(db.Storage, scorer, engine, record.NewValidatorWithClock(clock)), db
}

func kindsOf(notices []Notification) []NotificationKind {
	kinds := make([]NotificationKind, len(notices))
	for i, n := range notices {
		kinds[i] = n.Kind
	}
	return kinds
}

func achievementNames(list []model.Achievement) []string {
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Name
	}
	return names
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, "u1", record.RawRow{
		record.FieldCompany:     "Acme",
		record.FieldPosition:    "SWE Intern",
		record.FieldStatus:      "applied",
		record.FieldAppliedDate: "03/14",
	})
	require.NoError(t, err)

	assert.Positive(t, result.Application.ID)
	assert.Equal(t, "2025-03-14", result.Application.AppliedDate.String())
	assert.Equal(t, 10, result.XPGained)
	assert.Equal(t, 25, result.AchievementXP)
	assert.Equal(t, []string{"First Steps"}, achievementNames(result.NewAchievements))
	assert.Equal(t, []NotificationKind{NotifyXPGained, NotifyAchievementUnlocked}, kindsOf(result.Notifications))

	assert.Equal(t, 35, result.State.Progress.XP)
	assert.Len(t, result.State.Applications, 1)
	assert.True(t, result.State.IsUnlocked("First Steps"))

	assert.Equal(t, 35, db.MustXP("u1"))
}

func TestService_CreateInvalid(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.Create(context.Background(), "u1", record.RawRow{
		record.FieldPosition: "SWE",
		record.FieldStatus:   "Hired",
	})
	require.ErrorIs(t, err, record.ErrValidation)

	var verrs record.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.HasField(record.FieldCompany))
	assert.True(t, verrs.HasField(record.FieldStatus))
	assert.Empty(t, db.MustApplications("u1"))
}

func TestService_UpdateStatus(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", record.RawRow{
		record.FieldCompany:  "Acme",
		record.FieldPosition: "SWE",
		record.FieldStatus:   "Applied",
	})
	require.NoError(t, err)
	id := created.Application.ID

	t.Run("first interview", func(t *testing.T) {
		result, err := svc.UpdateStatus(ctx, "u1", id, "interview")
		require.NoError(t, err)

		assert.Equal(t, model.StatusInterviewing, result.Application.Status)
		assert.Equal(t, 20, result.XPGained)
		// 35 + 20 = 55, +75 reaches level 2, +50 for level 2.
		assert.Equal(t, []string{"Interview Prep Starts Now", "Getting Good At This"}, achievementNames(result.NewAchievements))
		assert.Equal(t, 180, result.State.Progress.XP)
		assert.Contains(t, kindsOf(result.Notifications), NotifyLevelUp)
		assert.Equal(t, 180, db.MustXP("u1"))
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		result, err := svc.UpdateStatus(ctx, "u1", id, "Interviewing")
		require.NoError(t, err)
		assert.Equal(t, 0, result.XPGained)
		assert.Empty(t, result.Notifications)
	})

	t.Run("returning to a status does not pay twice", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "u1", id, "Applied")
		require.NoError(t, err)

		result, err := svc.UpdateStatus(ctx, "u1", id, "Interviewing")
		require.NoError(t, err)
		assert.Equal(t, 0, result.XPGained)
		assert.Equal(t, 180, db.MustXP("u1"))
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "u1", id, "Hired")
		var verrs record.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.True(t, verrs.HasField(record.FieldStatus))
	})

	t.Run("unknown application", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "u1", id+100, "Offer")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("another user's application", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "u2", id, "Offer")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestService_Update(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", record.RawRow{
		record.FieldCompany:     "Acme",
		record.FieldPosition:    "SWE",
		record.FieldStatus:      "Offer",
		record.FieldAppliedDate: "2025-01-05",
		record.FieldNotes:       "referral",
	})
	require.NoError(t, err)
	id := created.Application.ID
	xpBefore := db.MustXP("u1")

	result, err := svc.Update(ctx, "u1", id, Patch{
		Company:     strPtr("Acme Corp"),
		AppliedDate: strPtr(""),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", result.Application.Company)
	assert.Equal(t, "SWE", result.Application.Position)
	assert.Equal(t, model.StatusOffer, result.Application.Status)
	assert.Nil(t, result.Application.AppliedDate)
	assert.Equal(t, "referral", result.Application.Notes)
	assert.Equal(t, 0, result.XPGained)
	assert.Equal(t, xpBefore, db.MustXP("u1"))

	stored := db.MustApplications("u1")
	require.Len(t, stored, 1)
	assert.Equal(t, "Acme Corp", stored[0].Company)

	_, err = svc.Update(ctx, "u1", id, Patch{Position: strPtr("  ")})
	var verrs record.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.HasField(record.FieldPosition))
}

func TestService_DeleteKeepsXP(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", record.RawRow{
		record.FieldCompany:  "Acme",
		record.FieldPosition: "SWE",
		record.FieldStatus:   "Applied",
	})
	require.NoError(t, err)

	st, err := svc.Delete(ctx, "u1", created.Application.ID)
	require.NoError(t, err)
	assert.Empty(t, st.Applications)
	assert.Equal(t, 35, st.Progress.XP)
	assert.True(t, st.IsUnlocked("First Steps"))
	assert.Equal(t, 35, db.MustXP("u1"))

	_, err = svc.Delete(ctx, "u1", created.Application.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_Profile(t *testing.T) {
	svc, db := newTestService(t)
	db.SeedApplications("u1",
		model.Application{Company: "Acme", Position: "SWE", Status: model.StatusInterviewing},
		model.Application{Company: "Globex", Position: "SWE", Status: model.StatusApplied},
		model.Application{Company: "Initech", Position: "SWE", Status: model.StatusRejected},
	)
	db.SeedProgress("u1", 130)
	db.SeedUnlocked("u1", "First Steps")

	profile, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 130, profile.XP)
	assert.Equal(t, 2, profile.Level)
	assert.Equal(t, 70, profile.XPToNextLevel)
	assert.Equal(t, 3, profile.Stats.TotalApplications)
	assert.Equal(t, 1, profile.Stats.Interviews)
	assert.Equal(t, 0, profile.Stats.Offers)
	assert.InDelta(t, 33.3, profile.Stats.InterviewRate, 0.001)
	assert.InDelta(t, 0.0, profile.Stats.OfferRate, 0.001)
	assert.Equal(t, 1, profile.Stats.ByStatus[model.StatusRejected])
	assert.Equal(t, 0, profile.Stats.ByStatus[model.StatusGhosted])
	require.Len(t, profile.Achievements, 1)
}

func TestStatsOf_Empty(t *testing.T) {
	stats := StatsOf(nil)
	assert.Equal(t, 0, stats.TotalApplications)
	assert.Zero(t, stats.InterviewRate)
	assert.Len(t, stats.ByStatus, len(model.Statuses))
}

func TestService_Achievements(t *testing.T) {
	svc, db := newTestService(t)
	db.SeedUnlocked("u1", "First Steps", "Retired Badge")

	catalog, err := svc.Achievements(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, len(achievement.DefaultRules()), catalog.TotalCount)
	assert.Equal(t, 1, catalog.EarnedCount, "names outside the rule table are not counted")
	require.NotEmpty(t, catalog.Achievements)

	first := catalog.Achievements[0]
	assert.Equal(t, "First Steps", first.Name)
	assert.True(t, first.Unlocked)
	assert.NotNil(t, first.UnlockedAt)
	assert.False(t, catalog.Achievements[1].Unlocked)
	assert.Nil(t, catalog.Achievements[1].UnlockedAt)
}

func TestService_Snapshot(t *testing.T) {
	svc, db := newTestService(t)
	db.SeedApplications("u1", model.Application{Company: "Acme", Position: "SWE", Status: model.StatusApplied})
	db.SeedProgress("u1", 10)
	db.SeedUnlocked("u1", "First Steps")

	st, err := svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UserID)
	assert.Len(t, st.Applications, 1)
	assert.Equal(t, 10, st.Progress.XP)
	assert.Equal(t, []string{"First Steps"}, st.Unlocked)
	assert.Empty(t, st.Notifications)
}
