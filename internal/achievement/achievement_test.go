package achievement

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appsAt(n int, company string, status model.Status) []model.Application {
	apps := make([]model.Application, n)
	for i := range apps {
		apps[i] = model.Application{
			ID:       int64(i + 1),
			Company:  company,
			Position: fmt.Sprintf("Role %d", i+1),
			Status:   status,
		}
	}
	return apps
}

func newDefaultEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultRules(), scoring.New(), opts...)
	require.NoError(t, err)
	return e
}

func TestEvaluate_TenthApplicationUnlocksGettingThere(t *testing.T) {
	e := newDefaultEngine(t)

	// Sixth application: below the threshold of ten.
	sixth := e.Aggregate(appsAt(6, "Acme", model.StatusApplied), 60, []string{"First Steps"})
	got, err := e.Evaluate(sixth)
	require.NoError(t, err)
	assert.NotContains(t, got.Names(), "Getting There")
	assert.Empty(t, got.Unlocked)
	assert.Equal(t, 60, got.XP)

	// Tenth application: unlocks and pays the reward in the same evaluation.
	tenth := e.Aggregate(appsAt(10, "Acme", model.StatusApplied), 100, []string{"First Steps", "Getting Good At This"})
	got, err = e.Evaluate(tenth)
	require.NoError(t, err)
	assert.Equal(t, []string{"Getting There"}, got.Names())
	assert.Equal(t, 50, got.XPAwarded)
	assert.Equal(t, 150, got.XP)
	assert.Equal(t, 2, got.Level)
}

func TestEvaluate_SkipsAlreadyUnlocked(t *testing.T) {
	e := newDefaultEngine(t)

	agg := e.Aggregate(appsAt(1, "Acme", model.StatusApplied), 10, []string{"First Steps"})
	got, err := e.Evaluate(agg)
	require.NoError(t, err)
	assert.Empty(t, got.Unlocked)
	assert.Equal(t, 10, got.XP)
}

func TestEvaluate_DoesNotModifyInput(t *testing.T) {
	e := newDefaultEngine(t)

	agg := e.Aggregate(appsAt(1, "Acme", model.StatusApplied), 10, nil)
	got, err := e.Evaluate(agg)
	require.NoError(t, err)
	require.NotEmpty(t, got.Unlocked)

	assert.Empty(t, agg.Unlocked)
	assert.Equal(t, 10, agg.XP)
}

func TestEvaluate_CascadesToFixedPoint(t *testing.T) {
	rules := []model.Achievement{
		{Name: "Hundred Club", Kind: model.RuleXP, Threshold: 100, XPReward: 0},
		{Name: "Level Two", Kind: model.RuleLevel, Threshold: 2, XPReward: 5},
		{Name: "Starter", Kind: model.RuleApplications, Threshold: 1, XPReward: 100},
	}
	e, err := NewEngine(rules, scoring.New())
	require.NoError(t, err)

	got, err := e.Evaluate(e.Aggregate(appsAt(1, "Acme", model.StatusApplied), 0, nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"Starter", "Hundred Club", "Level Two"}, got.Names(), "detection order")
	assert.Equal(t, 105, got.XP)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 105, got.XPAwarded)
	assert.Equal(t, 3, got.Passes)
}

func TestEvaluate_PassLimitIsAConfigurationFault(t *testing.T) {
	rules := []model.Achievement{
		{Name: "Level Three", Kind: model.RuleLevel, Threshold: 3, XPReward: 100},
		{Name: "Level Two", Kind: model.RuleLevel, Threshold: 2, XPReward: 100},
		{Name: "Starter", Kind: model.RuleApplications, Threshold: 1, XPReward: 100},
	}
	e, err := NewEngine(rules, scoring.New(), WithMaxPasses(2))
	require.NoError(t, err)

	got, err := e.Evaluate(e.Aggregate(appsAt(1, "Acme", model.StatusApplied), 0, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPredicateCycle)

	var cycleErr *PredicateCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, 2, cycleErr.Passes)
	assert.Equal(t, []string{"Level Three"}, cycleErr.Pending)

	// Work done before the limit is kept.
	assert.Equal(t, []string{"Starter", "Level Two"}, got.Names())
	assert.Equal(t, 200, got.XP)

	// The default limit lets the same table settle.
	e, err = NewEngine(rules, scoring.New())
	require.NoError(t, err)
	got, err = e.Evaluate(e.Aggregate(appsAt(1, "Acme", model.StatusApplied), 0, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Starter", "Level Two", "Level Three"}, got.Names())
}

func TestEvaluate_UnlockedSetNeverShrinks(t *testing.T) {
	e := newDefaultEngine(t)

	var (
		unlocked []string
		xp       int
		apps     []model.Application
	)
	statuses := []model.Status{model.StatusApplied, model.StatusInterviewing, model.StatusRejected, model.StatusOffer}
	start := model.NewDate(2025, time.January, 1)

	for i := 0; i < 40; i++ {
		day := start.AddDays(i)
		apps = append(apps, model.Application{
			ID:          int64(i + 1),
			Company:     fmt.Sprintf("Company %d", i%12),
			Position:    "Engineer",
			Status:      statuses[i%len(statuses)],
			AppliedDate: &day,
		})
		xp += 10

		got, err := e.Evaluate(e.Aggregate(apps, xp, unlocked))
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.XP, xp)

		before := len(unlocked)
		unlocked = append(unlocked, got.Names()...)
		xp = got.XP

		require.Len(t, unlocked, before+len(got.Unlocked))
		for _, name := range got.Names() {
			assert.NotContains(t, unlocked[:before], name, "%s unlocked twice", name)
		}
	}

	assert.Contains(t, unlocked, "First Steps")
	assert.Contains(t, unlocked, "Getting There")
	assert.Contains(t, unlocked, "Consistent Grinder")
	assert.Contains(t, unlocked, "Diverse Applications")
	assert.Contains(t, unlocked, "WE DID IT!")
}

func TestAggregate_Satisfies(t *testing.T) {
	tests := []struct {
		name string
		apps []model.Application
		rule model.Achievement
		want bool
	}{
		{
			name: "quick success within five applications",
			apps: append(appsAt(3, "Acme", model.StatusApplied), model.Application{Company: "Initech", Position: "SWE", Status: model.StatusOffer}),
			rule: model.Achievement{Name: "q", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 1, MaxApplications: 5},
			want: true,
		},
		{
			name: "quick success after too many applications",
			apps: append(appsAt(8, "Acme", model.StatusApplied), model.Application{Company: "Initech", Position: "SWE", Status: model.StatusOffer}),
			rule: model.Achievement{Name: "q", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 1, MaxApplications: 5},
			want: false,
		},
		{
			name: "ratio below the minimum sample",
			apps: appsAt(2, "Acme", model.StatusInterviewing),
			rule: model.Achievement{Name: "r", Kind: model.RuleStatusRatio, Status: model.StatusInterviewing, Threshold: 0.1, MinApplications: 4},
			want: false,
		},
		{
			name: "ratio met",
			apps: append(appsAt(9, "Acme", model.StatusApplied), model.Application{Company: "Initech", Position: "SWE", Status: model.StatusInterviewing}),
			rule: model.Achievement{Name: "r", Kind: model.RuleStatusRatio, Status: model.StatusInterviewing, Threshold: 0.1, MinApplications: 4},
			want: true,
		},
		{
			name: "distinct companies ignore case",
			apps: []model.Application{
				{Company: "Acme", Position: "A", Status: model.StatusApplied},
				{Company: " acme ", Position: "B", Status: model.StatusApplied},
				{Company: "Initech", Position: "C", Status: model.StatusApplied},
			},
			rule: model.Achievement{Name: "d", Kind: model.RuleDistinctCompanies, Threshold: 3},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := BuildAggregate(tt.apps, 0, nil, scoring.LevelOf)
			assert.Equal(t, tt.want, agg.Satisfies(tt.rule))
		})
	}
}

func TestLongestStreak(t *testing.T) {
	d := func(day int) model.Date { return model.NewDate(2025, time.March, day) }

	tests := []struct {
		name string
		days []model.Date
		want int
	}{
		{name: "none", want: 0},
		{name: "single", days: []model.Date{d(1)}, want: 1},
		{name: "consecutive out of order", days: []model.Date{d(3), d(1), d(2)}, want: 3},
		{name: "same day counts once", days: []model.Date{d(1), d(1), d(2), d(2)}, want: 2},
		{name: "gap resets", days: []model.Date{d(1), d(2), d(4), d(5), d(6)}, want: 3},
		{name: "across month end", days: []model.Date{model.NewDate(2025, time.February, 28), d(1)}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestStreak(tt.days))
		})
	}
}

func TestLoadRules(t *testing.T) {
	input := `
achievements:
  - name: First Steps
    description: Apply once
    icon: "🎯"
    kind: applications
    threshold: 1
    xp_reward: 25
  - name: Interviewer
    kind: status_count
    status: Interviewing
    threshold: 2
    xp_reward: 40
`
	rules, err := LoadRules(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "First Steps", rules[0].Name)
	assert.Equal(t, model.RuleApplications, rules[0].Kind)
	assert.Equal(t, 25, rules[0].XPReward)
	assert.Equal(t, model.StatusInterviewing, rules[1].Status)
	assert.InDelta(t, 2.0, rules[1].Threshold, 0.0001)
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrInvalidRule},
		{name: "no achievements", input: "achievements: []\n", wantErr: ErrInvalidRule},
		{
			name:    "duplicate",
			input:   "achievements:\n  - {name: A, kind: xp, threshold: 1}\n  - {name: A, kind: xp, threshold: 2}\n",
			wantErr: ErrDuplicateRule,
		},
		{
			name:    "unknown kind",
			input:   "achievements:\n  - {name: A, kind: karma, threshold: 1}\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "status rule without status",
			input:   "achievements:\n  - {name: A, kind: status_count, threshold: 1}\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "negative reward",
			input:   "achievements:\n  - {name: A, kind: xp, threshold: 1, xp_reward: -4}\n",
			wantErr: ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := LoadRules(strings.NewReader("achievements:\n  - {name: A, kind: xp, bogus: 1}\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestDefaultRulesAreValid(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, ValidateRules(rules))
	assert.Len(t, rules, 20)

	e := newDefaultEngine(t)
	rule, ok := e.Lookup("Getting There")
	require.True(t, ok)
	assert.InDelta(t, 10.0, rule.Threshold, 0.0001)

	_, ok = e.Lookup("Nope")
	assert.False(t, ok)
}

func TestNewEngine_RequiresScorer(t *testing.T) {
	_, err := NewEngine(DefaultRules(), nil)
	assert.Error(t, err)
}
