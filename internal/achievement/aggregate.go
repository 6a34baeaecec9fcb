package achievement

import (
	"sort"
	"strings"

	"github.com/Veraticus/quest/internal/model"
)

// Aggregate is the derived per-user summary rules are evaluated against.
type Aggregate struct {
	StatusCounts      map[model.Status]int
	Unlocked          map[string]bool
	TotalApplications int
	DistinctCompanies int
	XP                int
	Level             int
	Streak            int
}

// BuildAggregate summarizes apps for a user holding xp and the unlocked achievement names.
// levelOf derives the level from xp.
func BuildAggregate(apps []model.Application, xp int, unlocked []string, levelOf func(int) int) Aggregate {
	agg := Aggregate{
		StatusCounts:      make(map[model.Status]int, len(model.Statuses)),
		Unlocked:          make(map[string]bool, len(unlocked)),
		TotalApplications: len(apps),
		XP:                xp,
		Level:             levelOf(xp),
	}

	companies := make(map[string]struct{}, len(apps))
	days := make([]model.Date, 0, len(apps))
	for _, app := range apps {
		agg.StatusCounts[app.Status]++
		companies[strings.ToLower(strings.TrimSpace(app.Company))] = struct{}{}
		if app.AppliedDate != nil {
			days = append(days, *app.AppliedDate)
		}
	}
	agg.DistinctCompanies = len(companies)
	agg.Streak = LongestStreak(days)

	for _, name := range unlocked {
		agg.Unlocked[name] = true
	}
	return agg
}

// LongestStreak returns the longest run of consecutive calendar days present in days.
// Several applications on one day count once.
func LongestStreak(days []model.Date) int {
	if len(days) == 0 {
		return 0
	}

	sorted := make([]model.Date, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, current := 1, 1
	for i := 1; i < len(sorted); i++ {
		switch {
		case sorted[i].Equal(sorted[i-1]):
			continue
		case sorted[i].Equal(sorted[i-1].AddDays(1)):
			current++
		default:
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

func (a Aggregate) clone() Aggregate {
	out := a
	out.StatusCounts = make(map[model.Status]int, len(a.StatusCounts))
	for k, v := range a.StatusCounts {
		out.StatusCounts[k] = v
	}
	out.Unlocked = make(map[string]bool, len(a.Unlocked))
	for k, v := range a.Unlocked {
		out.Unlocked[k] = v
	}
	return out
}

// measure returns the aggregate value a rule compares against its threshold.
func (a Aggregate) measure(rule model.Achievement) float64 {
	switch rule.Kind {
	case model.RuleApplications:
		return float64(a.TotalApplications)
	case model.RuleStatusCount:
		return float64(a.StatusCounts[rule.Status])
	case model.RuleDistinctCompanies:
		return float64(a.DistinctCompanies)
	case model.RuleXP:
		return float64(a.XP)
	case model.RuleLevel:
		return float64(a.Level)
	case model.RuleStreak:
		return float64(a.Streak)
	case model.RuleStatusRatio:
		if a.TotalApplications == 0 {
			return 0
		}
		return float64(a.StatusCounts[rule.Status]) / float64(a.TotalApplications)
	default:
		return 0
	}
}

// Satisfies reports whether the aggregate meets rule.
func (a Aggregate) Satisfies(rule model.Achievement) bool {
	if rule.MinApplications > 0 && a.TotalApplications < rule.MinApplications {
		return false
	}
	if rule.MaxApplications > 0 && a.TotalApplications > rule.MaxApplications {
		return false
	}
	return a.measure(rule) >= rule.Threshold
}
