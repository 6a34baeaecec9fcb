package model

import "time"

// UserProgress is the persisted score of a user.
// Level is intentionally absent: it is always derived from XP.
type UserProgress struct {
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
	XP        int       `json:"xp"`
}

// Achievement is a named milestone with a one-time unlock rule and XP reward.
type Achievement struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description" yaml:"description"`
	Icon            string   `json:"icon" yaml:"icon"`
	Kind            RuleKind `json:"kind" yaml:"kind"`
	Status          Status   `json:"status,omitempty" yaml:"status,omitempty"`
	Threshold       float64  `json:"threshold" yaml:"threshold"`
	XPReward        int      `json:"xp_reward" yaml:"xp_reward"`
	MinApplications int      `json:"min_applications,omitempty" yaml:"min_applications,omitempty"`
	MaxApplications int      `json:"max_applications,omitempty" yaml:"max_applications,omitempty"`
}

// RuleKind tags the aggregate measure an achievement rule compares against its threshold.
type RuleKind string

const (
	// RuleApplications compares the total number of applications.
	RuleApplications RuleKind = "applications"
	// RuleStatusCount compares the number of applications in Status.
	RuleStatusCount RuleKind = "status_count"
	// RuleDistinctCompanies compares the number of distinct companies applied to.
	RuleDistinctCompanies RuleKind = "distinct_companies"
	// RuleXP compares total XP.
	RuleXP RuleKind = "xp"
	// RuleLevel compares the derived level.
	RuleLevel RuleKind = "level"
	// RuleStreak compares the longest run of consecutive application days.
	RuleStreak RuleKind = "streak"
	// RuleStatusRatio compares the share of applications in Status.
	RuleStatusRatio RuleKind = "status_ratio"
)

// UnlockedAchievement records when a user unlocked an achievement.
type UnlockedAchievement struct {
	UnlockedAt time.Time `json:"unlocked_at"`
	Name       string    `json:"name"`
}

// LeaderboardEntry is the per-user summary used for ranking.
type LeaderboardEntry struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	XP           int    `json:"xp"`
	Level        int    `json:"level"`
	Achievements int    `json:"achievements"`
	Applications int    `json:"applications"`
	Rank         int    `json:"rank"`
}
