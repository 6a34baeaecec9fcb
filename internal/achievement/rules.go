package achievement

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/quest/internal/model"
	"gopkg.in/yaml.v3"
)

// Rule table errors.
var (
	ErrInvalidRule   = errors.New("invalid achievement rule")
	ErrDuplicateRule = errors.New("duplicate achievement name")
)

// DefaultRules returns the built-in achievement table.
func DefaultRules() []model.Achievement {
	return []model.Achievement{
		{Name: "First Steps", Description: "Apply to your first co-op of the cycle", Icon: "🎯", Kind: model.RuleApplications, Threshold: 1, XPReward: 25},
		{Name: "Getting There", Description: "Apply to 10 co-ops", Icon: "💪", Kind: model.RuleApplications, Threshold: 10, XPReward: 50},
		{Name: "Application Master", Description: "Apply to 25 co-ops", Icon: "📚", Kind: model.RuleApplications, Threshold: 25, XPReward: 100},
		{Name: "Co-Op Grinder", Description: "Apply to 50 co-ops", Icon: "🏃", Kind: model.RuleApplications, Threshold: 50, XPReward: 200},
		{Name: "Interview Prep Starts Now", Description: "Get your first interview", Icon: "🎤", Kind: model.RuleStatusCount, Status: model.StatusInterviewing, Threshold: 1, XPReward: 75},
		{Name: "Interview Pro", Description: "Get 5 interviews", Icon: "🎭", Kind: model.RuleStatusCount, Status: model.StatusInterviewing, Threshold: 5, XPReward: 150},
		{Name: "WE DID IT!", Description: "Receive your first offer", Icon: "🏆", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 1, XPReward: 300},
		{Name: "Offer Collector", Description: "Receive 3 offers", Icon: "💎", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 3, XPReward: 500},
		{Name: "Getting Good At This", Description: "Reach level 2", Icon: "⭐", Kind: model.RuleLevel, Threshold: 2, XPReward: 50},
		{Name: "Level Up!", Description: "Reach level 5", Icon: "🌟", Kind: model.RuleLevel, Threshold: 5, XPReward: 100},
		{Name: "10 Levels of Co-Op Grind, Wow", Description: "Reach level 10", Icon: "🔟", Kind: model.RuleLevel, Threshold: 10, XPReward: 250},
		{Name: "XP Hunter", Description: "Earn 500 total XP", Icon: "🔥", Kind: model.RuleXP, Threshold: 500, XPReward: 100},
		{Name: "XP Master", Description: "Earn 1000 total XP", Icon: "⚡", Kind: model.RuleXP, Threshold: 1000, XPReward: 200},
		{Name: "XP Legend", Description: "Earn 2000 total XP", Icon: "👑", Kind: model.RuleXP, Threshold: 2000, XPReward: 500},
		{Name: "Consistent Grinder", Description: "Apply to co-ops for 7 consecutive days", Icon: "📅", Kind: model.RuleStreak, Threshold: 7, XPReward: 150},
		{Name: "Diverse Applications", Description: "Apply to 10 different companies", Icon: "🏢", Kind: model.RuleDistinctCompanies, Threshold: 10, XPReward: 125},
		{Name: "Rejection Resilience", Description: "Get rejected 10 times (but keep going!)", Icon: "🛡️", Kind: model.RuleStatusCount, Status: model.StatusRejected, Threshold: 10, XPReward: 100},
		{Name: "Quick Success", Description: "Get an offer within 5 applications", Icon: "🚀", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 1, MaxApplications: 5, XPReward: 400},
		{Name: "High Interview Rate", Description: "Get interviews for 10% of your applications (min 4 apps)", Icon: "📊", Kind: model.RuleStatusRatio, Status: model.StatusInterviewing, Threshold: 0.1, MinApplications: 4, XPReward: 175},
		{Name: "Perfect Streak", Description: "Get 3 offers in a row", Icon: "🎯", Kind: model.RuleStatusCount, Status: model.StatusOffer, Threshold: 3, XPReward: 600},
	}
}

type ruleFile struct {
	Achievements []model.Achievement `yaml:"achievements"`
}

// LoadRules reads a YAML rule table of the form
//
//	achievements:
//	  - name: First Steps
//	    kind: applications
//	    threshold: 1
//	    xp_reward: 25
func LoadRules(r io.Reader) ([]model.Achievement, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty rule file", ErrInvalidRule)
		}
		return nil, fmt.Errorf("failed to decode achievement rules: %w", err)
	}

	if err := ValidateRules(file.Achievements); err != nil {
		return nil, err
	}
	return file.Achievements, nil
}

// LoadRulesFile reads a YAML rule table from path.
func LoadRulesFile(path string) ([]model.Achievement, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user's config
	if err != nil {
		return nil, fmt.Errorf("failed to open achievement rules: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadRules(f)
}

// ValidateRules checks that every rule can be interpreted and names are unique.
func ValidateRules(rules []model.Achievement) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: no achievements defined", ErrInvalidRule)
	}

	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return fmt.Errorf("%w: rule %d has no name", ErrInvalidRule, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, name)
		}
		seen[name] = true

		if rule.XPReward < 0 {
			return fmt.Errorf("%w: %s has a negative reward", ErrInvalidRule, name)
		}
		if rule.Threshold < 0 {
			return fmt.Errorf("%w: %s has a negative threshold", ErrInvalidRule, name)
		}
		if rule.MinApplications < 0 || rule.MaxApplications < 0 {
			return fmt.Errorf("%w: %s has a negative application guard", ErrInvalidRule, name)
		}

		switch rule.Kind {
		case model.RuleApplications, model.RuleDistinctCompanies, model.RuleXP, model.RuleLevel, model.RuleStreak:
			if rule.Status != "" {
				return fmt.Errorf("%w: %s sets a status on a %s rule", ErrInvalidRule, name, rule.Kind)
			}
		case model.RuleStatusCount, model.RuleStatusRatio:
			if !rule.Status.IsValid() {
				return fmt.Errorf("%w: %s needs a valid status, got %q", ErrInvalidRule, name, rule.Status)
			}
			if rule.Kind == model.RuleStatusRatio && rule.Threshold > 1 {
				return fmt.Errorf("%w: %s ratio threshold must be at most 1", ErrInvalidRule, name)
			}
		default:
			return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidRule, name, rule.Kind)
		}
	}
	return nil
}
