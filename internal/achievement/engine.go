// Package achievement evaluates achievement rules against a user's aggregate state.
//
// Rules are data (see model.Achievement) interpreted by a small generic evaluator.
// Unlocking is monotone: an unlocked achievement is never re-evaluated or removed.
// Rewards feed back into XP, so evaluation repeats until a pass unlocks nothing.
package achievement

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/scoring"
)

// ErrPredicateCycle is wrapped by PredicateCycleError.
var ErrPredicateCycle = errors.New("achievement evaluation did not reach a fixed point")

// PredicateCycleError reports a rule table that keeps unlocking past the pass limit.
// It indicates a configuration fault, not a user error.
type PredicateCycleError struct {
	Pending []string
	Passes  int
}

func (e *PredicateCycleError) Error() string {
	return fmt.Sprintf("%s after %d passes (still unlocking: %v)", ErrPredicateCycle, e.Passes, e.Pending)
}

func (e *PredicateCycleError) Unwrap() error {
	return ErrPredicateCycle
}

// Evaluation is the outcome of one Evaluate call.
type Evaluation struct {
	Unlocked  []model.Achievement
	XP        int
	Level     int
	XPAwarded int
	Passes    int
}

// Names returns the names of the newly unlocked achievements.
func (e Evaluation) Names() []string {
	names := make([]string, len(e.Unlocked))
	for i, a := range e.Unlocked {
		names[i] = a.Name
	}
	return names
}

// Engine evaluates a fixed rule table.
type Engine struct {
	scorer    *scoring.Engine
	rules     []model.Achievement
	maxPasses int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses caps the number of evaluation passes.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// NewEngine creates an engine over rules. Rewards are applied through scorer.
func NewEngine(rules []model.Achievement, scorer *scoring.Engine, opts ...Option) (*Engine, error) {
	if scorer == nil {
		return nil, errors.New("scoring engine is required")
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	copied := make([]model.Achievement, len(rules))
	copy(copied, rules)

	e := &Engine{
		scorer: scorer,
		rules:  copied,
		// Each pass that does not settle unlocks at least one rule.
		maxPasses: len(copied) + 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns the rule table in definition order.
func (e *Engine) Rules() []model.Achievement {
	out := make([]model.Achievement, len(e.rules))
	copy(out, e.rules)
	return out
}

// Lookup returns the rule with name.
func (e *Engine) Lookup(name string) (model.Achievement, bool) {
	for _, r := range e.rules {
		if r.Name == name {
			return r, true
		}
	}
	return model.Achievement{}, false
}

// Aggregate builds the evaluation input for apps, xp and the unlocked names.
func (e *Engine) Aggregate(apps []model.Application, xp int, unlocked []string) Aggregate {
	return BuildAggregate(apps, xp, unlocked, e.scorer.LevelOf)
}

// Evaluate unlocks every rule the aggregate satisfies, applying rewards until a fixed point.
// The input is not modified. On a PredicateCycleError the returned Evaluation still
// holds the achievements unlocked before the limit was hit.
func (e *Engine) Evaluate(agg Aggregate) (Evaluation, error) {
	state := agg.clone()
	state.Level = e.scorer.LevelOf(state.XP)

	result := Evaluation{XP: state.XP, Level: state.Level}

	for pass := 1; pass <= e.maxPasses; pass++ {
		result.Passes = pass
		unlockedThisPass := 0

		for _, rule := range e.rules {
			if state.Unlocked[rule.Name] || !state.Satisfies(rule) {
				continue
			}

			xp, err := e.scorer.Award(state.XP, rule.XPReward)
			if err != nil {
				return result, fmt.Errorf("failed to award %s: %w", rule.Name, err)
			}

			state.Unlocked[rule.Name] = true
			state.XP = xp
			state.Level = e.scorer.LevelOf(xp)

			result.Unlocked = append(result.Unlocked, rule)
			result.XPAwarded += rule.XPReward
			result.XP = state.XP
			result.Level = state.Level
			unlockedThisPass++
		}

		if unlockedThisPass == 0 {
			return result, nil
		}
	}

	pending := e.pending(state)
	if len(pending) == 0 {
		return result, nil
	}
	err := &PredicateCycleError{Passes: e.maxPasses, Pending: pending}
	slog.Error("Achievement rules did not settle",
		"passes", e.maxPasses,
		"unlocked", len(result.Unlocked),
		"pending", pending)
	return result, err
}

// pending lists rules that would still unlock from state.
func (e *Engine) pending(state Aggregate) []string {
	var names []string
	for _, rule := range e.rules {
		if !state.Unlocked[rule.Name] && state.Satisfies(rule) {
			names = append(names, rule.Name)
		}
	}
	return names
}
