// Package scoring computes XP rewards and levels.
package scoring

import (
	"errors"
	"fmt"

	"github.com/Veraticus/quest/internal/model"
)

// ActionKind identifies a state-changing action that earns XP.
type ActionKind string

// Action kinds.
const (
	ActionCreate             ActionKind = "create"
	ActionStatusApplied      ActionKind = "status_applied"
	ActionStatusInterviewing ActionKind = "status_interviewing"
	ActionStatusOffer        ActionKind = "status_offer"
	ActionStatusRejected     ActionKind = "status_rejected"
	ActionStatusGhosted      ActionKind = "status_ghosted"
	ActionStatusWithdrawn    ActionKind = "status_withdrawn"
)

const defaultLevelStep = 100

// Errors returned by the engine.
var (
	ErrUnknownAction  = errors.New("unknown scoring action")
	ErrNegativeXP     = errors.New("xp cannot be negative")
	ErrInvalidRewards = errors.New("invalid reward table")
)

// Rewards maps each action to the XP it grants.
type Rewards map[ActionKind]int

// DefaultRewards returns the built-in reward table.
func DefaultRewards() Rewards {
	return Rewards{
		ActionCreate:             10,
		ActionStatusApplied:      0,
		ActionStatusInterviewing: 20,
		ActionStatusOffer:        50,
		ActionStatusRejected:     5,
		ActionStatusGhosted:      3,
		ActionStatusWithdrawn:    1,
	}
}

// Config holds scoring options.
type Config struct {
	Rewards   Rewards
	LevelStep int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Rewards:   DefaultRewards(),
		LevelStep: defaultLevelStep,
	}
}

// Engine applies the reward table.
type Engine struct {
	rewards   Rewards
	levelStep int
}

// New creates an engine with the default configuration.
func New() *Engine {
	e, _ := NewWithConfig(DefaultConfig())
	return e
}

// NewWithConfig creates an engine with a custom configuration.
// Missing reward entries fall back to the defaults.
func NewWithConfig(config Config) (*Engine, error) {
	if config.LevelStep <= 0 {
		return nil, fmt.Errorf("%w: level step must be positive, got %d", ErrInvalidRewards, config.LevelStep)
	}

	rewards := DefaultRewards()
	for kind, xp := range config.Rewards {
		if _, known := rewards[kind]; !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, kind)
		}
		if xp < 0 {
			return nil, fmt.Errorf("%w: reward for %s is negative", ErrInvalidRewards, kind)
		}
		rewards[kind] = xp
	}

	return &Engine{rewards: rewards, levelStep: config.LevelStep}, nil
}

// Reward returns the XP granted by action.
func (e *Engine) Reward(action ActionKind) (int, error) {
	xp, ok := e.rewards[action]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return xp, nil
}

// ApplyAction returns currentXP plus the reward for action.
func (e *Engine) ApplyAction(currentXP int, action ActionKind) (int, error) {
	if currentXP < 0 {
		return 0, ErrNegativeXP
	}
	xp, err := e.Reward(action)
	if err != nil {
		return currentXP, err
	}
	return currentXP + xp, nil
}

// Award adds a non-negative bonus such as an achievement reward.
func (e *Engine) Award(currentXP, amount int) (int, error) {
	if currentXP < 0 || amount < 0 {
		return currentXP, ErrNegativeXP
	}
	return currentXP + amount, nil
}

// LevelOf derives the level from XP. Level 1 starts at zero XP.
func (e *Engine) LevelOf(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/e.levelStep + 1
}

// XPToNextLevel returns how much XP is missing to reach the next level.
func (e *Engine) XPToNextLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return e.LevelOf(xp)*e.levelStep - xp
}

// LevelStep returns the XP width of a level.
func (e *Engine) LevelStep() int {
	return e.levelStep
}

// ActionForStatus returns the action awarded for moving an application into status.
func ActionForStatus(status model.Status) (ActionKind, error) {
	switch status {
	case model.StatusApplied:
		return ActionStatusApplied, nil
	case model.StatusInterviewing:
		return ActionStatusInterviewing, nil
	case model.StatusOffer:
		return ActionStatusOffer, nil
	case model.StatusRejected:
		return ActionStatusRejected, nil
	case model.StatusGhosted:
		return ActionStatusGhosted, nil
	case model.StatusWithdrawn:
		return ActionStatusWithdrawn, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrUnknownAction, status)
	}
}

// LevelOf derives the level with the default step.
func LevelOf(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/defaultLevelStep + 1
}
