// Package tracker holds a user's application state and the operations that change it.
//
// State changes go through Reduce, which takes a snapshot and an Action and returns
// the next snapshot. Service wraps Reduce with persistence, scoring and achievements.
package tracker

import (
	"errors"
	"fmt"

	"github.com/Veraticus/quest/internal/model"
)

// Reducer errors.
var (
	ErrUnknownAction         = errors.New("unknown tracker action")
	ErrApplicationNotFound   = errors.New("application not in state")
	ErrDuplicateApplication  = errors.New("application id already in state")
	ErrXPDecrease            = errors.New("xp cannot decrease")
	ErrNotificationNotFound  = errors.New("notification not in state")
	ErrMissingApplicationID  = errors.New("application has no id")
	ErrMismatchedProgressKey = errors.New("progress belongs to another user")
)

// NotificationKind classifies a notification.
type NotificationKind string

// Notification kinds.
const (
	NotifyXPGained            NotificationKind = "xp_gained"
	NotifyLevelUp             NotificationKind = "level_up"
	NotifyAchievementUnlocked NotificationKind = "achievement_unlocked"
)

// Notification is an event worth showing to the user.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	ID          string           `json:"id"`
	Message     string           `json:"message"`
	Achievement string           `json:"achievement,omitempty"`
	XP          int              `json:"xp,omitempty"`
	Level       int              `json:"level,omitempty"`
}

// State is an immutable snapshot of one user's tracker.
type State struct {
	Progress      model.UserProgress  `json:"progress"`
	UserID        string              `json:"user_id"`
	Applications  []model.Application `json:"applications"`
	Unlocked      []string            `json:"unlocked"`
	Notifications []Notification      `json:"notifications"`
	nextNotice    int
}

// ActionKind enumerates state transitions.
type ActionKind int

// Action kinds.
const (
	SetApplications ActionKind = iota
	AddApplication
	UpdateApplication
	DeleteApplication
	SetProgress
	UnlockAchievements
	AddNotification
	DismissNotification
)

func (k ActionKind) String() string {
	switch k {
	case SetApplications:
		return "set_applications"
	case AddApplication:
		return "add_application"
	case UpdateApplication:
		return "update_application"
	case DeleteApplication:
		return "delete_application"
	case SetProgress:
		return "set_progress"
	case UnlockAchievements:
		return "unlock_achievements"
	case AddNotification:
		return "add_notification"
	case DismissNotification:
		return "dismiss_notification"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is one state transition. Only the fields of its Kind are read.
type Action struct {
	Notification   Notification
	Progress       model.UserProgress
	NotificationID string
	Applications   []model.Application
	Names          []string
	Application    model.Application
	Kind           ActionKind
	ApplicationID  int64
}

// NewState returns an empty state for userID.
func NewState(userID string) State {
	return State{
		UserID:        userID,
		Progress:      model.UserProgress{UserID: userID},
		Applications:  []model.Application{},
		Unlocked:      []string{},
		Notifications: []Notification{},
	}
}

// Find returns the application with id.
func (s State) Find(id int64) (model.Application, bool) {
	for _, app := range s.Applications {
		if app.ID == id {
			return app, true
		}
	}
	return model.Application{}, false
}

// IsUnlocked reports whether name is unlocked.
func (s State) IsUnlocked(name string) bool {
	for _, u := range s.Unlocked {
		if u == name {
			return true
		}
	}
	return false
}

// Reduce applies action to s and returns the next state. s is never modified.
func Reduce(s State, action Action) (State, error) {
	next := s.clone()

	switch action.Kind {
	case SetApplications:
		next.Applications = append([]model.Application{}, action.Applications...)

	case AddApplication:
		if action.Application.ID == 0 {
			return s, ErrMissingApplicationID
		}
		if _, exists := s.Find(action.Application.ID); exists {
			return s, fmt.Errorf("%w: %d", ErrDuplicateApplication, action.Application.ID)
		}
		next.Applications = append(next.Applications, action.Application)

	case UpdateApplication:
		idx := s.indexOf(action.Application.ID)
		if idx < 0 {
			return s, fmt.Errorf("%w: %d", ErrApplicationNotFound, action.Application.ID)
		}
		next.Applications[idx] = action.Application

	case DeleteApplication:
		idx := s.indexOf(action.ApplicationID)
		if idx < 0 {
			return s, fmt.Errorf("%w: %d", ErrApplicationNotFound, action.ApplicationID)
		}
		next.Applications = append(next.Applications[:idx], next.Applications[idx+1:]...)

	case SetProgress:
		if action.Progress.UserID != "" && s.UserID != "" && action.Progress.UserID != s.UserID {
			return s, ErrMismatchedProgressKey
		}
		if action.Progress.XP < s.Progress.XP {
			return s, fmt.Errorf("%w: %d -> %d", ErrXPDecrease, s.Progress.XP, action.Progress.XP)
		}
		next.Progress = action.Progress
		next.Progress.UserID = s.UserID

	case UnlockAchievements:
		for _, name := range action.Names {
			if !next.IsUnlocked(name) {
				next.Unlocked = append(next.Unlocked, name)
			}
		}

	case AddNotification:
		n := action.Notification
		if n.ID == "" {
			next.nextNotice++
			n.ID = fmt.Sprintf("n%d", next.nextNotice)
		}
		next.Notifications = append(next.Notifications, n)

	case DismissNotification:
		idx := -1
		for i, n := range s.Notifications {
			if n.ID == action.NotificationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s, fmt.Errorf("%w: %s", ErrNotificationNotFound, action.NotificationID)
		}
		next.Notifications = append(next.Notifications[:idx], next.Notifications[idx+1:]...)

	default:
		return s, fmt.Errorf("%w: %s", ErrUnknownAction, action.Kind)
	}

	return next, nil
}

// ReduceAll applies actions in order and stops at the first error.
func ReduceAll(s State, actions ...Action) (State, error) {
	var err error
	for _, action := range actions {
		if s, err = Reduce(s, action); err != nil {
			return s, fmt.Errorf("%s: %w", action.Kind, err)
		}
	}
	return s, nil
}

func (s State) indexOf(id int64) int {
	for i, app := range s.Applications {
		if app.ID == id {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	next := s
	next.Applications = append([]model.Application{}, s.Applications...)
	next.Unlocked = append([]string{}, s.Unlocked...)
	next.Notifications = append([]Notification{}, s.Notifications...)
	return next
}
