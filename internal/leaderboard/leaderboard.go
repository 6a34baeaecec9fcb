// Package leaderboard ranks users by score.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/quest/internal/model"
)

// By selects the ranking measure.
type By string

// Ranking measures.
const (
	ByXP           By = "xp"
	ByAchievements By = "achievements"
)

// ErrUnknownMeasure is returned for an unsupported ranking measure.
var ErrUnknownMeasure = errors.New("unknown leaderboard measure")

// ParseBy parses a ranking measure. Empty means ByXP.
func ParseBy(s string) (By, error) {
	switch By(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByXP:
		return ByXP, nil
	case ByAchievements:
		return ByAchievements, nil
	default:
		return "", fmt.Errorf("%w: %q (use xp or achievements)", ErrUnknownMeasure, s)
	}
}

// Position is one user's place on the board.
type Position struct {
	UserID     string  `json:"user_id"`
	Rank       int     `json:"rank"`
	Total      int     `json:"total"`
	Percentile float64 `json:"percentile"`
}

// Rank orders entries by measure, highest first, and fills Level and Rank.
// Ties are broken by name, then user id, so ranks run 1..n without gaps or repeats.
// levelOf derives the level from XP. The input is not modified.
func Rank(entries []model.LeaderboardEntry, by By, levelOf func(int) int) ([]model.LeaderboardEntry, error) {
	score, err := scoreFunc(by)
	if err != nil {
		return nil, err
	}

	ranked := make([]model.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if sa, sb := score(a), score(b); sa != sb {
			return sa > sb
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.UserID < b.UserID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Level = levelOf(ranked[i].XP)
	}
	return ranked, nil
}

// Top returns at most n leading entries. n <= 0 returns all.
func Top(ranked []model.LeaderboardEntry, n int) []model.LeaderboardEntry {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Find returns the position of userID on a ranked board.
func Find(ranked []model.LeaderboardEntry, userID string) (Position, bool) {
	for _, e := range ranked {
		if e.UserID != userID {
			continue
		}
		total := len(ranked)
		return Position{
			UserID:     userID,
			Rank:       e.Rank,
			Total:      total,
			Percentile: float64(total-e.Rank+1) / float64(total) * 100,
		}, true
	}
	return Position{}, false
}

func scoreFunc(by By) (func(model.LeaderboardEntry) int, error) {
	switch by {
	case ByXP, "":
		return func(e model.LeaderboardEntry) int { return e.XP }, nil
	case ByAchievements:
		return func(e model.LeaderboardEntry) int { return e.Achievements }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMeasure, by)
	}
}
