// Package view filters and orders application collections for list displays.
package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/quest/internal/model"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// SortKey selects the field applications are ordered by.
type SortKey string

// Sort keys.
const (
	SortByCompany     SortKey = "company"
	SortByPosition    SortKey = "position"
	SortByStatus      SortKey = "status"
	SortByAppliedDate SortKey = "applied_date"
)

// SortOrder is the direction of a sort.
type SortOrder string

// Sort orders.
const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Errors returned when parsing caller input.
var (
	ErrUnknownSortKey   = errors.New("unknown sort key")
	ErrUnknownSortOrder = errors.New("unknown sort order")
	ErrUnknownStatus    = errors.New("unknown status filter")
	ErrInvalidDateRange = errors.New("date range end is before start")
)

// Filter narrows a collection. Zero-value fields impose no constraint.
type Filter struct {
	DateFrom *model.Date
	DateTo   *model.Date
	Status   string
	Company  string
	Position string
}

// Validate checks that the filter can be applied.
func (f Filter) Validate() error {
	if f.Status != "" && f.Status != StatusAll && !model.Status(f.Status).IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, f.Status)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, f.DateFrom, f.DateTo)
	}
	return nil
}

// Matches reports whether app satisfies every constraint of f.
func (f Filter) Matches(app model.Application) bool {
	if f.Status != "" && f.Status != StatusAll && string(app.Status) != f.Status {
		return false
	}
	if f.Company != "" && !containsFold(app.Company, f.Company) {
		return false
	}
	if f.Position != "" && !containsFold(app.Position, f.Position) {
		return false
	}
	// Undated applications are never excluded by a date bound.
	if app.AppliedDate != nil {
		if f.DateFrom != nil && app.AppliedDate.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && app.AppliedDate.After(*f.DateTo) {
			return false
		}
	}
	return true
}

// View returns the applications matching filter, stably ordered by key and order.
// The input slice is not modified.
func View(apps []model.Application, filter Filter, key SortKey, order SortOrder) []model.Application {
	out := make([]model.Application, 0, len(apps))
	for _, app := range apps {
		if filter.Matches(app) {
			out = append(out, app)
		}
	}

	less := lessFunc(key)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	return out
}

// lessFunc returns a strict ordering for key. Equal elements report false both ways,
// which keeps ties in input order under a stable sort.
func lessFunc(key SortKey) func(a, b model.Application) bool {
	switch key {
	case SortByCompany:
		return func(a, b model.Application) bool {
			return strings.ToLower(a.Company) < strings.ToLower(b.Company)
		}
	case SortByPosition:
		return func(a, b model.Application) bool {
			return strings.ToLower(a.Position) < strings.ToLower(b.Position)
		}
	case SortByStatus:
		return func(a, b model.Application) bool {
			return a.Status < b.Status
		}
	default:
		return func(a, b model.Application) bool {
			return dateRank(a).Before(dateRank(b))
		}
	}
}

// undated sorts before every real date.
var undated = model.Date{Year: -1 << 20, Month: 1, Day: 1}

func dateRank(app model.Application) model.Date {
	if app.AppliedDate == nil {
		return undated
	}
	return *app.AppliedDate
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ParseSortKey parses a caller-supplied sort key. Empty selects applied_date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByAppliedDate, nil
	case SortByCompany, SortByPosition, SortByStatus, SortByAppliedDate:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSortKey, s)
	}
}

// ParseSortOrder parses a caller-supplied sort order. Empty selects descending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSortOrder, s)
	}
}
