// Package record validates and normalizes raw application rows.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/quest/internal/model"
)

// Field names of a raw row.
const (
	FieldCompany     = "company"
	FieldPosition    = "position"
	FieldStatus      = "status"
	FieldAppliedDate = "applied_date"
	FieldNotes       = "notes"
)

// Columns is the canonical column order of an import row.
var Columns = []string{FieldCompany, FieldPosition, FieldStatus, FieldAppliedDate, FieldNotes}

// ErrValidation is wrapped by every ValidationErrors value.
var ErrValidation = errors.New("validation failed")

// RawRow is an untyped application row keyed by canonical field name.
type RawRow map[string]string

// Get returns the trimmed value of field.
func (r RawRow) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// FieldError describes one problem with one field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// ValidationErrors collects every problem found on a row.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(v.Messages(), "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (v ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Messages returns the error messages in detection order.
func (v ValidationErrors) Messages() []string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Message
	}
	return msgs
}

// HasField reports whether any error concerns field.
func (v ValidationErrors) HasField(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

// statusSynonyms maps lower-cased spellings seen in exported spreadsheets to statuses.
var statusSynonyms = map[string]model.Status{
	"applied":      model.StatusApplied,
	"submitted":    model.StatusApplied,
	"in progress":  model.StatusApplied,
	"interviewing": model.StatusInterviewing,
	"interview":    model.StatusInterviewing,
	"offer":        model.StatusOffer,
	"accepted":     model.StatusOffer,
	"accepted!":    model.StatusOffer,
	"rejected":     model.StatusRejected,
	"ghosted":      model.StatusGhosted,
	"withdrawn":    model.StatusWithdrawn,
}

// NormalizeStatus maps s to a status, accepting any case and the known synonyms.
func NormalizeStatus(s string) (model.Status, bool) {
	status, ok := statusSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// Validator turns raw rows into applications.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator that resolves year-less dates against the wall clock.
func NewValidator() *Validator {
	return NewValidatorWithClock(time.Now)
}

// NewValidatorWithClock creates a validator with an injected clock.
func NewValidatorWithClock(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate checks row and returns the normalized application.
// All problems are reported together; the returned error is nil or ValidationErrors.
func (v *Validator) Validate(row RawRow) (model.Application, error) {
	var errs ValidationErrors

	company := row.Get(FieldCompany)
	if company == "" {
		errs = append(errs, FieldError{Field: FieldCompany, Message: "Missing required field: company"})
	}

	position := row.Get(FieldPosition)
	if position == "" {
		errs = append(errs, FieldError{Field: FieldPosition, Message: "Missing required field: position"})
	}

	var status model.Status
	rawStatus := row.Get(FieldStatus)
	if rawStatus == "" {
		errs = append(errs, FieldError{Field: FieldStatus, Message: "Missing required field: status"})
	} else {
		normalized, ok := NormalizeStatus(rawStatus)
		if !ok {
			errs = append(errs, FieldError{
				Field:   FieldStatus,
				Message: fmt.Sprintf("Invalid status: %s. Must be one of: %s", rawStatus, model.StatusNames()),
			})
		}
		status = normalized
	}

	var applied *model.Date
	if rawDate := row.Get(FieldAppliedDate); rawDate != "" {
		d, err := ParseAppliedDate(rawDate, v.now())
		if err != nil {
			errs = append(errs, FieldError{Field: FieldAppliedDate, Message: err.Error()})
		} else {
			applied = &d
		}
	}

	if len(errs) > 0 {
		return model.Application{}, errs
	}

	return model.Application{
		Company:     company,
		Position:    position,
		Status:      status,
		AppliedDate: applied,
		Notes:       row.Get(FieldNotes),
	}, nil
}
