package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle stage of an application.
type Status string

const (
	// StatusApplied means the application was submitted.
	StatusApplied Status = "Applied"
	// StatusInterviewing means at least one interview is scheduled or done.
	StatusInterviewing Status = "Interviewing"
	// StatusOffer means an offer was received.
	StatusOffer Status = "Offer"
	// StatusRejected means the company declined.
	StatusRejected Status = "Rejected"
	// StatusGhosted means the company stopped responding.
	StatusGhosted Status = "Ghosted"
	// StatusWithdrawn means the applicant pulled out.
	StatusWithdrawn Status = "Withdrawn"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{
	StatusApplied,
	StatusInterviewing,
	StatusOffer,
	StatusRejected,
	StatusGhosted,
	StatusWithdrawn,
}

// IsValid reports whether s is one of the enumerated statuses.
func (s Status) IsValid() bool {
	for _, valid := range Statuses {
		if s == valid {
			return true
		}
	}
	return false
}

// StatusNames returns the status labels joined for error messages.
func StatusNames() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Application is a single tracked job or co-op application.
type Application struct {
	CreatedAt   time.Time `json:"created_at"`
	AppliedDate *Date     `json:"applied_date,omitempty"`
	Company     string    `json:"company"`
	Position    string    `json:"position"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	ID          int64     `json:"id"`
}

// DedupKey returns the case-insensitive (company, position) identity of the application.
func (a Application) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(a.Company)) + "\x00" + strings.ToLower(strings.TrimSpace(a.Position))
}

// IsDuplicateOf reports whether a and other describe the same application.
// Company and position are compared case-insensitively. When both carry an
// applied date the dates must also match; a missing date on either side matches.
func (a Application) IsDuplicateOf(other Application) bool {
	if a.DedupKey() != other.DedupKey() {
		return false
	}
	if a.AppliedDate != nil && other.AppliedDate != nil {
		return a.AppliedDate.Equal(*other.AppliedDate)
	}
	return true
}

func (a Application) String() string {
	return fmt.Sprintf("%s - %s (%s)", a.Company, a.Position, a.Status)
}
