package record

import (
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		row        RawRow
		want       model.Application
		name       string
		wantFields []string
		wantErr    bool
	}{
		{
			name: "minimal valid row",
			row:  RawRow{"company": "Acme", "position": "SWE", "status": "Applied"},
			want: model.Application{Company: "Acme", Position: "SWE", Status: model.StatusApplied},
		},
		{
			name: "trims and normalizes status case",
			row:  RawRow{"company": "  Acme ", "position": " SWE Co-op", "status": "interviewing", "notes": " via referral "},
			want: model.Application{Company: "Acme", Position: "SWE Co-op", Status: model.StatusInterviewing, Notes: "via referral"},
		},
		{
			name: "status synonym",
			row:  RawRow{"company": "Acme", "position": "SWE", "status": "Accepted!"},
			want: model.Application{Company: "Acme", Position: "SWE", Status: model.StatusOffer},
		},
		{
			name: "iso date",
			row:  RawRow{"company": "Acme", "position": "SWE", "status": "Applied", "applied_date": "2024-01-15"},
			want: model.Application{Company: "Acme", Position: "SWE", Status: model.StatusApplied, AppliedDate: datePtr(2024, time.January, 15)},
		},
		{
			name: "empty date is absent",
			row:  RawRow{"company": "Acme", "position": "SWE", "status": "Applied", "applied_date": "   "},
			want: model.Application{Company: "Acme", Position: "SWE", Status: model.StatusApplied},
		},
		{
			name:       "blank company",
			row:        RawRow{"company": "", "position": "SWE", "status": "Applied"},
			wantErr:    true,
			wantFields: []string{FieldCompany},
		},
		{
			name:       "collects every error",
			row:        RawRow{"company": " ", "status": "Pending", "applied_date": "yesterday"},
			wantErr:    true,
			wantFields: []string{FieldCompany, FieldPosition, FieldStatus, FieldAppliedDate},
		},
		{
			name:       "missing status",
			row:        RawRow{"company": "Acme", "position": "SWE"},
			wantErr:    true,
			wantFields: []string{FieldStatus},
		},
	}

	v := NewValidatorWithClock(fixedClock)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.row)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.True(t, verrs.HasField(field), "expected error for %s", field)
			}
		})
	}
}

func TestValidator_ErrorMessagesNameTheProblem(t *testing.T) {
	v := NewValidatorWithClock(fixedClock)

	_, err := v.Validate(RawRow{"company": "", "position": "SWE", "status": "Applied"})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.Messages()[0], "company")

	_, err = v.Validate(RawRow{"company": "Acme", "position": "SWE", "status": "Hired"})
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.Messages()[0], "Hired")
}

func TestParseAppliedDate(t *testing.T) {
	now := fixedClock()
	tests := []struct {
		input   string
		want    model.Date
		wantErr bool
	}{
		{input: "2024-01-15", want: model.NewDate(2024, time.January, 15)},
		{input: "01/15/2024", want: model.NewDate(2024, time.January, 15)},
		{input: "1/5/2024", want: model.NewDate(2024, time.January, 5)},
		{input: "01-15-2024", want: model.NewDate(2024, time.January, 15)},
		{input: "2024/01/15", want: model.NewDate(2024, time.January, 15)},
		{input: "01/15/24", want: model.NewDate(2024, time.January, 15)},
		{input: "09/30", want: model.NewDate(2025, time.September, 30)},
		{input: "02/29", wantErr: true},
		{input: "2/29", wantErr: true},
		{input: "02/29/2025", wantErr: true},
		{input: "02/29/2024", want: model.NewDate(2024, time.February, 29)},
		{input: "2024-01-15 00:00:00", want: model.NewDate(2024, time.January, 15)},
		{input: "2024-13-01", wantErr: true},
		{input: "15 Jan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAppliedDate(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAppliedDate_LeapDayWithoutYear(t *testing.T) {
	leap := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	got, err := ParseAppliedDate("02/29", leap)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2024, time.February, 29), got)

	common := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	_, err = ParseAppliedDate("02/29", common)
	assert.ErrorContains(t, err, "does not exist in 2025")
}

func TestNormalizeStatus(t *testing.T) {
	for _, s := range model.Statuses {
		got, ok := NormalizeStatus(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}

	got, ok := NormalizeStatus("  SUBMITTED ")
	assert.True(t, ok)
	assert.Equal(t, model.StatusApplied, got)

	_, ok = NormalizeStatus("maybe")
	assert.False(t, ok)
}

func datePtr(y int, m time.Month, d int) *model.Date {
	date := model.NewDate(y, m, d)
	return &date
}
