package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/quest/internal/model"
)

// dateLayouts are tried in order. Layouts without a year take the year from the clock.
var dateLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"2006-01-02", true},
	{"01/02/2006", true},
	{"1/2/2006", true},
	{"01-02-2006", true},
	{"2006/01/02", true},
	{"01/02/06", true},
	{"1/2/06", true},
	{"01/02", false},
	{"1/2", false},
}

// ParseAppliedDate parses an applied date.
// Accepted forms are YYYY-MM-DD, MM/DD/YYYY, MM-DD-YYYY, YYYY/MM/DD, MM/DD/YY and MM/DD;
// the last defaults to the calendar year of now.
func ParseAppliedDate(s string, now time.Time) (model.Date, error) {
	s = strings.TrimSpace(s)
	// Spreadsheet exports often carry a midnight timestamp.
	if i := strings.IndexAny(s, " T"); i > 0 && len(s) > 10 {
		s = s[:i]
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if !l.hasYear {
			d := model.NewDate(now.Year(), t.Month(), t.Day())
			// Parsing without a year accepts Feb 29, which rolls over in a common year.
			if d.Month != t.Month() || d.Day != t.Day() {
				return model.Date{}, fmt.Errorf("invalid date: %s does not exist in %d", s, now.Year())
			}
			return d, nil
		}
		return model.DateOf(t), nil
	}

	return model.Date{}, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD, MM/DD/YYYY or MM/DD)", s)
}
