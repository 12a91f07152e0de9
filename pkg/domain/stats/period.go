package stats

import (
	"fmt"
	"time"
)

type PeriodKeys struct {
	Day   string
	Week  string
	Month string
	Year  string
	Total string
}

// KeysFor returns the UTC period keys for t, e.g.
// {"2025-01-14", "2025-W02", "2025-01", "2025", "total"}.
func KeysFor(t time.Time) PeriodKeys {
	t = t.UTC()
	return PeriodKeys{
		Day:   t.Format("2006-01-02"),
		Week:  fmt.Sprintf("%d-W%02d", t.Year(), SundayWeekNumber(t)),
		Month: t.Format("2006-01"),
		Year:  t.Format("2006"),
		Total: TotalPeriod,
	}
}

func (k PeriodKeys) All() []string {
	return []string{k.Day, k.Week, k.Month, k.Year, k.Total}
}

// SundayWeekNumber is the strftime %U week: days before the year's first
// Sunday are in week 0.
func SundayWeekNumber(t time.Time) int {
	yday := t.YearDay() - 1
	wday := int(t.Weekday())
	return (yday + 7 - wday) / 7
}
