// Package dates contains pure date classification tables and helpers:
// holiday occurrence rules, season boundaries, and offset string parsing.
// This package has NO external dependencies and never reads the real clock.
package dates

import "time"

// RuleKind selects how a holiday's date is derived for a given year.
type RuleKind string

const (
	// RuleFixed is a fixed month/day every year (e.g. Dec 25).
	RuleFixed RuleKind = "fixed"
	// RuleNthWeekday is the Nth occurrence of a weekday in a month
	// (e.g. 4th Thursday of November).
	RuleNthWeekday RuleKind = "nth_weekday"
	// RuleLastWeekday is the last occurrence of a weekday in a month
	// (e.g. last Monday of May).
	RuleLastWeekday RuleKind = "last_weekday"
)

// Holiday describes one holiday occurrence rule.
type Holiday struct {
	Key        string       `json:"key" yaml:"key"`
	Name       string       `json:"name" yaml:"name"`
	Kind       RuleKind     `json:"kind" yaml:"kind"`
	Month      time.Month   `json:"month" yaml:"month"`
	Day        int          `json:"day,omitempty" yaml:"day,omitempty"`
	Weekday    time.Weekday `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Occurrence int          `json:"occurrence,omitempty" yaml:"occurrence,omitempty"`
}

// builtinHolidays mirrors the stock holiday table shipped with the component.
var builtinHolidays = []Holiday{
	{Key: "new_years_day", Name: "New Year's Day", Kind: RuleFixed, Month: time.January, Day: 1},
	{Key: "valentines_day", Name: "Valentine's Day", Kind: RuleFixed, Month: time.February, Day: 14},
	{Key: "st_patricks_day", Name: "St. Patrick's Day", Kind: RuleFixed, Month: time.March, Day: 17},
	{Key: "independence_day", Name: "Independence Day", Kind: RuleFixed, Month: time.July, Day: 4},
	{Key: "halloween", Name: "Halloween", Kind: RuleFixed, Month: time.October, Day: 31},
	{Key: "veterans_day", Name: "Veterans Day", Kind: RuleFixed, Month: time.November, Day: 11},
	{Key: "christmas_eve", Name: "Christmas Eve", Kind: RuleFixed, Month: time.December, Day: 24},
	{Key: "christmas", Name: "Christmas", Kind: RuleFixed, Month: time.December, Day: 25},
	{Key: "new_years_eve", Name: "New Year's Eve", Kind: RuleFixed, Month: time.December, Day: 31},
	{Key: "mlk_day", Name: "Martin Luther King Jr. Day", Kind: RuleNthWeekday, Month: time.January, Weekday: time.Monday, Occurrence: 3},
	{Key: "presidents_day", Name: "Presidents' Day", Kind: RuleNthWeekday, Month: time.February, Weekday: time.Monday, Occurrence: 3},
	{Key: "mothers_day", Name: "Mother's Day", Kind: RuleNthWeekday, Month: time.May, Weekday: time.Sunday, Occurrence: 2},
	{Key: "fathers_day", Name: "Father's Day", Kind: RuleNthWeekday, Month: time.June, Weekday: time.Sunday, Occurrence: 3},
	{Key: "labor_day", Name: "Labor Day", Kind: RuleNthWeekday, Month: time.September, Weekday: time.Monday, Occurrence: 1},
	{Key: "columbus_day", Name: "Columbus Day", Kind: RuleNthWeekday, Month: time.October, Weekday: time.Monday, Occurrence: 2},
	{Key: "thanksgiving", Name: "Thanksgiving", Kind: RuleNthWeekday, Month: time.November, Weekday: time.Thursday, Occurrence: 4},
	{Key: "memorial_day", Name: "Memorial Day", Kind: RuleLastWeekday, Month: time.May, Weekday: time.Monday},
}

// HolidayTable resolves holiday keys to dates. Custom entries shadow or extend
// the built-in table.
type HolidayTable struct {
	byKey map[string]Holiday
}

// NewHolidayTable returns the built-in table with custom entries merged on top.
func NewHolidayTable(custom []Holiday) *HolidayTable {
	t := &HolidayTable{byKey: make(map[string]Holiday, len(builtinHolidays)+len(custom))}
	for _, h := range builtinHolidays {
		t.byKey[h.Key] = h
	}
	for _, h := range custom {
		t.byKey[h.Key] = h
	}
	return t
}

// Lookup returns the holiday for key, if known.
func (t *HolidayTable) Lookup(key string) (Holiday, bool) {
	h, ok := t.byKey[key]
	return h, ok
}

// DateIn returns the holiday's date in the given year.
// The zero date and false are returned for an unknown key or a rule that does
// not resolve (e.g. a 5th occurrence that does not exist).
func (t *HolidayTable) DateIn(year int, key string) (time.Time, bool) {
	h, ok := t.byKey[key]
	if !ok {
		return time.Time{}, false
	}
	switch h.Kind {
	case RuleFixed:
		return time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC), true
	case RuleNthWeekday:
		return nthWeekday(year, h.Month, h.Weekday, h.Occurrence)
	case RuleLastWeekday:
		return lastWeekday(year, h.Month, h.Weekday)
	}
	return time.Time{}, false
}

// DaysUntil returns whole days from today until the next occurrence of the
// holiday at or after today. Today counts as zero. A passed occurrence rolls
// to the following year. Returns false for an unknown key.
func (t *HolidayTable) DaysUntil(today time.Time, key string) (int, bool) {
	today = truncateDate(today)
	d, ok := t.DateIn(today.Year(), key)
	if !ok {
		return 0, false
	}
	if d.Before(today) {
		d, ok = t.DateIn(today.Year()+1, key)
		if !ok {
			return 0, false
		}
	}
	return int(d.Sub(today).Hours() / 24), true
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, occurrence int) (time.Time, bool) {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	count := 0
	for d.Month() == month {
		if d.Weekday() == weekday {
			count++
			if count == occurrence {
				return d, true
			}
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) (time.Time, bool) {
	// Last day of month, walk backwards.
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Month() == month {
		if d.Weekday() == weekday {
			return d, true
		}
		d = d.AddDate(0, 0, -1)
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
