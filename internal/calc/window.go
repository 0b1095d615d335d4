package calc

import (
	"fmt"
	"time"

	"github.com/clockwork-home/clockworkd/internal/dates"
)

// recomputeSeason classifies the current date against the season boundary
// table. The output carries the season name; when a target season is
// configured the boolean reports whether it is that season now.
func recomputeSeason(def Definition, st State, stim Stimulus) (State, Output) {
	hemisphere := def.Hemisphere
	if hemisphere == "" {
		hemisphere = dates.Northern
	}
	season := dates.DefaultSeasonTable(hemisphere).SeasonOf(stim.At)

	out := Output{Kind: OutSeason, Available: true, Season: season}
	if def.TargetSeason != "" {
		out.Bool = season == def.TargetSeason
	}
	st.Output = out
	return st, out
}

// recomputeMonth reports whether the current month is in the configured set.
func recomputeMonth(def Definition, st State, stim Stimulus) (State, Output) {
	on := false
	for _, m := range def.Months {
		if stim.At.Month() == m {
			on = true
			break
		}
	}
	out := Output{Kind: OutBool, Available: true, Bool: on}
	st.Output = out
	return st, out
}

// recomputeHoliday counts days to the next occurrence of the configured
// holiday. A passed date rolls to the following year, so the count never goes
// negative. OffsetDays shifts the reported value.
func recomputeHoliday(def Definition, st State, stim Stimulus) (State, Output) {
	table := dates.NewHolidayTable(def.CustomHolidays)
	days, ok := table.DaysUntil(stim.At, def.HolidayKey)
	if !ok {
		out := Unavailable(OutDays)
		st.Output = out
		return st, out
	}
	out := Output{Kind: OutDays, Available: true, Days: days + def.OffsetDays}
	st.Output = out
	return st, out
}

// recomputeDateWindow evaluates between_dates and outside_dates. Outside is
// the exact complement of between for the same range.
func recomputeDateWindow(def Definition, st State, stim Stimulus, invert bool) (State, Output) {
	within, err := def.Range.contains(stim.At)
	if err != nil {
		out := Unavailable(OutBool)
		st.Output = out
		return st, out
	}
	out := Output{Kind: OutBool, Available: true, Bool: within != invert}
	st.Output = out
	return st, out
}

// contains reports whether at falls inside the configured range, inclusive on
// both ends. Annual ranges wrap across the year boundary and daily ranges
// wrap across midnight.
func (r DateRange) contains(at time.Time) (bool, error) {
	switch r.Kind {
	case RangeAbsolute:
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return false, err
		}
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return false, err
		}
		return !at.Before(start) && !at.After(end), nil

	case RangeAnnual:
		start, err := parseMonthDay(r.Start)
		if err != nil {
			return false, err
		}
		end, err := parseMonthDay(r.End)
		if err != nil {
			return false, err
		}
		md := dates.MonthDay{Month: at.Month(), Day: at.Day()}
		return dates.InAnnualRange(md, start, end), nil

	case RangeDaily:
		start, err := parseClock(r.Start)
		if err != nil {
			return false, err
		}
		end, err := parseClock(r.End)
		if err != nil {
			return false, err
		}
		v := at.Hour()*3600 + at.Minute()*60 + at.Second()
		if start <= end {
			return start <= v && v <= end, nil
		}
		return v >= start || v <= end, nil
	}
	return false, fmt.Errorf("unknown range kind %q", r.Kind)
}

// parseMonthDay parses "MM-DD".
func parseMonthDay(s string) (dates.MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return dates.MonthDay{}, fmt.Errorf("parse month/day %q: %w", s, err)
	}
	return dates.MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// parseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
