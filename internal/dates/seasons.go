package dates

import "time"

// Season is one of the four calendar seasons.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// Hemisphere selects which season table applies.
type Hemisphere string

const (
	Northern Hemisphere = "northern"
	Southern Hemisphere = "southern"
)

// MonthDay is a year-agnostic calendar date.
type MonthDay struct {
	Month time.Month `json:"month" yaml:"month"`
	Day   int        `json:"day" yaml:"day"`
}

// seasonSpan is one season's boundary pair (inclusive on both ends).
type seasonSpan struct {
	season Season
	start  MonthDay
	end    MonthDay
}

// SeasonTable maps dates to seasons. Boundaries are a fixed-date policy, not
// computed astronomy; callers may substitute their own table.
type SeasonTable struct {
	spans []seasonSpan
}

// DefaultSeasonTable returns the fixed northern-hemisphere boundary table
// (Mar 20 / Jun 21 / Sep 22 / Dec 21). The southern table is the same dates
// with the seasons swapped by half a year.
func DefaultSeasonTable(h Hemisphere) *SeasonTable {
	spring, summer, autumn, winter := Spring, Summer, Autumn, Winter
	if h == Southern {
		spring, summer, autumn, winter = Autumn, Winter, Spring, Summer
	}
	return &SeasonTable{spans: []seasonSpan{
		{spring, MonthDay{time.March, 20}, MonthDay{time.June, 20}},
		{summer, MonthDay{time.June, 21}, MonthDay{time.September, 21}},
		{autumn, MonthDay{time.September, 22}, MonthDay{time.December, 20}},
		{winter, MonthDay{time.December, 21}, MonthDay{time.March, 19}},
	}}
}

// SeasonOf returns the season containing the given date.
func (t *SeasonTable) SeasonOf(at time.Time) Season {
	md := MonthDay{at.Month(), at.Day()}
	for _, s := range t.spans {
		if InAnnualRange(md, s.start, s.end) {
			return s.season
		}
	}
	// Unreachable with a covering table; winter wraps the year boundary.
	return Winter
}

// InAnnualRange reports whether md falls within [start, end], inclusive,
// where a range with start after end wraps across the year boundary
// (e.g. Nov 1 – Feb 1 contains Dec 25 and Jan 10 but not Jul 4).
func InAnnualRange(md, start, end MonthDay) bool {
	v := md.ordinal()
	s := start.ordinal()
	e := end.ordinal()
	if s <= e {
		return s <= v && v <= e
	}
	return v >= s || v <= e
}

// ordinal gives a comparable position within a year. Month and day are enough;
// leap years do not change the ordering.
func (md MonthDay) ordinal() int {
	return int(md.Month)*100 + md.Day
}
