package calc

import (
	"errors"
	"fmt"
	"time"

	"github.com/clockwork-home/clockworkd/internal/dates"
)

// ErrValidation marks a malformed definition, rejected at registration.
var ErrValidation = errors.New("invalid definition")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Validate rejects malformed definitions. Nothing is coerced: a definition
// either registers as written or fails here.
func (d Definition) Validate() error {
	if d.ID == "" {
		return validationf("id is required")
	}

	switch d.Type {
	case TypeTimespan:
		if d.EntityID == "" {
			return validationf("%s: entity_id is required", d.ID)
		}
		if d.TrackedState == "" {
			return validationf("%s: tracked_state is required", d.ID)
		}

	case TypeOffset:
		if d.EntityID == "" {
			return validationf("%s: entity_id is required", d.ID)
		}
		if d.TrackedState == "" {
			return validationf("%s: tracked_state is required", d.ID)
		}
		if d.Offset < 0 {
			return validationf("%s: offset must not be negative", d.ID)
		}
		switch d.Mode {
		case ModePulse, ModeDuration, ModeLatch:
		default:
			return validationf("%s: mode must be pulse, duration, or latch", d.ID)
		}
		if d.PulseWidth < 0 {
			return validationf("%s: pulse_width must not be negative", d.ID)
		}

	case TypeDatetimeOffset:
		if d.EntityID == "" {
			return validationf("%s: entity_id is required", d.ID)
		}

	case TypeDateRange:
		if d.StartEntityID == "" || d.EndEntityID == "" {
			return validationf("%s: start_entity_id and end_entity_id are required", d.ID)
		}

	case TypeSeason:
		switch d.Hemisphere {
		case "", dates.Northern, dates.Southern:
		default:
			return validationf("%s: unknown hemisphere %q", d.ID, d.Hemisphere)
		}
		switch d.TargetSeason {
		case "", dates.Spring, dates.Summer, dates.Autumn, dates.Winter:
		default:
			return validationf("%s: unknown season %q", d.ID, d.TargetSeason)
		}

	case TypeMonth:
		if len(d.Months) == 0 {
			return validationf("%s: month set must not be empty", d.ID)
		}
		for _, m := range d.Months {
			if m < time.January || m > time.December {
				return validationf("%s: month %d out of range", d.ID, m)
			}
		}

	case TypeHoliday:
		if d.HolidayKey == "" {
			return validationf("%s: holiday key is required", d.ID)
		}
		if _, ok := dates.NewHolidayTable(d.CustomHolidays).Lookup(d.HolidayKey); !ok {
			return validationf("%s: unknown holiday %q", d.ID, d.HolidayKey)
		}

	case TypeBetweenDates, TypeOutsideDates:
		if err := d.Range.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, d.ID, err)
		}

	default:
		return validationf("%s: unknown type %q", d.ID, d.Type)
	}

	if d.Type.IntervalDriven() && d.UpdateInterval < 0 {
		return validationf("%s: update_interval must not be negative", d.ID)
	}
	return nil
}

func (r DateRange) validate() error {
	switch r.Kind {
	case RangeAbsolute:
		if _, err := time.Parse(time.RFC3339, r.Start); err != nil {
			return fmt.Errorf("range start: %v", err)
		}
		if _, err := time.Parse(time.RFC3339, r.End); err != nil {
			return fmt.Errorf("range end: %v", err)
		}
	case RangeAnnual:
		if _, err := parseMonthDay(r.Start); err != nil {
			return fmt.Errorf("range start: %v", err)
		}
		if _, err := parseMonthDay(r.End); err != nil {
			return fmt.Errorf("range end: %v", err)
		}
	case RangeDaily:
		if _, err := parseClock(r.Start); err != nil {
			return fmt.Errorf("range start: %v", err)
		}
		if _, err := parseClock(r.End); err != nil {
			return fmt.Errorf("range end: %v", err)
		}
	default:
		return fmt.Errorf("unknown range kind %q", r.Kind)
	}
	return nil
}
