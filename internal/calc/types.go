// Package calc contains the pure calculation state machines: one recompute
// function per calculation type, sharing a common
// (Definition, State, Stimulus) -> (State, Output) shape.
// This package has NO external collaborators (no MQTT, storage, or real
// clock). Time always arrives through Stimulus or explicit parameters.
package calc

import (
	"fmt"
	"time"

	"github.com/clockwork-home/clockworkd/internal/dates"
)

// Type identifies a calculation kind.
type Type string

const (
	TypeTimespan       Type = "timespan"
	TypeOffset         Type = "offset"
	TypeDatetimeOffset Type = "datetime_offset"
	TypeDateRange      Type = "date_range"
	TypeSeason         Type = "season"
	TypeMonth          Type = "month"
	TypeHoliday        Type = "holiday"
	TypeBetweenDates   Type = "between_dates"
	TypeOutsideDates   Type = "outside_dates"
)

// Mode governs an offset calculation's output after its timer fires.
type Mode string

const (
	ModePulse    Mode = "pulse"
	ModeDuration Mode = "duration"
	ModeLatch    Mode = "latch"
)

// TrackedAny matches any state transition for timespan and offset triggers.
const TrackedAny = "any"

// RangeKind selects how a between/outside date range recurs.
type RangeKind string

const (
	// RangeAbsolute compares full timestamps (RFC 3339 start/end).
	RangeAbsolute RangeKind = "absolute"
	// RangeAnnual compares month/day only ("MM-DD"), wrapping across Dec 31.
	RangeAnnual RangeKind = "annual"
	// RangeDaily compares time of day only ("HH:MM" or "HH:MM:SS"),
	// wrapping across midnight.
	RangeDaily RangeKind = "daily"
)

// DateRange is the configured window for between/outside calculations.
type DateRange struct {
	Kind  RangeKind `json:"kind" yaml:"kind"`
	Start string    `json:"start" yaml:"start"`
	End   string    `json:"end" yaml:"end"`
}

// Definition is the immutable configuration of one calculation.
type Definition struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	// EntityID is the watched entity for timespan, offset, and
	// datetime_offset calculations.
	EntityID string `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	// StartEntityID / EndEntityID are the two watched datetime entities for
	// date_range calculations.
	StartEntityID string `json:"start_entity_id,omitempty" yaml:"start_entity_id,omitempty"`
	EndEntityID   string `json:"end_entity_id,omitempty" yaml:"end_entity_id,omitempty"`

	// TrackedState is the entity value that counts as active, or TrackedAny.
	TrackedState string `json:"tracked_state,omitempty" yaml:"tracked_state,omitempty"`

	// Offset is the signed duration for offset and datetime_offset types.
	Offset time.Duration `json:"offset,omitempty" yaml:"offset,omitempty"`
	// Mode applies to offset calculations only.
	Mode Mode `json:"mode,omitempty" yaml:"mode,omitempty"`
	// PulseWidth widens the pulse window for ModePulse. Zero means one
	// recompute cycle (the update interval).
	PulseWidth time.Duration `json:"pulse_width,omitempty" yaml:"pulse_width,omitempty"`

	// UpdateInterval is the periodic recompute cadence for interval-driven
	// types.
	UpdateInterval time.Duration `json:"update_interval,omitempty" yaml:"update_interval,omitempty"`

	// Months is the configured month set for month calculations.
	Months []time.Month `json:"months,omitempty" yaml:"months,omitempty"`

	// HolidayKey, OffsetDays, and CustomHolidays configure holiday countdowns.
	HolidayKey     string          `json:"holiday,omitempty" yaml:"holiday,omitempty"`
	OffsetDays     int             `json:"offset_days,omitempty" yaml:"offset_days,omitempty"`
	CustomHolidays []dates.Holiday `json:"custom_holidays,omitempty" yaml:"custom_holidays,omitempty"`

	// TargetSeason and Hemisphere configure season calculations.
	TargetSeason dates.Season     `json:"season,omitempty" yaml:"season,omitempty"`
	Hemisphere   dates.Hemisphere `json:"hemisphere,omitempty" yaml:"hemisphere,omitempty"`

	// Range configures between_dates / outside_dates calculations.
	Range DateRange `json:"range,omitempty" yaml:"range,omitempty"`
}

// Phase is the offset state machine position.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseArmed Phase = "armed"
	PhaseFired Phase = "fired"
)

// State is the mutable, persisted record of one calculation.
type State struct {
	// LastEntityState is the last observed value of the watched entity.
	LastEntityState string `json:"last_entity_state,omitempty"`
	// LastTransition is when the entity last entered the tracked state.
	LastTransition time.Time `json:"last_transition"`
	// Accumulated is the tracked elapsed duration (timespan).
	Accumulated time.Duration `json:"accumulated,omitempty"`
	// FireAt is the pending offset expiry deadline; nil when not armed.
	// Invariant: FireAt == LastTransition + Offset whenever non-nil.
	FireAt *time.Time `json:"fire_at,omitempty"`
	// Phase is the offset machine position.
	Phase Phase `json:"phase,omitempty"`
	// ReEntered marks that a fired latch saw the entity re-enter the
	// trigger state; the next exit resets the latch.
	ReEntered bool `json:"re_entered,omitempty"`
	// StartValue / EndValue are the latest observed datetime entity values
	// (date_range).
	StartValue string `json:"start_value,omitempty"`
	EndValue   string `json:"end_value,omitempty"`
	// Output is the last value produced.
	Output Output `json:"output"`
}

// OutputKind tags which Output field carries the value.
type OutputKind string

const (
	OutDuration OutputKind = "duration"
	OutBool     OutputKind = "bool"
	OutDays     OutputKind = "days"
	OutDatetime OutputKind = "datetime"
	OutSeason   OutputKind = "season"
)

// Output is a calculation's derived value. Available=false is the explicit
// "unavailable" output: a watched entity is missing or a value failed to
// parse.
type Output struct {
	Kind      OutputKind    `json:"kind"`
	Available bool          `json:"available"`
	Bool      bool          `json:"bool,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Days      int           `json:"days,omitempty"`
	Time      time.Time     `json:"time"`
	Season    dates.Season  `json:"season,omitempty"`
}

// Unavailable returns the explicit unavailable output for the given kind.
func Unavailable(kind OutputKind) Output {
	return Output{Kind: kind}
}

// Value renders the output as the published state string.
func (o Output) Value() string {
	if !o.Available {
		return "unavailable"
	}
	switch o.Kind {
	case OutDuration:
		return fmt.Sprintf("%d", int64(o.Duration.Seconds()))
	case OutBool:
		if o.Bool {
			return "on"
		}
		return "off"
	case OutDays:
		return fmt.Sprintf("%d", o.Days)
	case OutDatetime:
		return o.Time.Format(time.RFC3339)
	case OutSeason:
		return string(o.Season)
	}
	return "unknown"
}

// StimulusKind distinguishes the two stimulus streams.
type StimulusKind string

const (
	StimEntityChange StimulusKind = "entity_change"
	StimTick         StimulusKind = "tick"
)

// Stimulus is one unit of work for a recompute: an entity state change or a
// periodic tick.
type Stimulus struct {
	Kind     StimulusKind
	EntityID string
	Old      string
	New      string
	// At is the event timestamp for entity changes, or the current wall
	// clock for ticks.
	At time.Time
}

// Tick returns a tick stimulus for the given instant.
func Tick(now time.Time) Stimulus {
	return Stimulus{Kind: StimTick, At: now}
}

// EventDriven reports whether the type subscribes to entity changes.
func (t Type) EventDriven() bool {
	switch t {
	case TypeTimespan, TypeOffset, TypeDatetimeOffset, TypeDateRange:
		return true
	}
	return false
}

// IntervalDriven reports whether the type recomputes on periodic ticks.
func (t Type) IntervalDriven() bool {
	switch t {
	case TypeDatetimeOffset, TypeDateRange:
		return false
	}
	return true
}

// WatchedEntities returns the entity ids the definition observes.
func (d Definition) WatchedEntities() []string {
	switch d.Type {
	case TypeTimespan, TypeOffset, TypeDatetimeOffset:
		return []string{d.EntityID}
	case TypeDateRange:
		return []string{d.StartEntityID, d.EndEntityID}
	}
	return nil
}

// outputKind returns the output kind a definition produces.
func (d Definition) outputKind() OutputKind {
	switch d.Type {
	case TypeTimespan, TypeDateRange:
		return OutDuration
	case TypeOffset, TypeMonth, TypeBetweenDates, TypeOutsideDates:
		return OutBool
	case TypeHoliday:
		return OutDays
	case TypeDatetimeOffset:
		return OutDatetime
	case TypeSeason:
		return OutSeason
	}
	return OutBool
}
