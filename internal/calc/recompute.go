package calc

import "time"

// Recompute applies one stimulus to a calculation and returns the new state
// and output. It is pure: feeding the same (definition, state, stimulus)
// twice yields identical results.
func Recompute(def Definition, st State, stim Stimulus) (State, Output) {
	switch def.Type {
	case TypeTimespan:
		return recomputeTimespan(def, st, stim)
	case TypeOffset:
		return recomputeOffset(def, st, stim)
	case TypeDatetimeOffset:
		return recomputeDatetimeOffset(def, st, stim)
	case TypeDateRange:
		return recomputeDateRange(def, st, stim)
	case TypeSeason:
		return recomputeSeason(def, st, stim)
	case TypeMonth:
		return recomputeMonth(def, st, stim)
	case TypeHoliday:
		return recomputeHoliday(def, st, stim)
	case TypeBetweenDates:
		return recomputeDateWindow(def, st, stim, false)
	case TypeOutsideDates:
		return recomputeDateWindow(def, st, stim, true)
	}
	out := Unavailable(def.outputKind())
	st.Output = out
	return st, out
}

// Initialize builds a fresh state from a live snapshot of the watched entity.
// entityState is empty for time-only types or when the entity is unknown.
func Initialize(def Definition, entityState string, lastChanged, now time.Time) State {
	st := State{LastEntityState: entityState}
	switch def.Type {
	case TypeTimespan:
		if entityState != "" && stateMatches(def.TrackedState, entityState) {
			at := lastChanged
			if at.IsZero() {
				at = now
			}
			st.LastTransition = at
			st.Accumulated = now.Sub(at)
		}
	case TypeOffset:
		st.Phase = PhaseIdle
	}
	st, _ = Recompute(def, st, Tick(now))
	return st
}

// Recover fast-forwards a restored state to the current time. An armed offset
// whose deadline passed while the process was down fires immediately using
// the real elapsed time; everything else is an ordinary recompute at
// recoveredAt.
func Recover(def Definition, st State, recoveredAt time.Time) (State, Output) {
	return Recompute(def, st, Tick(recoveredAt))
}

// stateMatches reports whether an entity value counts as the tracked state.
func stateMatches(tracked, value string) bool {
	return tracked == TrackedAny || tracked == value
}
