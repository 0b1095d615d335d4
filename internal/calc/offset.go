package calc

import "time"

// recomputeOffset runs the Idle/Armed/Fired machine. Entering the trigger
// state arms a deadline at the event time plus the configured offset; the
// deadline is observed by ticks (or by recovery, using real elapsed time).
// Behavior after firing depends on the mode: pulse windows shut on their own,
// duration follows the entity, latch holds until reset.
func recomputeOffset(def Definition, st State, stim Stimulus) (State, Output) {
	if st.Phase == "" {
		st.Phase = PhaseIdle
	}

	if stim.Kind == StimEntityChange {
		st = applyOffsetEvent(def, st, stim)
	}

	return evaluateOffset(def, st, stim.At)
}

func applyOffsetEvent(def Definition, st State, stim Stimulus) State {
	entering := stateMatches(def.TrackedState, stim.New) && !stateMatches(def.TrackedState, stim.Old)
	if def.TrackedState == TrackedAny {
		entering = stim.New != stim.Old
	}
	leaving := stateMatches(def.TrackedState, stim.Old) && !stateMatches(def.TrackedState, stim.New)

	st.LastEntityState = stim.New

	switch {
	case entering:
		if st.Phase == PhaseFired && def.Mode == ModeLatch {
			// A fired latch resets only after a full re-enter/re-exit.
			st.ReEntered = true
			return st
		}
		fireAt := stim.At.Add(def.Offset)
		st.Phase = PhaseArmed
		st.LastTransition = stim.At
		st.FireAt = &fireAt
		st.ReEntered = false

	case leaving:
		switch st.Phase {
		case PhaseArmed:
			// Latch ignores exits once armed; pulse and duration cancel
			// the pending fire.
			if def.Mode != ModeLatch {
				st.Phase = PhaseIdle
				st.FireAt = nil
			}
		case PhaseFired:
			switch def.Mode {
			case ModeDuration:
				st.Phase = PhaseIdle
				st.FireAt = nil
			case ModeLatch:
				if st.ReEntered {
					st.Phase = PhaseIdle
					st.FireAt = nil
					st.ReEntered = false
				}
			}
		}
	}
	return st
}

func evaluateOffset(def Definition, st State, now time.Time) (State, Output) {
	if st.Phase == PhaseArmed && st.FireAt != nil && !now.Before(*st.FireAt) {
		st.Phase = PhaseFired
		if def.Mode != ModePulse {
			st.FireAt = nil
		}
	}

	on := false
	if st.Phase == PhaseFired {
		switch def.Mode {
		case ModePulse:
			end := time.Time{}
			if st.FireAt != nil {
				end = st.FireAt.Add(pulseWidth(def))
			}
			if st.FireAt != nil && now.Before(end) {
				on = true
			} else {
				st.Phase = PhaseIdle
				st.FireAt = nil
			}
		case ModeDuration:
			if stateMatches(def.TrackedState, st.LastEntityState) {
				on = true
			} else {
				st.Phase = PhaseIdle
			}
		case ModeLatch:
			on = true
		}
	}

	out := Output{Kind: OutBool, Available: true, Bool: on}
	st.Output = out
	return st, out
}

// pulseWidth returns the effective pulse window. A zero configured width
// means exactly one recompute cycle: open at the fire deadline, shut by the
// next interval tick.
func pulseWidth(def Definition) time.Duration {
	if def.PulseWidth > 0 {
		return def.PulseWidth
	}
	if def.UpdateInterval > 0 {
		return def.UpdateInterval
	}
	return time.Minute
}

// ResetLatch is the explicit user reset for a fired latch. It is a no-op for
// other modes and phases.
func ResetLatch(def Definition, st State, now time.Time) (State, Output) {
	if def.Mode == ModeLatch && st.Phase == PhaseFired {
		st.Phase = PhaseIdle
		st.FireAt = nil
		st.ReEntered = false
	}
	return evaluateOffset(def, st, now)
}
