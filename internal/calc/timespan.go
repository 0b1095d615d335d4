package calc

// recomputeTimespan tracks elapsed time since the watched entity last entered
// the tracked state. While the entity is in the tracked state the
// accumulation grows with each tick; on exit it freezes at its last value
// until the next entry.
func recomputeTimespan(def Definition, st State, stim Stimulus) (State, Output) {
	switch stim.Kind {
	case StimEntityChange:
		entering := stateMatches(def.TrackedState, stim.New) && !stateMatches(def.TrackedState, stim.Old)
		if def.TrackedState == TrackedAny {
			entering = stim.New != stim.Old
		}
		leaving := stateMatches(def.TrackedState, stim.Old) && !stateMatches(def.TrackedState, stim.New)

		if entering {
			st.LastTransition = stim.At
			st.Accumulated = 0
		} else if leaving && !st.LastTransition.IsZero() {
			st.Accumulated = stim.At.Sub(st.LastTransition)
		}
		st.LastEntityState = stim.New

	case StimTick:
		if st.inTrackedState(def) && !st.LastTransition.IsZero() {
			st.Accumulated = stim.At.Sub(st.LastTransition)
		}
	}

	out := Output{Kind: OutDuration, Available: true, Duration: st.Accumulated}
	st.Output = out
	return st, out
}

// inTrackedState reports whether the last observed entity value counts as
// active for timespan accumulation.
func (st State) inTrackedState(def Definition) bool {
	if def.TrackedState == TrackedAny {
		return !st.LastTransition.IsZero()
	}
	return st.LastEntityState == def.TrackedState
}
