package calc

import "github.com/clockwork-home/clockworkd/internal/dates"

// recomputeDatetimeOffset is a stateless transform: the watched datetime
// entity's value plus the configured offset. Only the latest input value is
// kept, so an unchanged value costs nothing to recompute.
func recomputeDatetimeOffset(def Definition, st State, stim Stimulus) (State, Output) {
	if stim.Kind == StimEntityChange {
		st.LastEntityState = stim.New
	}

	out := Unavailable(OutDatetime)
	if st.LastEntityState != "" {
		if base, err := dates.ParseDatetime(st.LastEntityState, stim.At.Location()); err == nil {
			out = Output{Kind: OutDatetime, Available: true, Time: base.Add(def.Offset)}
		}
	}
	st.Output = out
	return st, out
}

// recomputeDateRange reports the duration between two watched datetime
// entities. Either entity being absent or unparsable yields the explicit
// unavailable output, never a stale value.
func recomputeDateRange(def Definition, st State, stim Stimulus) (State, Output) {
	if stim.Kind == StimEntityChange {
		switch stim.EntityID {
		case def.StartEntityID:
			st.StartValue = stim.New
		case def.EndEntityID:
			st.EndValue = stim.New
		}
	}

	out := Unavailable(OutDuration)
	if st.StartValue != "" && st.EndValue != "" {
		start, errStart := dates.ParseDatetime(st.StartValue, stim.At.Location())
		end, errEnd := dates.ParseDatetime(st.EndValue, stim.At.Location())
		if errStart == nil && errEnd == nil {
			out = Output{Kind: OutDuration, Available: true, Duration: end.Sub(start)}
		}
	}
	st.Output = out
	return st, out
}
