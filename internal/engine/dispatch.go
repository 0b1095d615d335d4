package engine

import (
	"log"
	"time"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/entity"
	"github.com/clockwork-home/clockworkd/internal/mqtt"
	"github.com/clockwork-home/clockworkd/internal/store"
)

// OnEntityChange routes one entity transition to every calculation watching
// that entity. A panic or error in one calculation never blocks the rest.
func (e *Engine) OnEntityChange(ch entity.Change) {
	e.mu.RLock()
	watchers := make([]*registration, 0, len(e.byEntity[ch.EntityID]))
	for _, reg := range e.byEntity[ch.EntityID] {
		watchers = append(watchers, reg)
	}
	e.mu.RUnlock()

	at := ch.At.In(e.loc)
	for _, reg := range watchers {
		e.applyChange(reg, ch, at)
	}
}

// alive reports whether reg is still the current registration for its id.
// An in-flight stimulus for a deregistered (or deregistered-and-replaced)
// calculation is dropped rather than resurrecting its deleted state.
func (e *Engine) alive(reg *registration) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cur, ok := e.regs[reg.def.ID]
	return ok && cur.epoch == reg.epoch
}

func (e *Engine) applyChange(reg *registration, ch entity.Change, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: %s: recompute panic: %v", reg.def.ID, r)
			e.metrics.HandlerError()
		}
	}()
	if !e.alive(reg) {
		return
	}

	reg.mu.Lock()
	if last, ok := reg.lastEvent[ch.EntityID]; ok && !at.After(last) {
		reg.mu.Unlock()
		e.metrics.StaleEvent()
		log.Printf("engine: %s: discarding stale event for %s at %s", reg.def.ID, ch.EntityID, at.Format(time.RFC3339))
		return
	}
	reg.lastEvent[ch.EntityID] = at

	st, out := calc.Recompute(reg.def, reg.state, calc.Stimulus{
		Kind:     calc.StimEntityChange,
		EntityID: ch.EntityID,
		Old:      ch.Old,
		New:      ch.New,
		At:       at,
	})
	reg.state = st
	reg.mu.Unlock()

	e.metrics.Recompute(string(reg.def.Type), string(calc.StimEntityChange))
	e.finish(reg, out, at)
}

// OnTick recomputes every calculation that is due: its periodic interval has
// elapsed, its pending offset deadline has passed, or a failed persistence
// write is waiting for retry. The next due time advances by whole intervals
// so a slow tick never causes a burst of catch-up recomputes.
func (e *Engine) OnTick(now time.Time) {
	e.mu.RLock()
	regs := make([]*registration, 0, len(e.regs))
	for _, reg := range e.regs {
		regs = append(regs, reg)
	}
	e.mu.RUnlock()

	now = now.In(e.loc)
	for _, reg := range regs {
		e.applyTick(reg, now)
	}
}

func (e *Engine) applyTick(reg *registration, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: %s: recompute panic: %v", reg.def.ID, r)
			e.metrics.HandlerError()
		}
	}()
	if !e.alive(reg) {
		return
	}

	reg.mu.Lock()
	due := !now.Before(reg.nextDue) && reg.def.Type.IntervalDriven()
	if !due && reg.state.FireAt != nil && !now.Before(*reg.state.FireAt) {
		due = true
	}
	if !due {
		retry := reg.needsSave
		reg.mu.Unlock()
		if retry {
			e.retrySave(reg)
		}
		return
	}

	if reg.def.Type.IntervalDriven() {
		iv := interval(reg.def)
		if behind := now.Sub(reg.nextDue); behind >= 0 {
			reg.nextDue = reg.nextDue.Add((behind/iv + 1) * iv)
		}
	}
	st, out := calc.Recompute(reg.def, reg.state, calc.Tick(now))
	reg.state = st
	reg.mu.Unlock()

	e.metrics.Recompute(string(reg.def.Type), string(calc.StimTick))
	e.finish(reg, out, now)
}

// finish persists and publishes one recompute result. Persistence failure
// never suppresses the publish: the fresh value goes out, the write is
// retried on the next tick, and repeated failures raise the degraded
// warning once.
func (e *Engine) finish(reg *registration, out calc.Output, now time.Time) {
	if !e.alive(reg) {
		return
	}
	saveErr := e.save(reg, now)

	update := mqtt.Update{
		ID:         reg.def.ID,
		Value:      out.Value(),
		Attributes: attributes(reg),
		Timestamp:  now,
	}
	if err := e.sink.Publish(update); err != nil {
		e.metrics.PublishError()
		log.Printf("engine: %s: publish: %v", reg.def.ID, err)
	}

	if saveErr != nil {
		reg.mu.Lock()
		reg.needsSave = true
		reg.saveFailures++
		warn := reg.saveFailures >= degradedAfter && !reg.degraded
		if warn {
			reg.degraded = true
		}
		reg.mu.Unlock()

		e.metrics.PersistError()
		log.Printf("engine: %s: persist state: %v", reg.def.ID, saveErr)
		if warn {
			e.warnDegraded(reg.def.ID, now)
		}
	} else {
		reg.mu.Lock()
		reg.needsSave = false
		reg.saveFailures = 0
		reg.degraded = false
		reg.mu.Unlock()
	}
}

func (e *Engine) save(reg *registration, now time.Time) error {
	reg.mu.Lock()
	rec := store.Record{
		ID:        reg.def.ID,
		Type:      reg.def.Type,
		State:     reg.state,
		UpdatedAt: now,
	}
	reg.mu.Unlock()
	return e.store.Save(rec)
}

func (e *Engine) retrySave(reg *registration) {
	e.metrics.PersistRetry()
	if err := e.save(reg, time.Now().In(e.loc)); err != nil {
		log.Printf("engine: %s: persist retry: %v", reg.def.ID, err)
		return
	}
	reg.mu.Lock()
	reg.needsSave = false
	reg.saveFailures = 0
	reg.degraded = false
	reg.mu.Unlock()
	log.Printf("engine: %s: persist retry succeeded", reg.def.ID)
}

func (e *Engine) warnDegraded(id string, now time.Time) {
	err := e.sink.PublishSystem(mqtt.SystemEvent{
		Timestamp: now,
		Event:     "DEGRADED",
		Reason:    "persistence failing for " + id,
	})
	if err != nil {
		log.Printf("engine: publish degraded event: %v", err)
	}
}

// attributes builds the published attribute map for a calculation.
func attributes(reg *registration) map[string]any {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	attrs := map[string]any{
		"friendly_name": reg.def.Name,
		"calc_type":     string(reg.def.Type),
	}
	st := reg.state
	switch reg.def.Type {
	case calc.TypeTimespan:
		attrs["tracked_state"] = reg.def.TrackedState
		if !st.LastTransition.IsZero() {
			attrs["last_transition"] = st.LastTransition.Format(time.RFC3339)
		}
	case calc.TypeOffset:
		attrs["mode"] = string(reg.def.Mode)
		attrs["phase"] = string(st.Phase)
		if st.FireAt != nil {
			attrs["fire_at"] = st.FireAt.Format(time.RFC3339)
		}
	case calc.TypeDateRange:
		attrs["start"] = st.StartValue
		attrs["end"] = st.EndValue
		if st.Output.Available {
			attrs["hours"] = st.Output.Duration.Hours()
		}
	case calc.TypeHoliday:
		attrs["holiday"] = reg.def.HolidayKey
	case calc.TypeSeason:
		if reg.def.TargetSeason != "" {
			attrs["is_target_season"] = st.Output.Bool
		}
	}
	return attrs
}
