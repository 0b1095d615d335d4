// Package engine owns the lifecycle of all calculations: registration,
// recomputation, persistence, recovery, and deletion. It routes the two
// stimulus streams (entity changes and periodic ticks) to the pure state
// machines in internal/calc and pushes results to the output sink.
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/entity"
	"github.com/clockwork-home/clockworkd/internal/mqtt"
	"github.com/clockwork-home/clockworkd/internal/observability"
	"github.com/clockwork-home/clockworkd/internal/store"
)

// ErrDuplicateID is returned by Register for an id that is already
// registered.
var ErrDuplicateID = errors.New("calculation id already registered")

// degradedAfter is how many consecutive persistence failures for one
// calculation raise the degraded warning.
const degradedAfter = 3

// registration is one live calculation: its definition, its state slot, and
// its scheduling bookkeeping. The state slot follows a single-writer
// discipline: mu guards the read-modify-persist sequence.
type registration struct {
	def   calc.Definition
	epoch string

	mu      sync.Mutex
	state   calc.State
	nextDue time.Time

	// lastEvent holds the last processed change timestamp per watched
	// entity. Staleness is judged against the same entity's stream only:
	// a two-entity calculation must accept a late-arriving change on one
	// entity even after a newer change on the other.
	lastEvent map[string]time.Time

	// needsSave marks a state whose last persistence write failed; it is
	// retried on the next tick.
	needsSave    bool
	saveFailures int
	degraded     bool
}

// Engine dispatches stimuli to registered calculations.
type Engine struct {
	store    store.Store
	observer entity.Observer
	sink     mqtt.Publisher
	metrics  *observability.Metrics
	loc      *time.Location

	mu       sync.RWMutex
	regs     map[string]*registration
	byEntity map[string]map[string]*registration
}

// Options configures an Engine. Store, Observer, and Sink are required;
// Metrics and Location are optional.
type Options struct {
	Store    store.Store
	Observer entity.Observer
	Sink     mqtt.Publisher
	Metrics  *observability.Metrics
	Location *time.Location
}

// New creates an Engine with no registered calculations.
func New(opts Options) *Engine {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store:    opts.Store,
		observer: opts.Observer,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		loc:      loc,
		regs:     make(map[string]*registration),
		byEntity: make(map[string]map[string]*registration),
	}
}

// Register validates the definition, creates its state (recovering a
// persisted record if one exists, else initializing from a live snapshot),
// subscribes to watched entities, and publishes the initial output.
func (e *Engine) Register(def calc.Definition, now time.Time) error {
	if err := def.Validate(); err != nil {
		return err
	}

	e.mu.RLock()
	_, exists := e.regs[def.ID]
	e.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
	}

	for _, id := range def.WatchedEntities() {
		if err := e.observer.Watch(id); err != nil {
			log.Printf("engine: watch %s for %s: %v", id, def.ID, err)
		}
	}

	// Build the state and schedule before the registration becomes visible
	// to the dispatch paths. A tick that lands mid-registration must never
	// see a zero state or an unset due time.
	reg := &registration{
		def:       def,
		epoch:     uuid.NewString(),
		lastEvent: make(map[string]time.Time),
	}
	reg.state = e.buildState(def, now)
	reg.nextDue = now.Add(interval(def))
	out := reg.state.Output

	e.mu.Lock()
	if _, exists := e.regs[def.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
	}
	e.regs[def.ID] = reg
	for _, id := range def.WatchedEntities() {
		if e.byEntity[id] == nil {
			e.byEntity[id] = make(map[string]*registration)
		}
		e.byEntity[id][def.ID] = reg
	}
	count := len(e.regs)
	e.mu.Unlock()
	e.metrics.SetRegistered(count)

	e.finish(reg, out, now)
	return nil
}

// buildState recovers a persisted record or initializes fresh from a live
// entity snapshot. A corrupt or mismatched record re-initializes with a
// warning; only that calculation's elapsed-time memory is lost.
func (e *Engine) buildState(def calc.Definition, now time.Time) calc.State {
	rec, err := e.store.Load(def.ID)
	switch {
	case err == nil && rec.Type == def.Type:
		st := e.refreshEntityState(def, rec.State)
		st, _ = calc.Recover(def, st, now.In(e.loc))
		e.metrics.Recovery("restored")
		return st
	case err == nil:
		log.Printf("engine: %s: persisted record has type %s, definition has %s; reinitializing", def.ID, rec.Type, def.Type)
		e.metrics.Recovery("corrupt")
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("engine: %s: load state: %v; reinitializing", def.ID, err)
		e.metrics.Recovery("corrupt")
	default:
		e.metrics.Recovery("fresh")
	}
	return e.initialState(def, now)
}

// initialState builds state from a synchronous snapshot of the watched
// entity, or from wall clock for time-only types. A missing entity yields
// the unavailable output; the next observer event repairs it.
func (e *Engine) initialState(def calc.Definition, now time.Time) calc.State {
	now = now.In(e.loc)
	switch def.Type {
	case calc.TypeDateRange:
		st := calc.Initialize(def, "", time.Time{}, now)
		return e.refreshDateRange(def, st, now)
	case calc.TypeTimespan, calc.TypeOffset, calc.TypeDatetimeOffset:
		snap, err := e.observer.Current(def.EntityID)
		if err != nil {
			log.Printf("engine: %s: entity %s: %v", def.ID, def.EntityID, err)
			st := calc.Initialize(def, "", time.Time{}, now)
			st.Output = calc.Unavailable(st.Output.Kind)
			return st
		}
		return calc.Initialize(def, snap.State, snap.LastChanged, now)
	default:
		return calc.Initialize(def, "", time.Time{}, now)
	}
}

// refreshEntityState reconciles a recovered record with the entity's current
// state: transitions that happened while the process was down are applied as
// a synthetic change before the recovery recompute.
func (e *Engine) refreshEntityState(def calc.Definition, st calc.State) calc.State {
	switch def.Type {
	case calc.TypeTimespan, calc.TypeOffset, calc.TypeDatetimeOffset:
		snap, err := e.observer.Current(def.EntityID)
		if err != nil || snap.State == st.LastEntityState {
			return st
		}
		st, _ = calc.Recompute(def, st, calc.Stimulus{
			Kind:     calc.StimEntityChange,
			EntityID: def.EntityID,
			Old:      st.LastEntityState,
			New:      snap.State,
			At:       snap.LastChanged.In(e.loc),
		})
	case calc.TypeDateRange:
		st = e.refreshDateRange(def, st, time.Now().In(e.loc))
	}
	return st
}

func (e *Engine) refreshDateRange(def calc.Definition, st calc.State, now time.Time) calc.State {
	for _, id := range []string{def.StartEntityID, def.EndEntityID} {
		snap, err := e.observer.Current(id)
		if err != nil {
			continue
		}
		st, _ = calc.Recompute(def, st, calc.Stimulus{
			Kind:     calc.StimEntityChange,
			EntityID: id,
			Old:      "",
			New:      snap.State,
			At:       now,
		})
	}
	return st
}

// Deregister unsubscribes, cancels pending timers, and deletes the persisted
// state. Idempotent: deregistering an unknown id is a no-op.
func (e *Engine) Deregister(id string) error {
	e.mu.Lock()
	reg, ok := e.regs[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	delete(e.regs, id)
	var orphaned []string
	for _, entityID := range reg.def.WatchedEntities() {
		if watchers := e.byEntity[entityID]; watchers != nil {
			delete(watchers, id)
			if len(watchers) == 0 {
				delete(e.byEntity, entityID)
				orphaned = append(orphaned, entityID)
			}
		}
	}
	count := len(e.regs)
	e.mu.Unlock()
	e.metrics.SetRegistered(count)

	for _, entityID := range orphaned {
		if err := e.observer.Unwatch(entityID); err != nil {
			log.Printf("engine: unwatch %s: %v", entityID, err)
		}
	}
	if err := e.store.Delete(id); err != nil {
		return fmt.Errorf("deregister %s: %w", id, err)
	}
	return nil
}

// RecoverAll registers every definition, isolating failures: one bad
// definition or corrupt record never blocks recovery of the others.
func (e *Engine) RecoverAll(defs []calc.Definition, now time.Time) []error {
	var errs []error
	for _, def := range defs {
		if err := e.Register(def, now); err != nil {
			log.Printf("engine: recover %s: %v", def.ID, err)
			errs = append(errs, fmt.Errorf("recover %s: %w", def.ID, err))
		}
	}
	return errs
}

// ResetLatch is the explicit user reset for a fired latch offset.
func (e *Engine) ResetLatch(id string, now time.Time) error {
	e.mu.RLock()
	reg, ok := e.regs[id]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("reset %s: not registered", id)
	}

	reg.mu.Lock()
	st, out := calc.ResetLatch(reg.def, reg.state, now.In(e.loc))
	reg.state = st
	reg.mu.Unlock()

	e.finish(reg, out, now)
	return nil
}

// Definitions returns the registered definitions, for the HTTP API.
func (e *Engine) Definitions() []calc.Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	defs := make([]calc.Definition, 0, len(e.regs))
	for _, reg := range e.regs {
		defs = append(defs, reg.def)
	}
	return defs
}

// Status is a point-in-time view of one calculation.
type Status struct {
	Definition calc.Definition `json:"definition"`
	Output     calc.Output     `json:"output"`
	Value      string          `json:"value"`
	Phase      calc.Phase      `json:"phase,omitempty"`
	NextDue    time.Time       `json:"next_due,omitempty"`
	Degraded   bool            `json:"degraded,omitempty"`
}

// Statuses returns a snapshot of every registered calculation.
func (e *Engine) Statuses() []Status {
	e.mu.RLock()
	regs := make([]*registration, 0, len(e.regs))
	for _, reg := range e.regs {
		regs = append(regs, reg)
	}
	e.mu.RUnlock()

	out := make([]Status, 0, len(regs))
	for _, reg := range regs {
		reg.mu.Lock()
		out = append(out, Status{
			Definition: reg.def,
			Output:     reg.state.Output,
			Value:      reg.state.Output.Value(),
			Phase:      reg.state.Phase,
			NextDue:    reg.nextDue,
			Degraded:   reg.degraded,
		})
		reg.mu.Unlock()
	}
	return out
}

// Count returns the number of registered calculations.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.regs)
}

// interval returns the periodic recompute cadence for a definition,
// defaulting by type: daily classifications hourly would be wasteful, they
// only move at midnight; everything else moves by the minute.
func interval(def calc.Definition) time.Duration {
	if def.UpdateInterval > 0 {
		return def.UpdateInterval
	}
	switch def.Type {
	case calc.TypeSeason, calc.TypeMonth, calc.TypeHoliday:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
