package entity

import (
	"sync"
	"time"
)

// Fake is an in-memory Observer for tests. SetState records a snapshot and,
// when the entity is watched, emits a Change on the stream.
type Fake struct {
	mu      sync.Mutex
	states  map[string]Snapshot
	watched map[string]bool
	ch      chan Change
	closed  bool
}

// NewFake creates a Fake with a buffered change stream.
func NewFake() *Fake {
	return &Fake{
		states:  make(map[string]Snapshot),
		watched: make(map[string]bool),
		ch:      make(chan Change, 64),
	}
}

// Seed records an entity state without emitting a change.
func (f *Fake) Seed(entityID, state string, lastChanged time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[entityID] = Snapshot{State: state, LastChanged: lastChanged}
}

// SetState transitions an entity and emits a Change if it is watched.
func (f *Fake) SetState(entityID, state string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.states[entityID].State
	f.states[entityID] = Snapshot{State: state, LastChanged: at}
	// Close closes the stream under the same lock, so the send can never
	// hit a closed channel.
	if f.watched[entityID] && !f.closed && old != state {
		f.ch <- Change{EntityID: entityID, Old: old, New: state, At: at}
	}
}

// Watch marks the entity as observed.
func (f *Fake) Watch(entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched[entityID] = true
	return nil
}

// Unwatch removes the entity from the observed set.
func (f *Fake) Unwatch(entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watched, entityID)
	return nil
}

// Changes returns the change stream.
func (f *Fake) Changes() <-chan Change {
	return f.ch
}

// Current returns the seeded snapshot, or ErrNotFound.
func (f *Fake) Current(entityID string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.states[entityID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Close closes the change stream.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

// Watched reports whether the entity is currently observed.
func (f *Fake) Watched(entityID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched[entityID]
}
