// Package entity provides the watched-entity observer: a stream of state
// changes plus point-in-time queries, with abstraction for testing.
package entity

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Current for an unknown entity.
var ErrNotFound = errors.New("entity not found")

// Change is one observed state transition.
type Change struct {
	EntityID string
	Old      string
	New      string
	At       time.Time
}

// Snapshot is a point-in-time view of an entity.
type Snapshot struct {
	State       string
	LastChanged time.Time
}

// Observer delivers entity state changes and answers current-state queries.
type Observer interface {
	// Watch adds an entity to the observed set. Watching an already
	// watched entity is a no-op.
	Watch(entityID string) error

	// Unwatch removes an entity from the observed set.
	Unwatch(entityID string) error

	// Changes returns the merged stream of transitions for all watched
	// entities. The channel is closed by Close.
	Changes() <-chan Change

	// Current returns the entity's latest known state and when it last
	// changed. Returns ErrNotFound for an unknown entity.
	Current(entityID string) (Snapshot, error)

	// Close stops observation and closes the change stream.
	Close() error
}
