// Package store persists calculation state records across restarts.
// Each record is a single row keyed by calculation id and written with a
// full-record upsert, so a crash mid-write never leaves a state between two
// transitions.
package store

import (
	"errors"
	"time"

	"github.com/clockwork-home/clockworkd/internal/calc"
)

// ErrNotFound is returned by Load when no record exists for the id.
var ErrNotFound = errors.New("state record not found")

// Record is one persisted calculation state.
type Record struct {
	ID        string     `json:"id"`
	Type      calc.Type  `json:"type"`
	State     calc.State `json:"state"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store saves and restores calculation state records.
type Store interface {
	// Save writes the record, replacing any previous one for the same id.
	Save(rec Record) error

	// Load returns the record for id, or ErrNotFound.
	Load(id string) (Record, error)

	// Delete removes the record for id. Deleting a missing id is not an
	// error.
	Delete(id string) error

	// Close releases the underlying resources.
	Close() error
}
