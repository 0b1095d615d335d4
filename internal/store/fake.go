package store

import "sync"

// Fake is an in-memory Store for tests.
type Fake struct {
	mu      sync.Mutex
	records map[string]Record

	// SaveError, if set, is returned by Save. Used to drive persistence
	// failure paths.
	SaveError error

	// Saves counts successful Save calls.
	Saves int
}

// NewFake creates an empty in-memory store.
func NewFake() *Fake {
	return &Fake{records: make(map[string]Record)}
}

// Save stores the record in memory.
func (f *Fake) Save(rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveError != nil {
		return f.SaveError
	}
	f.records[rec.ID] = rec
	f.Saves++
	return nil
}

// Load returns the stored record, or ErrNotFound.
func (f *Fake) Load(id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record.
func (f *Fake) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

// Close is a no-op.
func (f *Fake) Close() error { return nil }

// Seed inserts a record directly, bypassing SaveError.
func (f *Fake) Seed(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
}

// Len returns the number of stored records.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
