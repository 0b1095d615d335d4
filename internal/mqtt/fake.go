package mqtt

import "sync"

// FakePublisher records published updates for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Updates contains all calculation updates that were published.
	Updates []Update

	// SystemEvents contains all lifecycle events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Closed tracks whether Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// Publish records the update.
func (f *FakePublisher) Publish(update Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Updates = append(f.Updates, update)
	return nil
}

// PublishSystem records the lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// LastFor returns the most recent update published for id.
func (f *FakePublisher) LastFor(id string) (Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Updates) - 1; i >= 0; i-- {
		if f.Updates[i].ID == id {
			return f.Updates[i], true
		}
	}
	return Update{}, false
}

// CountFor returns how many updates were published for id.
func (f *FakePublisher) CountFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.Updates {
		if u.ID == id {
			n++
		}
	}
	return n
}

// Reset clears recorded updates.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = nil
	f.SystemEvents = nil
	f.Closed = false
	f.PublishError = nil
}
