package entity

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFakeEmitsOnlyWatchedTransitions(t *testing.T) {
	f := NewFake()
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	f.Seed("sensor.a", "off", at)
	if err := f.Watch("sensor.a"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	f.SetState("sensor.b", "on", at)
	f.SetState("sensor.a", "off", at)
	f.SetState("sensor.a", "on", at.Add(time.Minute))

	select {
	case ch := <-f.Changes():
		if ch.EntityID != "sensor.a" || ch.Old != "off" || ch.New != "on" {
			t.Errorf("unexpected change: %+v", ch)
		}
	default:
		t.Fatal("expected one change on the stream")
	}
	select {
	case ch := <-f.Changes():
		t.Errorf("unexpected extra change: %+v", ch)
	default:
	}
}

func TestFakeCloseDuringSetState(t *testing.T) {
	f := NewFake()
	if err := f.Watch("sensor.a"); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Drain so the writer never blocks on a full stream.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range f.Changes() {
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.SetState("sensor.a", fmt.Sprint(i), time.Now())
		}
	}()

	// Closing while a writer is mid-transition must not panic the writer.
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
	<-done

	if err := f.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
