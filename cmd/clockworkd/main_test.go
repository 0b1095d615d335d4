package main

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/config"
	"github.com/clockwork-home/clockworkd/internal/engine"
	"github.com/clockwork-home/clockworkd/internal/entity"
	"github.com/clockwork-home/clockworkd/internal/mqtt"
	"github.com/clockwork-home/clockworkd/internal/status"
	"github.com/clockwork-home/clockworkd/internal/store"
)

func TestApplyOverrides(t *testing.T) {
	cfg := config.Config{
		Broker:       "tcp://from-config:1883",
		DBPath:       "/var/lib/clockworkd/state.db",
		HTTPAddr:     ":8099",
		TickInterval: config.Duration(15 * time.Second),
	}

	applyOverrides(&cfg, "tcp://from-flag:1883", "", "", 5*time.Second)

	if cfg.Broker != "tcp://from-flag:1883" {
		t.Errorf("Broker: got %q, want flag value", cfg.Broker)
	}
	if cfg.DBPath != "/var/lib/clockworkd/state.db" {
		t.Errorf("DBPath: got %q, want config value", cfg.DBPath)
	}
	if cfg.TickInterval.Std() != 5*time.Second {
		t.Errorf("TickInterval: got %v, want 5s", cfg.TickInterval.Std())
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q", got)
	}
}

func TestRunLoopShutdownOnSignal(t *testing.T) {
	observer := entity.NewFake()
	sink := mqtt.NewFakePublisher()
	eng := engine.New(engine.Options{
		Store:    store.NewFake(),
		Observer: observer,
		Sink:     sink,
		Location: time.UTC,
	})
	tracker := status.NewTracker(time.Now(), status.Config{})

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)

	go func() {
		done <- runLoop(eng, sink, sink, observer, tracker, time.Now, tick, sig)
	}()

	sig <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runLoop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not exit on signal")
	}

	if len(sink.SystemEvents) != 1 {
		t.Fatalf("system events: got %d, want 1", len(sink.SystemEvents))
	}
	ev := sink.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" {
		t.Errorf("shutdown event: got %+v", ev)
	}
	if !ev.Retained {
		t.Error("shutdown event should be retained")
	}
}

func TestRunLoopRoutesChangesAndTicks(t *testing.T) {
	observer := entity.NewFake()
	sink := mqtt.NewFakePublisher()
	eng := engine.New(engine.Options{
		Store:    store.NewFake(),
		Observer: observer,
		Sink:     sink,
		Location: time.UTC,
	})

	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	observer.Seed("binary_sensor.door", "off", start)
	if err := eng.Register(calc.Definition{
		ID:           "door_open",
		Type:         calc.TypeTimespan,
		EntityID:     "binary_sensor.door",
		TrackedState: "on",
	}, start); err != nil {
		t.Fatalf("register: %v", err)
	}
	sink.Reset()

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)

	clock := start
	go func() {
		done <- runLoop(eng, sink, sink, observer, nil, func() time.Time { return clock }, tick, sig)
	}()

	// Entity change flows through the observer stream into the engine.
	observer.SetState("binary_sensor.door", "on", start.Add(time.Minute))
	waitFor(t, func() bool { return sink.CountFor("door_open") >= 1 })

	// A later tick advances the accumulation.
	clock = start.Add(3 * time.Minute)
	tick <- clock
	waitFor(t, func() bool {
		u, ok := sink.LastFor("door_open")
		return ok && u.Value == "120"
	})

	sig <- syscall.SIGINT
	if err := <-done; err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopExitsOnClosedStream(t *testing.T) {
	observer := entity.NewFake()
	sink := mqtt.NewFakePublisher()
	eng := engine.New(engine.Options{
		Store:    store.NewFake(),
		Observer: observer,
		Sink:     sink,
		Location: time.UTC,
	})

	done := make(chan error, 1)
	go func() {
		done <- runLoop(eng, sink, sink, observer, nil, time.Now, make(chan time.Time), make(chan os.Signal))
	}()

	observer.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error when change stream closes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not exit on closed stream")
	}
}

// waitFor polls cond until it is true or the deadline passes. The run loop
// applies changes on its own goroutine, so assertions need a grace period.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
