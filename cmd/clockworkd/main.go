// Command clockworkd derives time and date based values from watched entity
// states and publishes them to MQTT: elapsed-time counters, delayed triggers,
// countdowns, and calendar window switches.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clockwork-home/clockworkd/internal/calendar"
	"github.com/clockwork-home/clockworkd/internal/config"
	"github.com/clockwork-home/clockworkd/internal/engine"
	"github.com/clockwork-home/clockworkd/internal/entity"
	"github.com/clockwork-home/clockworkd/internal/mqtt"
	"github.com/clockwork-home/clockworkd/internal/observability"
	"github.com/clockwork-home/clockworkd/internal/status"
	"github.com/clockwork-home/clockworkd/internal/store"
	"github.com/clockwork-home/clockworkd/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/clockworkd/config.yaml", "Path to the YAML config file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	dbPath := flag.String("db", "", "State database path (overrides config)")
	httpAddr := flag.String("http", "", "HTTP API address (overrides config, empty keeps config value)")
	tick := flag.Duration("tick", 0, "Scheduler tick interval (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(&cfg, *broker, *dbPath, *httpAddr, *tick)

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides lets command line flags win over the config file.
func applyOverrides(cfg *config.Config, broker, dbPath, httpAddr string, tick time.Duration) {
	if broker != "" {
		cfg.Broker = broker
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if tick > 0 {
		cfg.TickInterval = config.Duration(tick)
	}
}

func run(cfg config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	publisher := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
	defer publisher.Close()

	observer, err := entity.NewMQTTObserver(cfg.Broker, cfg.ClientID+"-observer")
	if err != nil {
		return fmt.Errorf("connect entity observer: %w", err)
	}
	defer observer.Close()

	metrics := observability.New()
	eng := engine.New(engine.Options{
		Store:    db,
		Observer: observer,
		Sink:     publisher,
		Metrics:  metrics,
		Location: loc,
	})

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		Broker:       cfg.Broker,
		HTTPAddr:     cfg.HTTPAddr,
		DBPath:       cfg.DBPath,
		TickInterval: cfg.TickInterval.Std(),
		Timezone:     cfg.Timezone,
	})

	defs, err := cfg.Definitions()
	if err != nil {
		return err
	}
	if errs := eng.RecoverAll(defs, startTime); len(errs) > 0 {
		log.Printf("%d of %d calculations failed to register", len(errs), len(defs))
	}
	tracker.SetRegistered(eng.Count())

	startupEvent := mqtt.SystemEvent{
		Timestamp: startTime,
		Event:     "STARTUP",
		Retained:  true,
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	var cal web.Calendar
	if cfg.Calendar.BaseURL != "" {
		cal = calendar.New(cfg.Calendar.BaseURL, cfg.Calendar.Token, cfg.Calendar.Timeout.Std())
		log.Printf("calendar passthrough enabled for %s", cfg.Calendar.BaseURL)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(web.Options{
			Addr:     cfg.HTTPAddr,
			Engine:   eng,
			Tracker:  tracker,
			Calendar: cal,
			Metrics:  metrics.Handler(),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http api listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: broker=%s tick=%v calculations=%d tz=%s", cfg.Broker, cfg.TickInterval.Std(), eng.Count(), loc)

	ticker := time.NewTicker(cfg.TickInterval.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(eng, publisher, publisher, observer, tracker, time.Now, ticker.C, sigCh)
}

// runLoop is the daemon's select loop: entity changes and scheduler ticks in,
// shutdown on signal. Factored out of run so tests can drive it with fakes.
func runLoop(eng *engine.Engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, observer entity.Observer, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	changes := observer.Changes()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName(s),
				Retained:  true,
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case ch, ok := <-changes:
			if !ok {
				return fmt.Errorf("entity change stream closed")
			}
			eng.OnEntityChange(ch)

		case <-tick:
			eng.OnTick(now())
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				tracker.SetRegistered(eng.Count())
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
