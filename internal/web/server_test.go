package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/calendar"
	"github.com/clockwork-home/clockworkd/internal/engine"
	"github.com/clockwork-home/clockworkd/internal/entity"
	"github.com/clockwork-home/clockworkd/internal/mqtt"
	"github.com/clockwork-home/clockworkd/internal/status"
	"github.com/clockwork-home/clockworkd/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server   *Server
	engine   *engine.Engine
	observer *entity.Fake
	sink     *mqtt.FakePublisher
	tracker  *status.Tracker
}

func newFixture(t *testing.T, cal Calendar) *fixture {
	t.Helper()
	f := &fixture{
		observer: entity.NewFake(),
		sink:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(testNow, status.Config{
			Broker:       "tcp://localhost:1883",
			HTTPAddr:     ":8099",
			TickInterval: 15 * time.Second,
		}),
	}
	f.engine = engine.New(engine.Options{
		Store:    store.NewFake(),
		Observer: f.observer,
		Sink:     f.sink,
		Location: time.UTC,
	})
	f.server = New(Options{
		Addr:     ":0",
		Engine:   f.engine,
		Tracker:  f.tracker,
		Calendar: cal,
		Now:      func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.tracker.SetRegistered(2)
	f.tracker.SetMQTTConnected(true)

	rec := f.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, 2, parsed.Status.Registered)
	assert.True(t, parsed.Status.MQTT.Connected)
	assert.Equal(t, "tcp://localhost:1883", parsed.Status.MQTT.Broker)
	assert.Equal(t, int64(15), parsed.Status.Config.TickSeconds)
}

func TestRegisterAndList(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.Seed("binary_sensor.door", "on", testNow)

	rec := f.do(http.MethodPost, "/api/calculations", `{
		"id": "door_open",
		"name": "Door open time",
		"type": "timespan",
		"entity_id": "binary_sensor.door",
		"tracked_state": "on"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/calculations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed struct {
		Calculations []engine.Status `json:"calculations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Len(t, parsed.Calculations, 1)
	assert.Equal(t, "door_open", parsed.Calculations[0].Definition.ID)
	assert.Equal(t, "0", parsed.Calculations[0].Value)
}

func TestRegisterParsesHumanOffsets(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.Seed("switch.pump", "off", testNow)

	rec := f.do(http.MethodPost, "/api/calculations", `{
		"id": "pump_alert",
		"type": "offset",
		"entity_id": "switch.pump",
		"tracked_state": "on",
		"offset": "30 minutes",
		"mode": "latch"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	statuses := f.engine.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, 30*time.Minute, statuses[0].Definition.Offset)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/calculations", `{"id": "bad", "type": "timespan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/calculations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.Seed("sensor.a", "on", testNow)

	body := `{"id": "twin", "type": "timespan", "entity_id": "sensor.a", "tracked_state": "on"}`
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/calculations", body).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/calculations", body).Code)
}

func TestDeregister(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.Seed("sensor.a", "on", testNow)
	require.NoError(t, f.engine.Register(calc.Definition{
		ID: "gone", Type: calc.TypeTimespan, EntityID: "sensor.a", TrackedState: "on",
	}, testNow))

	rec := f.do(http.MethodDelete, "/api/calculations/gone", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.engine.Statuses())

	// Idempotent.
	rec = f.do(http.MethodDelete, "/api/calculations/gone", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestResetLatch(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.Seed("switch.pump", "off", testNow)
	require.NoError(t, f.engine.Register(calc.Definition{
		ID: "pump_alert", Type: calc.TypeOffset, EntityID: "switch.pump",
		TrackedState: "on", Offset: time.Minute, Mode: calc.ModeLatch,
	}, testNow))

	rec := f.do(http.MethodPost, "/api/calculations/pump_alert/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/calculations/nope/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPut, "/api/calculations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeCalendar struct {
	events  []calendar.Event
	deleted []string
}

func (c *fakeCalendar) Events(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	return c.events, nil
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	ev.ID = "evt-1"
	c.events = append(c.events, ev)
	return ev, nil
}

func (c *fakeCalendar) UpdateEvent(ctx context.Context, id string, ev calendar.Event) (calendar.Event, error) {
	ev.ID = id
	return ev, nil
}

func (c *fakeCalendar) DeleteEvent(ctx context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *fakeCalendar) DeleteEventsInRange(ctx context.Context, start, end time.Time) (int, error) {
	n := len(c.events)
	c.events = nil
	return n, nil
}

func TestCalendarRoutes(t *testing.T) {
	cal := &fakeCalendar{}
	f := newFixture(t, cal)

	rec := f.do(http.MethodPost, "/api/calendar/events", `{
		"summary": "Trash pickup",
		"start": "2026-09-01T07:00:00Z",
		"end": "2026-09-01T08:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created calendar.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "evt-1", created.ID)

	rec = f.do(http.MethodGet, "/api/calendar/events?start=2026-09-01T00:00:00Z&end=2026-09-02T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trash pickup")

	rec = f.do(http.MethodGet, "/api/calendar/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing range parameters")

	rec = f.do(http.MethodDelete, "/api/calendar/events/evt-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"evt-1"}, cal.deleted)

	rec = f.do(http.MethodDelete, "/api/calendar/events?start=2026-09-01T00:00:00Z&end=2026-09-30T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted": 1`)
}

func TestCalendarDisabledWhenNil(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/calendar/events?start=2026-09-01T00:00:00Z&end=2026-09-02T00:00:00Z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
