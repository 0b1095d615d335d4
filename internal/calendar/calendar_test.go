package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEvent() Event {
	return Event{
		Summary: "Trash pickup",
		Start:   time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-09-01T00:00:00Z", r.URL.Query().Get("start"))

		json.NewEncoder(w).Encode([]Event{fixedEvent()})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit", time.Second)
	events, err := c.Events(context.Background(),
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Trash pickup", events[0].Summary)
}

func TestCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		ev.ID = "evt-1"
		json.NewEncoder(w).Encode(ev)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	created, err := c.CreateEvent(context.Background(), fixedEvent())
	require.NoError(t, err)
	assert.Equal(t, "evt-1", created.ID)
	assert.Equal(t, "Trash pickup", created.Summary)
}

func TestUpdateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/events/evt-1", r.URL.Path)

		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		ev.ID = "evt-1"
		json.NewEncoder(w).Encode(ev)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	ev := fixedEvent()
	ev.Summary = "Trash pickup (moved)"
	updated, err := c.UpdateEvent(context.Background(), "evt-1", ev)
	require.NoError(t, err)
	assert.Equal(t, "Trash pickup (moved)", updated.Summary)
}

func TestDeleteEvent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	require.NoError(t, c.DeleteEvent(context.Background(), "evt-1"))
	assert.Equal(t, "/events/evt-1", gotPath)
}

func TestDeleteEventsInRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]int{"deleted": 3})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	n, err := c.DeleteEventsInRange(context.Background(),
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "event not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	err := c.DeleteEvent(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "event not found")
}
