// Package mqtt publishes calculation outputs to an MQTT broker, with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicPrefix is the root topic for calculation outputs. Each calculation
// publishes to <prefix>/<id>/state as a retained message.
const TopicPrefix = "clockwork/calc"

// TopicSystem is the topic for daemon lifecycle events.
const TopicSystem = "clockwork/system"

// Update is one calculation output push.
type Update struct {
	ID         string
	Value      string
	Attributes map[string]any
	Timestamp  time.Time
}

// Publisher pushes calculation outputs to the broker. Publishing is
// fire-and-forget: a failed push is not retried here, the next recompute
// republishes the current value.
type Publisher interface {
	// Publish sends a calculation's current value and attributes.
	Publish(update Update) error

	// PublishSystem sends a daemon lifecycle event (STARTUP, SHUTDOWN,
	// DEGRADED).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a daemon lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g. "STARTUP", "SHUTDOWN", "DEGRADED"
	Reason    string
	Retained  bool
}

// Payload is the published message for one calculation update.
type Payload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// FormatPayload creates the JSON payload for a calculation update.
func FormatPayload(update Update) ([]byte, error) {
	return json.Marshal(Payload{
		State:      update.Value,
		Attributes: update.Attributes,
		Timestamp:  update.Timestamp.UTC().Format(time.RFC3339),
	})
}

// SystemPayload is the published message for a lifecycle event.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// StateTopic returns the output topic for a calculation id.
func StateTopic(id string) string {
	return TopicPrefix + "/" + id + "/state"
}
