package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clockwork-home/clockworkd/internal/status"
)

// StatusJSON is the top-level JSON envelope for the status endpoint.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Registered    int        `json:"registered_calculations"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	DBPath      string `json:"db_path"`
	TickSeconds int64  `json:"tick_seconds"`
	Timezone    string `json:"timezone,omitempty"`
}

func buildStatus(snap status.Snapshot) StatusJSON {
	return StatusJSON{
		Status: StatusInner{
			Registered:    snap.Registered,
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
			Config: ConfigJSON{
				Broker:      snap.Config.Broker,
				HTTPAddr:    snap.Config.HTTPAddr,
				DBPath:      snap.Config.DBPath,
				TickSeconds: int64(snap.Config.TickInterval.Seconds()),
				Timezone:    snap.Config.Timezone,
			},
		},
	}
}

// errorJSON is the body for every non-2xx API response.
type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorJSON{Error: err.Error()})
}
