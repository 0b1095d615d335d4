// Package config loads the daemon's YAML configuration: broker settings,
// storage and HTTP addresses, and the list of calculation definitions.
// Durations inside calculation entries use the human offset syntax
// ("1 hour", "-30 minutes") rather than Go duration strings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clockwork-home/clockworkd/internal/calc"
	"github.com/clockwork-home/clockworkd/internal/dates"
)

// Defaults applied by Load when the file omits a field.
const (
	DefaultBroker       = "tcp://localhost:1883"
	DefaultClientID     = "clockworkd"
	DefaultDBPath       = "/var/lib/clockworkd/state.db"
	DefaultHTTPAddr     = ":8099"
	DefaultTickInterval = 15 * time.Second
)

// Duration is a time.Duration that unmarshals from YAML strings like "15s"
// or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration.
type Config struct {
	Broker       string   `yaml:"broker"`
	ClientID     string   `yaml:"client_id"`
	DBPath       string   `yaml:"db_path"`
	HTTPAddr     string   `yaml:"http_addr"`
	TickInterval Duration `yaml:"tick_interval"`
	Timezone     string   `yaml:"timezone"`

	Calendar CalendarConfig `yaml:"calendar"`

	Calculations []Calculation `yaml:"calculations"`
}

// CalendarConfig points at the upstream calendar provider. An empty BaseURL
// disables the calendar passthrough routes.
type CalendarConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// Calculation is the wire form of one calculation definition, shared by the
// YAML config file and the HTTP registration API. Offsets and intervals are
// strings so configs can say "1 hour" instead of "1h0m0s".
type Calculation struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`

	EntityID      string `yaml:"entity_id" json:"entity_id,omitempty"`
	StartEntityID string `yaml:"start_entity_id" json:"start_entity_id,omitempty"`
	EndEntityID   string `yaml:"end_entity_id" json:"end_entity_id,omitempty"`
	TrackedState  string `yaml:"tracked_state" json:"tracked_state,omitempty"`

	Offset         string `yaml:"offset" json:"offset,omitempty"`
	Mode           string `yaml:"mode" json:"mode,omitempty"`
	PulseWidth     string `yaml:"pulse_width" json:"pulse_width,omitempty"`
	UpdateInterval string `yaml:"update_interval" json:"update_interval,omitempty"`

	Months []string `yaml:"months" json:"months,omitempty"`

	Holiday        string          `yaml:"holiday" json:"holiday,omitempty"`
	OffsetDays     int             `yaml:"offset_days" json:"offset_days,omitempty"`
	CustomHolidays []dates.Holiday `yaml:"custom_holidays" json:"custom_holidays,omitempty"`

	Season     string `yaml:"season" json:"season,omitempty"`
	Hemisphere string `yaml:"hemisphere" json:"hemisphere,omitempty"`

	Range calc.DateRange `yaml:"range" json:"range,omitempty"`
}

// Load reads and parses the config file, applies defaults, and validates
// every calculation entry.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses config bytes, applies defaults, and validates every
// calculation entry.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.TickInterval <= 0 {
		c.TickInterval = Duration(DefaultTickInterval)
	}
	if c.Calendar.Timeout <= 0 {
		c.Calendar.Timeout = Duration(10 * time.Second)
	}
}

func (c Config) validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Calculations))
	for i, entry := range c.Calculations {
		def, err := entry.Definition()
		if err != nil {
			return fmt.Errorf("calculation %d (%s): %w", i, entry.ID, err)
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("calculation %d: %w", i, err)
		}
		if seen[def.ID] {
			return fmt.Errorf("calculation %d: duplicate id %q", i, def.ID)
		}
		seen[def.ID] = true
	}
	return nil
}

// Location resolves the configured timezone, defaulting to the host's.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Definitions converts every calculation entry. Parse assures these convert
// cleanly, so errors here only occur for a hand-built Config.
func (c Config) Definitions() ([]calc.Definition, error) {
	defs := make([]calc.Definition, 0, len(c.Calculations))
	for i, entry := range c.Calculations {
		def, err := entry.Definition()
		if err != nil {
			return nil, fmt.Errorf("calculation %d (%s): %w", i, entry.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Definition converts the YAML entry into an engine definition.
func (e Calculation) Definition() (calc.Definition, error) {
	offset, err := dates.ParseOffset(e.Offset)
	if err != nil {
		return calc.Definition{}, err
	}
	pulseWidth, err := dates.ParseOffset(e.PulseWidth)
	if err != nil {
		return calc.Definition{}, err
	}
	updateInterval, err := dates.ParseOffset(e.UpdateInterval)
	if err != nil {
		return calc.Definition{}, err
	}
	months, err := parseMonths(e.Months)
	if err != nil {
		return calc.Definition{}, err
	}

	return calc.Definition{
		ID:             e.ID,
		Name:           e.Name,
		Type:           calc.Type(e.Type),
		EntityID:       e.EntityID,
		StartEntityID:  e.StartEntityID,
		EndEntityID:    e.EndEntityID,
		TrackedState:   e.TrackedState,
		Offset:         offset,
		Mode:           calc.Mode(e.Mode),
		PulseWidth:     pulseWidth,
		UpdateInterval: updateInterval,
		Months:         months,
		HolidayKey:     e.Holiday,
		OffsetDays:     e.OffsetDays,
		CustomHolidays: e.CustomHolidays,
		TargetSeason:   dates.Season(e.Season),
		Hemisphere:     dates.Hemisphere(e.Hemisphere),
		Range:          e.Range,
	}, nil
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// parseMonths accepts month names ("november") or numbers ("11").
func parseMonths(names []string) ([]time.Month, error) {
	if len(names) == 0 {
		return nil, nil
	}
	months := make([]time.Month, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if m, ok := monthNames[key]; ok {
			months = append(months, m)
			continue
		}
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > 12 {
			return nil, fmt.Errorf("unknown month %q", name)
		}
		months = append(months, time.Month(n))
	}
	return months, nil
}
