package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unit seconds for the word units accepted by ParseOffset.
var offsetUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseOffset parses a human offset string like "1 hour", "-30 minutes" or
// "2 days" into a signed duration. Plain Go duration syntax ("90m", "1h30m")
// is accepted as well. An empty string is zero.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	parts := strings.Fields(s)
	if len(parts) == 1 {
		d, err := time.ParseDuration(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parse offset %q: %w", s, err)
		}
		return d, nil
	}
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse offset %q: want value and unit", s)
	}

	value, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", s, err)
	}
	unit := strings.TrimSuffix(strings.ToLower(parts[1]), "s")
	base, ok := offsetUnits[unit]
	if !ok {
		return 0, fmt.Errorf("parse offset %q: unknown unit %q", s, parts[1])
	}
	return time.Duration(value) * base, nil
}

// ParseDatetime parses an entity's datetime value. Entities report either a
// full timestamp (RFC 3339, with or without zone, space or T separator) or a
// bare date. Naive values are interpreted in loc.
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse datetime: empty value")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse datetime %q: unrecognized format", s)
}
