package reconcile

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/support-desk/internal/model"
)

// DefaultSyntheticStep separates events that carry no precise time.
const DefaultSyntheticStep = time.Millisecond

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Normalizer turns recorded or legacy event times into comparable instants.
type Normalizer struct {
	Step time.Duration
	// ClockLocation is the zone legacy "HH:MM" clocks were written in.
	// Nil uses the zone of the reference instant.
	ClockLocation *time.Location
}

// ParseTimestamp parses a recorded timestamp.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseClock parses a bare "HH:MM" string.
func ParseClock(raw string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// Normalize returns the instant of the event at position in a log of
// total events, relative to the reference instant asOf. synthetic is
// true when the instant was derived. Derived instants are pulled back by
// Step for every event that follows in the log, so same-minute legacy
// events stay distinct and keep their log order.
func (n Normalizer) Normalize(e model.Event, position, total int, asOf time.Time) (at time.Time, synthetic bool) {
	if t, ok := ParseTimestamp(e.Timestamp); ok {
		return t, false
	}

	step := n.Step
	if step <= 0 {
		step = DefaultSyntheticStep
	}
	offset := time.Duration(total-position) * step

	if hour, minute, ok := ParseClock(e.Clock); ok {
		loc := n.ClockLocation
		if loc == nil {
			loc = asOf.Location()
		}
		day := asOf.In(loc)
		base := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		return base.Add(-offset).In(asOf.Location()), true
	}
	return asOf.Add(-offset), true
}
