// Package timerange builds and parses the half-open service window stored on
// each reservation as a `[start, end)` literal.
package timerange

import (
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/logger"
)

// DefaultScheduledDuration is applied to scheduled bookings without an explicit end.
const DefaultScheduledDuration = 2 * time.Hour

// isoMillis is the wire format used when writing range literals.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// parseLayouts covers our own output plus the text form Postgres returns for tstzrange.
var parseLayouts = []string{
	time.RFC3339Nano,
	isoMillis,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
}

// Modality selects how a range is derived.
type Modality string

const (
	Instant   Modality = "instant"
	Scheduled Modality = "scheduled"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the range carries no instants.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// String renders the range as a `[start,end)` literal with millisecond precision.
func (r Range) String() string {
	return Format(r)
}

// Builder derives ranges for new reservations.
type Builder struct {
	Now      func() time.Time
	Location *time.Location
	Duration time.Duration
}

// NewBuilder returns a Builder using the wall clock in loc.
func NewBuilder(loc *time.Location, scheduledDuration time.Duration) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	if scheduledDuration <= 0 {
		scheduledDuration = DefaultScheduledDuration
	}
	return &Builder{Now: time.Now, Location: loc, Duration: scheduledDuration}
}

// Build returns the window for a booking.
//
// instant: [now, 23:59:59.999 of the current local day).
// scheduled: [start, start+duration), start defaulting to now. A non-nil end
// overrides the default duration.
func (b *Builder) Build(m Modality, start, end *time.Time) (Range, error) {
	now := b.Now().In(b.Location)

	switch m {
	case Instant:
		return Range{Start: now, End: EndOfDay(now)}, nil
	case Scheduled:
		s := now
		if start != nil && !start.IsZero() {
			s = start.In(b.Location)
		}
		e := s.Add(b.Duration)
		if end != nil && !end.IsZero() {
			e = end.In(b.Location)
		}
		if e.Before(s) {
			return Range{}, fmt.Errorf("range end %s is before start %s", e.Format(isoMillis), s.Format(isoMillis))
		}
		return Range{Start: s, End: e}, nil
	default:
		return Range{}, fmt.Errorf("unknown modality %q", m)
	}
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Format renders r as `[start,end)`.
func Format(r Range) string {
	return "[" + r.Start.Format(isoMillis) + "," + r.End.Format(isoMillis) + ")"
}

// Parse reads a range literal. Malformed input yields (Range{}, false) and a
// warning log rather than an error so callers can render a placeholder.
func Parse(text string) (Range, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		logger.Warn("Empty time range", "raw", text)
		return Range{}, false
	}

	inner := strings.Trim(raw, "[]()")
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		logger.Warn("Malformed time range", "raw", text, "reason", "expected two bounds")
		return Range{}, false
	}

	start, err := parseInstant(parts[0])
	if err != nil {
		logger.Warn("Malformed time range", "raw", text, "bound", "start", "error", err)
		return Range{}, false
	}
	end, err := parseInstant(parts[1])
	if err != nil {
		logger.Warn("Malformed time range", "raw", text, "bound", "end", "error", err)
		return Range{}, false
	}
	if end.Before(start) {
		logger.Warn("Malformed time range", "raw", text, "reason", "end before start")
		return Range{}, false
	}

	return Range{Start: start, End: end}, true
}

func parseInstant(s string) (time.Time, error) {
	v := strings.Trim(strings.TrimSpace(s), `"`)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty bound")
	}
	var lastErr error
	for _, layout := range parseLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
