package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/timezone"
)

// windowPad widens rule enumeration so that occurrences straddling a window
// edge are still produced before the overlap filter runs.
const windowPad = time.Hour

var (
	// ErrInvalidRule indicates a recurrence string could not be parsed.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrUnsupportedFrequency rejects rules repeating more often than daily.
	// Enumeration always starts at DTSTART, so such rules grow without bound.
	ErrUnsupportedFrequency = errors.New("recurrence: frequency below daily is not supported")
)

// Reservation is the expandable view of a booking.
type Reservation struct {
	ID        string
	Start     time.Time
	End       time.Time
	Rule      string
	Cancelled bool
	// Exceptions lists local YYYY-MM-DD dates whose occurrence was cancelled.
	Exceptions []string
}

// Recurring reports whether a recurrence rule is attached.
func (r Reservation) Recurring() bool {
	return strings.TrimSpace(r.Rule) != ""
}

// Class is a fixed weekly occupation of a room.
type Class struct {
	ID      string
	Weekday timezone.Weekday
	Start   timezone.TimeOfDay
	End     timezone.TimeOfDay
	Active  bool
}

// Occurrence is one concrete interval produced from a reservation or class.
type Occurrence struct {
	SourceID string
	Start    time.Time
	End      time.Time
}

// Overlaps applies the half-open rule: [aStart, aEnd) and [bStart, bEnd)
// intersect iff aStart < bEnd and aEnd > bStart. Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Engine expands reservations and classes into occurrences.
type Engine struct {
	zone   timezone.Zone
	logger *slog.Logger
}

// NewEngine constructs an Engine bound to zone.
func NewEngine(zone timezone.Zone) *Engine {
	return NewEngineWithLogger(zone, nil)
}

// NewEngineWithLogger constructs an Engine that reports rule degradation to logger.
func NewEngineWithLogger(zone timezone.Zone, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{zone: zone, logger: logger}
}

// Zone exposes the normalization zone used by the engine.
func (e *Engine) Zone() timezone.Zone {
	return e.zone
}

// ReservationOccurrences expands r inside [windowStart, windowEnd).
//
// A cancelled reservation yields nothing. A rule that fails to parse degrades
// to the single base occurrence and is logged, never returned as an error.
func (e *Engine) ReservationOccurrences(ctx context.Context, r Reservation, windowStart, windowEnd time.Time) []Occurrence {
	if r.Cancelled {
		return nil
	}

	windowStart = e.zone.Normalize(windowStart)
	windowEnd = e.zone.Normalize(windowEnd)
	baseStart := e.zone.Normalize(r.Start)
	baseEnd := e.zone.Normalize(r.End)
	excepted := exceptionSet(r.Exceptions)

	if !r.Recurring() {
		return e.single(r.ID, baseStart, baseEnd, windowStart, windowEnd, excepted)
	}

	rule, err := ParseRule(r.Rule, baseStart)
	if err != nil {
		e.log(ctx).WarnContext(ctx, "recurrence rule degraded to single occurrence",
			"reservation_id", r.ID,
			"rule", r.Rule,
			"error", err,
		)
		return e.single(r.ID, baseStart, baseEnd, windowStart, windowEnd, excepted)
	}

	// An occurrence starting up to one duration before the window still
	// intersects it.
	duration := baseEnd.Sub(baseStart)
	starts := rule.Between(windowStart.Add(-duration-windowPad), windowEnd.Add(windowPad), true)
	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = e.zone.Normalize(start)
		end := start.Add(duration)
		if _, skip := excepted[e.zone.DateKey(start)]; skip {
			continue
		}
		if !Overlaps(start, end, windowStart, windowEnd) {
			continue
		}
		occurrences = append(occurrences, Occurrence{SourceID: r.ID, Start: start, End: end})
	}
	return occurrences
}

// ClassOccurrences expands an active class weekly inside [windowStart, windowEnd).
func (e *Engine) ClassOccurrences(c Class, windowStart, windowEnd time.Time) []Occurrence {
	if !c.Active || !c.Weekday.Valid() {
		return nil
	}

	windowStart = e.zone.Normalize(windowStart)
	windowEnd = e.zone.Normalize(windowEnd)

	var occurrences []Occurrence
	for day := e.zone.NextWeekdayDate(windowStart, c.Weekday); day.Before(windowEnd); day = day.AddDate(0, 0, 7) {
		start := e.zone.Combine(day, c.Start)
		end := e.zone.Combine(day, c.End)
		if Overlaps(start, end, windowStart, windowEnd) {
			occurrences = append(occurrences, Occurrence{SourceID: c.ID, Start: start, End: end})
		}
	}
	return occurrences
}

func (e *Engine) single(id string, start, end, windowStart, windowEnd time.Time, excepted map[string]struct{}) []Occurrence {
	if !Overlaps(start, end, windowStart, windowEnd) {
		return nil
	}
	if _, skip := excepted[e.zone.DateKey(start)]; skip {
		return nil
	}
	return []Occurrence{{SourceID: id, Start: start, End: end}}
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "recurrence")
	}
	return e.logger.With("component", "recurrence")
}

// ParseRule parses an RFC 5545 RRULE anchored at dtstart. A leading "RRULE:"
// is accepted. An explicit DTSTART inside value takes precedence.
func ParseRule(value string, dtstart time.Time) (*rrule.RRule, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "RRULE:")
	if value == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRule)
	}

	opt, err := rrule.StrToROptionInLocation(value, dtstart.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	switch opt.Freq {
	case rrule.HOURLY, rrule.MINUTELY, rrule.SECONDLY:
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, ErrUnsupportedFrequency)
	}
	if opt.Dtstart.IsZero() {
		opt.Dtstart = dtstart
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return rule, nil
}

func exceptionSet(dates []string) map[string]struct{} {
	if len(dates) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[strings.TrimSpace(d)] = struct{}{}
	}
	return set
}
