package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// Embedded tzdata keeps America/Sao_Paulo resolvable on minimal images.
	_ "time/tzdata"
)

// DefaultName is the IANA zone used when no zone is configured.
const DefaultName = "America/Sao_Paulo"

// DateLayout is the calendar date format used for exception keys and query parameters.
const DateLayout = "2006-01-02"

// ErrInvalidDateTime indicates a value could not be interpreted as a date or datetime.
var ErrInvalidDateTime = errors.New("timezone: invalid date or datetime")

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Zone normalizes every instant entering the booking core into one location.
//
// Naive values (no offset) are interpreted as wall-clock time in the zone, aware
// values are converted. All expansion and conflict arithmetic happens on values
// returned by a Zone so that callers never mix naive and aware instants.
type Zone struct {
	loc *time.Location
}

// Load resolves an IANA zone name. An empty name resolves DefaultName.
func Load(name string) (Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("timezone: load %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// New wraps an existing location. A nil location falls back to DefaultName.
func New(loc *time.Location) Zone {
	if loc == nil {
		if z, err := Load(DefaultName); err == nil {
			return z
		}
		loc = time.UTC
	}
	return Zone{loc: loc}
}

// Location returns the wrapped location.
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return New(nil).loc
	}
	return z.loc
}

// Normalize converts an instant into the zone.
func (z Zone) Normalize(t time.Time) time.Time {
	return t.In(z.Location())
}

// ParseDateTime accepts RFC 3339 values, naive datetimes, or bare dates.
// Bare dates resolve to midnight in the zone.
func (z Zone) ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDateTime
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return z.Normalize(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, z.Location()); err == nil {
			return t, nil
		}
	}
	return z.ParseDate(value)
}

// ParseDate parses a YYYY-MM-DD value as midnight in the zone. A trailing
// time part after 'T' or a space is ignored; any other suffix is rejected.
func (z Zone) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(DateLayout) {
		if sep := value[len(DateLayout)]; sep != 'T' && sep != ' ' {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
		}
		value = value[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, value, z.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
	}
	return t, nil
}

// StartOfDay truncates an instant to midnight of its local date.
func (z Zone) StartOfDay(t time.Time) time.Time {
	y, m, d := z.Normalize(t).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, z.Location())
}

// Combine joins the local date of day with a time of day.
func (z Zone) Combine(day time.Time, tod TimeOfDay) time.Time {
	y, m, d := z.Normalize(day).Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, z.Location())
}

// NextWeekdayDate returns midnight of the first date on or after from that falls on weekday.
func (z Zone) NextWeekdayDate(from time.Time, weekday Weekday) time.Time {
	start := z.StartOfDay(from)
	days := (int(weekday) - int(WeekdayOf(start)) + 7) % 7
	return start.AddDate(0, 0, days)
}

// DateKey formats the local calendar date of an instant.
func (z Zone) DateKey(t time.Time) string {
	return z.Normalize(t).Format(DateLayout)
}
