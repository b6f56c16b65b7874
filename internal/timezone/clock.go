package timezone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days Monday first: 0 is Monday and 6 is Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayLabels = [...]string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado", "Domingo"}

// WeekdayOf converts a time.Weekday based instant into the Monday-first numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Valid reports whether the weekday lies in 0..6.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// Label returns the pt-BR display label.
func (w Weekday) Label() string {
	if !w.Valid() {
		return strconv.Itoa(int(w))
	}
	return weekdayLabels[w]
}

func (w Weekday) String() string {
	return w.Label()
}

// ErrInvalidTimeOfDay indicates a malformed "HH:MM" value.
var ErrInvalidTimeOfDay = errors.New("timezone: invalid time of day")

// TimeOfDay counts minutes since local midnight.
type TimeOfDay int

// MinutesPerDay bounds TimeOfDay values.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". Seconds are discarded.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// TimeOfDayOf extracts the wall-clock minutes of an instant in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add shifts the value by minutes without wrapping past midnight.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// Valid reports whether the value is a wall-clock time inside one day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// String renders "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
