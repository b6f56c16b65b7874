package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

// expansionPad widens the reservation lookup window around a candidate slot.
const expansionPad = time.Hour

// ConflictKind describes which occupation a candidate slot collides with.
type ConflictKind string

const (
	// ConflictNone indicates the slot is free.
	ConflictNone ConflictKind = ""
	// ConflictFixedClass indicates an active weekly class occupies the slot.
	ConflictFixedClass ConflictKind = "fixed_class"
	// ConflictReservation indicates a reservation occurrence occupies the slot.
	ConflictReservation ConflictKind = "reservation"
)

// ClassSource lists the active weekly classes of a room on one weekday.
type ClassSource interface {
	ActiveClasses(ctx context.Context, roomID string, weekday timezone.Weekday, excludeID string) ([]recurrence.Class, error)
}

// ReservationSource lists the non-cancelled reservations of a room.
type ReservationSource interface {
	ActiveReservations(ctx context.Context, roomID string) ([]recurrence.Reservation, error)
}

// Checker detects overlaps between a candidate slot and a room's occupations.
type Checker struct {
	classes      ClassSource
	reservations ReservationSource
	engine       *recurrence.Engine
	now          func() time.Time
}

// NewChecker wires a Checker. A nil now defaults to time.Now.
func NewChecker(classes ClassSource, reservations ReservationSource, engine *recurrence.Engine, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{classes: classes, reservations: reservations, engine: engine, now: now}
}

// HasConflict reports whether [start, end) on weekday collides with the room's
// occupations. Active classes are checked first; reservations are then
// expanded around the next calendar date falling on weekday, today included.
func (c *Checker) HasConflict(ctx context.Context, roomID string, weekday timezone.Weekday, start, end timezone.TimeOfDay, excludeID string) (ConflictKind, error) {
	fixed, err := c.FixedClassConflict(ctx, roomID, weekday, start, end, excludeID)
	if err != nil {
		return ConflictNone, err
	}
	if fixed {
		return ConflictFixedClass, nil
	}

	zone := c.engine.Zone()
	day := zone.NextWeekdayDate(c.now(), weekday)
	busy, err := c.ReservationConflict(ctx, roomID, zone.Combine(day, start), zone.Combine(day, end), "")
	if err != nil {
		return ConflictNone, err
	}
	if busy {
		return ConflictReservation, nil
	}
	return ConflictNone, nil
}

// FixedClassConflict compares time-of-day intervals against active classes.
func (c *Checker) FixedClassConflict(ctx context.Context, roomID string, weekday timezone.Weekday, start, end timezone.TimeOfDay, excludeID string) (bool, error) {
	if c.classes == nil {
		return false, nil
	}
	classes, err := c.classes.ActiveClasses(ctx, roomID, weekday, excludeID)
	if err != nil {
		return false, fmt.Errorf("load classes: %w", err)
	}
	for _, class := range classes {
		if excludeID != "" && class.ID == excludeID {
			continue
		}
		if !class.Active || class.Weekday != weekday {
			continue
		}
		if minutesOverlap(start, end, class.Start, class.End) {
			return true, nil
		}
	}
	return false, nil
}

// ReservationConflict expands the room's reservations around [start, end) and
// reports the first overlapping occurrence. excludeID skips one reservation.
func (c *Checker) ReservationConflict(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	if c.reservations == nil {
		return false, nil
	}
	reservations, err := c.reservations.ActiveReservations(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("load reservations: %w", err)
	}

	windowStart := start.Add(-expansionPad)
	windowEnd := end.Add(expansionPad)
	for _, r := range reservations {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		for _, occ := range c.engine.ReservationOccurrences(ctx, r, windowStart, windowEnd) {
			if recurrence.Overlaps(occ.Start, occ.End, start, end) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Occupied returns every class and reservation occurrence of a room inside [start, end).
func (c *Checker) Occupied(ctx context.Context, roomID string, start, end time.Time) ([]recurrence.Occurrence, error) {
	var out []recurrence.Occurrence
	if c.reservations != nil {
		reservations, err := c.reservations.ActiveReservations(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("load reservations: %w", err)
		}
		for _, r := range reservations {
			out = append(out, c.engine.ReservationOccurrences(ctx, r, start, end)...)
		}
	}
	if c.classes != nil {
		zone := c.engine.Zone()
		for day := zone.StartOfDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
			weekday := timezone.WeekdayOf(day)
			classes, err := c.classes.ActiveClasses(ctx, roomID, weekday, "")
			if err != nil {
				return nil, fmt.Errorf("load classes: %w", err)
			}
			dayEnd := day.AddDate(0, 0, 1)
			for _, class := range classes {
				out = append(out, c.engine.ClassOccurrences(class, maxTime(day, start), minTime(dayEnd, end))...)
			}
		}
	}
	return out, nil
}

func minutesOverlap(aStart, aEnd, bStart, bEnd timezone.TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
