package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

const (
	// SlotStep is the granularity of suggested and available slots, in minutes.
	SlotStep = 30
	// DefaultMaxSuggestions caps Suggest results when limit is not positive.
	DefaultMaxSuggestions = 8

	firstSuggestion timezone.TimeOfDay = 6 * 60
	lastSuggestion  timezone.TimeOfDay = 23 * 60
	lastMinute      timezone.TimeOfDay = 23*60 + 59
)

// Slot is a free start time on a weekday.
type Slot struct {
	Weekday timezone.Weekday
	Start   timezone.TimeOfDay
}

// Label renders "<weekday> • HH:MM".
func (s Slot) Label() string {
	return fmt.Sprintf("%s • %s", s.Weekday.Label(), s.Start)
}

// Suggester proposes alternative starts for a rejected weekly slot.
//
// Only active classes count as busy time; reservations are not consulted.
type Suggester struct {
	classes ClassSource
}

// NewSuggester wires a Suggester over the class grid.
func NewSuggester(classes ClassSource) *Suggester {
	return &Suggester{classes: classes}
}

// Suggest scans 06:00..23:00 in SlotStep increments and returns up to limit free
// starts ordered by distance from desired, earlier first on ties.
func (s *Suggester) Suggest(ctx context.Context, roomID string, weekday timezone.Weekday, desired timezone.TimeOfDay, durationMinutes int, excludeID string, limit int) ([]Slot, error) {
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}

	var busy []recurrence.Class
	if s.classes != nil {
		classes, err := s.classes.ActiveClasses(ctx, roomID, weekday, excludeID)
		if err != nil {
			return nil, fmt.Errorf("load classes: %w", err)
		}
		for _, class := range classes {
			if excludeID != "" && class.ID == excludeID {
				continue
			}
			if class.Active && class.Weekday == weekday {
				busy = append(busy, class)
			}
		}
	}

	var candidates []Slot
	for start := firstSuggestion; start <= lastSuggestion; start += SlotStep {
		end := start.Add(durationMinutes)
		if end > lastMinute {
			continue
		}
		free := true
		for _, class := range busy {
			if minutesOverlap(start, end, class.Start, class.End) {
				free = false
				break
			}
		}
		if free {
			candidates = append(candidates, Slot{Weekday: weekday, Start: start})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return distance(candidates[i].Start, desired) < distance(candidates[j].Start, desired)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func distance(a, b timezone.TimeOfDay) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// FreeSlots lists the SlotStep starts of day whose [start, start+duration)
// fits before 23:59:59 and overlaps no class or reservation occurrence.
// Starts earlier than notBefore are skipped.
func (c *Checker) FreeSlots(ctx context.Context, roomID string, day time.Time, durationMinutes int, notBefore time.Time) ([]timezone.TimeOfDay, error) {
	zone := c.engine.Zone()
	dayStart := zone.StartOfDay(day)
	dayEnd := zone.Combine(dayStart, lastMinute).Add(59 * time.Second)
	duration := time.Duration(durationMinutes) * time.Minute

	occupied, err := c.Occupied(ctx, roomID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var free []timezone.TimeOfDay
	for start := timezone.TimeOfDay(0); start < timezone.MinutesPerDay; start += SlotStep {
		slotStart := zone.Combine(dayStart, start)
		slotEnd := slotStart.Add(duration)
		if slotEnd.After(dayEnd) {
			break
		}
		if slotStart.Before(notBefore) {
			continue
		}
		open := true
		for _, occ := range occupied {
			if recurrence.Overlaps(occ.Start, occ.End, slotStart, slotEnd) {
				open = false
				break
			}
		}
		if open {
			free = append(free, start)
		}
	}
	return free, nil
}
