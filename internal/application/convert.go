package application

import (
	"errors"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

func roomFromPersistence(r persistence.Room) Room {
	return Room{ID: r.ID, Slug: r.Slug, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func userFromPersistence(u persistence.User, p persistence.Profile) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        Role(p.Role),
		Phone:       p.Phone,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func reservationFromPersistence(r persistence.Reservation) Reservation {
	out := Reservation{
		ID:        r.ID,
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		Start:     r.Start,
		End:       r.End,
		Cancelled: r.Cancelled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.RecurrenceRule != nil {
		rule := *r.RecurrenceRule
		out.RecurrenceRule = &rule
	}
	return out
}

func reservationToRecurrence(r persistence.Reservation, exceptions []string) recurrence.Reservation {
	out := recurrence.Reservation{
		ID:         r.ID,
		Start:      r.Start,
		End:        r.End,
		Cancelled:  r.Cancelled,
		Exceptions: exceptions,
	}
	if r.RecurrenceRule != nil {
		out.Rule = *r.RecurrenceRule
	}
	return out
}

func classFromPersistence(c persistence.ScheduledClass) ScheduledClass {
	return ScheduledClass{
		ID:        c.ID,
		RoomID:    c.RoomID,
		UserID:    c.UserID,
		Title:     c.Title,
		Weekday:   timezone.Weekday(c.Weekday),
		Start:     timezone.TimeOfDay(c.StartMinute),
		End:       timezone.TimeOfDay(c.EndMinute),
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func classToPersistence(c ScheduledClass) persistence.ScheduledClass {
	return persistence.ScheduledClass{
		ID:          c.ID,
		RoomID:      c.RoomID,
		UserID:      c.UserID,
		Title:       c.Title,
		Weekday:     int(c.Weekday),
		StartMinute: int(c.Start),
		EndMinute:   int(c.End),
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func classToRecurrence(c persistence.ScheduledClass) recurrence.Class {
	return recurrence.Class{
		ID:      c.ID,
		Weekday: timezone.Weekday(c.Weekday),
		Start:   timezone.TimeOfDay(c.StartMinute),
		End:     timezone.TimeOfDay(c.EndMinute),
		Active:  c.Active,
	}
}

// mapRepoError translates persistence sentinels into service errors. field
// names the input a constraint failure is reported against.
func mapRepoError(err error, field, message string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError(field, message)
	}
	return err
}
