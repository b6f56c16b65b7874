package application

import (
	"context"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

// classSource feeds the conflict checker from the class repository.
type classSource struct {
	classes persistence.ClassRepository
}

func (s classSource) ActiveClasses(ctx context.Context, roomID string, weekday timezone.Weekday, excludeID string) ([]recurrence.Class, error) {
	wd := int(weekday)
	rows, err := s.classes.ListClasses(ctx, persistence.ClassFilter{
		RoomID:     roomID,
		Weekday:    &wd,
		ActiveOnly: true,
		ExcludeID:  excludeID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]recurrence.Class, len(rows))
	for i, row := range rows {
		out[i] = classToRecurrence(row)
	}
	return out, nil
}

// reservationSource feeds the conflict checker from the reservation repository.
type reservationSource struct {
	reservations persistence.ReservationRepository
}

func (s reservationSource) ActiveReservations(ctx context.Context, roomID string) ([]recurrence.Reservation, error) {
	rows, err := s.reservations.ListReservations(ctx, persistence.ReservationFilter{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return withExceptions(ctx, s.reservations, rows)
}

// withExceptions converts rows for expansion, attaching each series' excepted dates.
func withExceptions(ctx context.Context, repo persistence.ReservationRepository, rows []persistence.Reservation) ([]recurrence.Reservation, error) {
	var recurringIDs []string
	for _, row := range rows {
		if row.RecurrenceRule != nil {
			recurringIDs = append(recurringIDs, row.ID)
		}
	}
	exceptions := map[string][]string{}
	if len(recurringIDs) > 0 {
		var err error
		exceptions, err = repo.ListExceptions(ctx, recurringIDs)
		if err != nil {
			return nil, err
		}
	}

	out := make([]recurrence.Reservation, len(rows))
	for i, row := range rows {
		out[i] = reservationToRecurrence(row, exceptions[row.ID])
	}
	return out, nil
}
