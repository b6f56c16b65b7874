package application

import (
	"context"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/timezone"
)

// Stores groups the repositories behind the booking services.
type Stores struct {
	Users        persistence.UserRepository
	Rooms        persistence.RoomRepository
	Reservations persistence.ReservationRepository
	Classes      persistence.ClassRepository
	Bulk         persistence.BulkCanceller
}

// DefaultDurationMinutes applies when a request leaves the duration empty.
const DefaultDurationMinutes = 60

// DefaultClassTitle names classes created without a title.
const DefaultClassTitle = "Aula"

func newChecker(stores Stores, engine *recurrence.Engine, now func() time.Time) *scheduler.Checker {
	var classes scheduler.ClassSource
	if stores.Classes != nil {
		classes = classSource{classes: stores.Classes}
	}
	var reservations scheduler.ReservationSource
	if stores.Reservations != nil {
		reservations = reservationSource{reservations: stores.Reservations}
	}
	return scheduler.NewChecker(classes, reservations, engine, now)
}

func newSuggester(stores Stores) *scheduler.Suggester {
	if stores.Classes == nil {
		return scheduler.NewSuggester(nil)
	}
	return scheduler.NewSuggester(classSource{classes: stores.Classes})
}

func resolveRoom(ctx context.Context, rooms persistence.RoomRepository, slug string) (persistence.Room, error) {
	room, err := rooms.GetRoomBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return persistence.Room{}, mapRepoError(err, "room_slug", "sala inválida")
	}
	return room, nil
}

// parseSlot validates a start time and duration that must end by midnight.
func parseSlot(startValue string, duration int, vErr *ValidationError) (start, end timezone.TimeOfDay) {
	if strings.TrimSpace(startValue) == "" {
		vErr.add("start_time", "horário de início é obrigatório")
		return 0, 0
	}
	start, err := timezone.ParseTimeOfDay(startValue)
	if err != nil {
		vErr.add("start_time", "horário de início inválido")
		return 0, 0
	}
	if duration <= 0 {
		vErr.add("duration_min", "duração deve ser positiva")
		return start, start
	}
	end = start.Add(duration)
	if end > timezone.MinutesPerDay {
		vErr.add("duration_min", "o horário deve terminar no mesmo dia")
	}
	return start, end
}

func durationOrDefault(minutes int) int {
	if minutes == 0 {
		return DefaultDurationMinutes
	}
	return minutes
}

// stripEventPrefix turns feed identifiers such as "r-12" into repository IDs.
func stripEventPrefix(id, prefix string) string {
	id = strings.TrimSpace(id)
	return strings.TrimPrefix(id, prefix)
}
