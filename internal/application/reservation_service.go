package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/timezone"
)

const (
	reservationEventPrefix = "r-"
	classEventPrefix       = "sc-"
)

// ReservationService books and cancels reservations and serves the calendar feeds.
type ReservationService struct {
	stores      Stores
	engine      *recurrence.Engine
	checker     *scheduler.Checker
	suggester   *scheduler.Suggester
	locks       *RoomLocks
	publisher   notify.Publisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReservationService wires the reservation service.
func NewReservationService(stores Stores, engine *recurrence.Engine, locks *RoomLocks, publisher notify.Publisher, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(stores, engine, locks, publisher, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires the reservation service with a specified logger.
func NewReservationServiceWithLogger(stores Stores, engine *recurrence.Engine, locks *RoomLocks, publisher notify.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = recurrence.NewEngine(timezone.New(nil))
	}
	if locks == nil {
		locks = NewRoomLocks()
	}
	return &ReservationService{
		stores:      stores,
		engine:      engine,
		checker:     newChecker(stores, engine, now),
		suggester:   newSuggester(stores),
		locks:       locks,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

func (s *ReservationService) zone() timezone.Zone {
	return s.engine.Zone()
}

// CreateReservation validates the request, rejects it on any overlap and persists it.
// Fixed classes are checked on the weekday of the requested date, then
// reservation occurrences on the concrete datetimes.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", params.Principal.UserID,
		"room_slug", params.Input.RoomSlug,
		"date", params.Input.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := params.Input
	zone := s.zone()
	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomSlug) == "" {
		vErr.add("room_slug", "sala é obrigatória")
	}
	var day time.Time
	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", "data é obrigatória")
	} else if day, err = zone.ParseDate(input.Date); err != nil {
		err = nil
		vErr.add("date", "data inválida")
	} else if day.Before(zone.StartOfDay(s.now())) {
		vErr.add("date", "não é possível reservar no passado")
	}
	start, end := parseSlot(input.StartTime, durationOrDefault(input.DurationMinutes), vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room persistence.Room
	room, err = resolveRoom(ctx, s.stores.Rooms, input.RoomSlug)
	if err != nil {
		return
	}

	ownerID := params.Principal.UserID
	if target := strings.TrimSpace(input.UserID); target != "" && params.Principal.IsStaff() {
		if _, err = s.stores.Users.GetUser(ctx, target); err != nil {
			err = mapRepoError(err, "user_id", "usuário inválido")
			return
		}
		ownerID = target
	}

	var rule *string
	if trimmed := strings.TrimSpace(input.RecurrenceRule); trimmed != "" {
		rule = &trimmed
	}

	startAt := zone.Combine(day, start)
	endAt := startAt.Add(time.Duration(end-start) * time.Minute)
	weekday := timezone.WeekdayOf(day)
	if rule != nil {
		if _, perr := recurrence.ParseRule(*rule, startAt); errors.Is(perr, recurrence.ErrUnsupportedFrequency) {
			err = newValidationError("recurrence_rule", "frequência não suportada")
			return
		}
	}

	unlock := s.locks.Lock(room.ID)
	defer unlock()

	var fixed bool
	fixed, err = s.checker.FixedClassConflict(ctx, room.ID, weekday, start, end, "")
	if err != nil {
		return
	}
	if fixed {
		var alternatives []scheduler.Slot
		alternatives, err = s.suggester.Suggest(ctx, room.ID, weekday, start, int(end-start), "", scheduler.DefaultMaxSuggestions)
		if err != nil {
			return
		}
		err = &ConflictError{
			Kind: scheduler.ConflictFixedClass,
			Weekdays: []WeekdayConflict{{
				Kind:         scheduler.ConflictFixedClass,
				Weekday:      weekday,
				Start:        start,
				Alternatives: alternatives,
			}},
		}
		return
	}

	var busy bool
	busy, err = s.checker.ReservationConflict(ctx, room.ID, startAt, endAt, "")
	if err != nil {
		return
	}
	if busy {
		err = &ConflictError{
			Kind:     scheduler.ConflictReservation,
			Weekdays: []WeekdayConflict{{Kind: scheduler.ConflictReservation, Weekday: weekday, Start: start}},
		}
		return
	}

	now := s.now()
	record := persistence.Reservation{
		ID:             s.idGenerator(),
		RoomID:         room.ID,
		UserID:         ownerID,
		Start:          startAt,
		End:            endAt,
		RecurrenceRule: rule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = s.stores.Reservations.CreateReservation(ctx, record); err != nil {
		err = mapRepoError(err, "date", "reserva inválida")
		return
	}
	unlock()

	reservation = reservationFromPersistence(record)
	publishEvent(ctx, s.publisher, logger, notify.Event{
		Type:       notify.ReservationCreated,
		OccurredAt: now,
		RoomID:     room.ID,
		RoomSlug:   room.Slug,
		ResourceID: reservationEventPrefix + record.ID,
		ActorID:    params.Principal.UserID,
		Data: map[string]any{
			"start":     zone.Normalize(startAt).Format(time.RFC3339),
			"end":       zone.Normalize(endAt).Format(time.RFC3339),
			"recurring": rule != nil,
		},
	})
	return
}

// CancelReservation cancels a whole series or a single date of it. The ID may
// carry the "r-" feed prefix.
func (s *ReservationService) CancelReservation(ctx context.Context, params CancelReservationParams) (result CancelReservationResult, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	id := stripEventPrefix(params.ReservationID, reservationEventPrefix)
	mode := params.Mode
	if mode == "" {
		mode = CancelSingle
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"principal_id", params.Principal.UserID,
		"reservation_id", id,
		"mode", string(mode),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("exception_date", result.ExceptionDate).InfoContext(ctx, "reservation cancelled")
	}()

	if id == "" {
		err = newValidationError("reservation_id", "reserva inválida")
		return
	}
	if mode != CancelAll && mode != CancelSingle {
		err = newValidationError("mode", "modo de cancelamento inválido")
		return
	}

	var record persistence.Reservation
	record, err = s.stores.Reservations.GetReservation(ctx, id)
	if err != nil {
		err = mapRepoError(err, "reservation_id", "reserva inválida")
		return
	}
	if !params.Principal.CanManage(record.UserID) {
		err = ErrUnauthorized
		return
	}

	var day time.Time
	if mode == CancelSingle {
		if strings.TrimSpace(params.Date) == "" {
			err = newValidationError("date", "data obrigatória para cancelar só um dia")
			return
		}
		if day, err = s.zone().ParseDate(params.Date); err != nil {
			err = newValidationError("date", "data inválida")
			return
		}
	}

	now := s.now()
	var room persistence.Room
	if room, err = s.stores.Rooms.GetRoom(ctx, record.RoomID); err != nil {
		err = mapRepoError(err, "room_slug", "sala inválida")
		return
	}
	event := notify.Event{
		OccurredAt: now,
		RoomID:     room.ID,
		RoomSlug:   room.Slug,
		ResourceID: reservationEventPrefix + record.ID,
		ActorID:    params.Principal.UserID,
	}

	if mode == CancelAll || record.RecurrenceRule == nil {
		if !record.Cancelled {
			if err = s.stores.Reservations.SetReservationCancelled(ctx, record.ID, now); err != nil {
				err = mapRepoError(err, "reservation_id", "reserva inválida")
				return
			}
			record.Cancelled = true
			record.UpdatedAt = now
			event.Type = notify.ReservationCancelled
			publishEvent(ctx, s.publisher, logger, event)
		}
		result = CancelReservationResult{Reservation: reservationFromPersistence(record)}
		return
	}

	dateKey := s.zone().DateKey(day)
	var created bool
	created, err = s.stores.Reservations.AddException(ctx, persistence.ReservationException{
		ID:            s.idGenerator(),
		ReservationID: record.ID,
		Date:          dateKey,
		CreatedAt:     now,
	})
	if err != nil {
		err = mapRepoError(err, "date", "data inválida")
		return
	}
	if created {
		event.Type = notify.ReservationOccurrenceCancelled
		event.Data = map[string]any{"date": dateKey}
		publishEvent(ctx, s.publisher, logger, event)
	}

	result = CancelReservationResult{
		Reservation:      reservationFromPersistence(record),
		ExceptionDate:    dateKey,
		ExceptionCreated: created,
	}
	return
}

// CancelBulk cancels "r-" reservations and deactivates "sc-" classes for staff.
// Unknown identifiers are ignored.
func (s *ReservationService) CancelBulk(ctx context.Context, principal Principal, ids []string) (result BulkCancelResult, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBulk",
		"principal_id", principal.UserID,
		"requested", len(ids),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel in bulk", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservations", result.Reservations, "classes", result.Classes).InfoContext(ctx, "bulk cancel applied")
	}()

	if !principal.IsStaff() {
		err = ErrUnauthorized
		return
	}
	if len(ids) == 0 {
		err = newValidationError("ids", "nenhum evento selecionado")
		return
	}
	if s.stores.Bulk == nil {
		err = fmt.Errorf("bulk canceller not configured")
		return
	}

	var reservationIDs, classIDs []string
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(id, classEventPrefix):
			classIDs = append(classIDs, strings.TrimPrefix(id, classEventPrefix))
		case strings.HasPrefix(id, reservationEventPrefix):
			reservationIDs = append(reservationIDs, strings.TrimPrefix(id, reservationEventPrefix))
		}
	}

	now := s.now()
	var cancelled, deactivated []string
	cancelled, deactivated, err = s.stores.Bulk.CancelBulk(ctx, reservationIDs, classIDs, now)
	if err != nil {
		return
	}
	result.Reservations, result.Classes = len(cancelled), len(deactivated)

	for _, id := range cancelled {
		publishEvent(ctx, s.publisher, logger, notify.Event{Type: notify.ReservationCancelled, OccurredAt: now, ResourceID: reservationEventPrefix + id, ActorID: principal.UserID})
	}
	for _, id := range deactivated {
		publishEvent(ctx, s.publisher, logger, notify.Event{Type: notify.ClassToggled, OccurredAt: now, ResourceID: classEventPrefix + id, ActorID: principal.UserID, Data: map[string]any{"active": false}})
	}
	return
}

// ListEvents returns the calendar feed for any signed-in user.
func (s *ReservationService) ListEvents(ctx context.Context, params EventFeedParams) ([]CalendarEvent, error) {
	params.UserID = ""
	return s.listEvents(ctx, "ListEvents", params, false)
}

// ListAdminEvents returns the staff calendar feed, optionally filtered by owner.
func (s *ReservationService) ListAdminEvents(ctx context.Context, params EventFeedParams) ([]CalendarEvent, error) {
	if !params.Principal.IsStaff() {
		s.loggerWith(ctx, "ListAdminEvents", "principal_id", params.Principal.UserID).
			ErrorContext(ctx, "failed to list events", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return nil, ErrUnauthorized
	}
	if params.UserID == "all" {
		params.UserID = ""
	}
	return s.listEvents(ctx, "ListAdminEvents", params, true)
}

func (s *ReservationService) listEvents(ctx context.Context, operation string, params EventFeedParams, admin bool) (events []CalendarEvent, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"room_slug", params.RoomSlug,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	zone := s.zone()
	vErr := &ValidationError{}
	windowStart, startErr := zone.ParseDateTime(params.Start)
	if startErr != nil {
		vErr.add("start", "início inválido")
	}
	windowEnd, endErr := zone.ParseDateTime(params.End)
	if endErr != nil {
		vErr.add("end", "fim inválido")
	}
	if startErr == nil && endErr == nil && !windowEnd.After(windowStart) {
		vErr.add("end", "fim deve ser posterior ao início")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var rooms []persistence.Room
	rooms, err = s.stores.Rooms.ListRooms(ctx)
	if err != nil {
		return
	}
	roomsByID := make(map[string]persistence.Room, len(rooms))
	roomFilter := ""
	for _, room := range rooms {
		roomsByID[room.ID] = room
		if params.RoomSlug != "" && room.Slug == strings.TrimSpace(params.RoomSlug) {
			roomFilter = room.ID
		}
	}
	if params.RoomSlug != "" && roomFilter == "" {
		events = []CalendarEvent{}
		return
	}

	var names map[string]string
	names, err = s.displayNames(ctx)
	if err != nil {
		return
	}

	var rows []persistence.Reservation
	rows, err = s.stores.Reservations.ListReservations(ctx, persistence.ReservationFilter{RoomID: roomFilter, UserID: params.UserID})
	if err != nil {
		return
	}
	var expanded []recurrence.Reservation
	expanded, err = withExceptions(ctx, s.stores.Reservations, rows)
	if err != nil {
		return
	}

	events = []CalendarEvent{}
	for i, row := range rows {
		room := roomsByID[row.RoomID]
		teacher := names[row.UserID]
		for _, occ := range s.engine.ReservationOccurrences(ctx, expanded[i], windowStart, windowEnd) {
			events = append(events, CalendarEvent{
				ID:          reservationEventPrefix + row.ID,
				Type:        EventTypeReservation,
				Title:       teacher,
				Start:       occ.Start,
				End:         occ.End,
				RoomSlug:    room.Slug,
				RoomName:    room.Name,
				TeacherName: teacher,
				OwnerID:     row.UserID,
				CanCancel:   admin || params.Principal.CanManage(row.UserID),
				Recurring:   row.RecurrenceRule != nil,
			})
		}
	}

	var classes []persistence.ScheduledClass
	classes, err = s.stores.Classes.ListClasses(ctx, persistence.ClassFilter{RoomID: roomFilter, UserID: params.UserID, ActiveOnly: true})
	if err != nil {
		return
	}
	for _, class := range classes {
		room := roomsByID[class.RoomID]
		teacher := names[class.UserID]
		title := strings.TrimSpace(class.Title)
		if title == "" {
			title = DefaultClassTitle
		}
		if !admin {
			title = title + " — " + teacher
		}
		for _, occ := range s.engine.ClassOccurrences(classToRecurrence(class), windowStart, windowEnd) {
			events = append(events, CalendarEvent{
				ID:          classEventPrefix + class.ID,
				Type:        EventTypeScheduledClass,
				Title:       title,
				Start:       occ.Start,
				End:         occ.End,
				RoomSlug:    room.Slug,
				RoomName:    room.Name,
				TeacherName: teacher,
				OwnerID:     class.UserID,
				CanCancel:   admin,
				Recurring:   true,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return
}

func (s *ReservationService) displayNames(ctx context.Context) (map[string]string, error) {
	users, err := s.stores.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, user := range users {
		name := strings.TrimSpace(user.DisplayName)
		if name == "" {
			name = user.Email
		}
		names[user.ID] = name
	}
	return names, nil
}

// Availability lists the free 30-minute starts of a day for a booking of the
// given length. Past dates yield an empty list; for today, starts before the
// current time are skipped.
func (s *ReservationService) Availability(ctx context.Context, params AvailabilityParams) (slots []string, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Availability",
		"principal_id", params.Principal.UserID,
		"room_slug", params.RoomSlug,
		"date", params.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(slots)).InfoContext(ctx, "availability computed")
	}()

	zone := s.zone()
	duration := durationOrDefault(params.DurationMinutes)
	vErr := &ValidationError{}
	if strings.TrimSpace(params.RoomSlug) == "" {
		vErr.add("room_slug", "sala é obrigatória")
	}
	var day time.Time
	if strings.TrimSpace(params.Date) == "" {
		vErr.add("date", "data é obrigatória")
	} else if parsed, parseErr := zone.ParseDate(params.Date); parseErr != nil {
		vErr.add("date", "data inválida")
	} else {
		day = parsed
	}
	if duration <= 0 || duration >= timezone.MinutesPerDay {
		vErr.add("duration_min", "duração inválida")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	slots = []string{}
	now := zone.Normalize(s.now())
	today := zone.StartOfDay(now)
	if day.Before(today) {
		return
	}

	var room persistence.Room
	room, err = resolveRoom(ctx, s.stores.Rooms, params.RoomSlug)
	if err != nil {
		return
	}

	var notBefore time.Time
	if day.Equal(today) {
		notBefore = now
	}

	var free []timezone.TimeOfDay
	free, err = s.checker.FreeSlots(ctx, room.ID, day, duration, notBefore)
	if err != nil {
		return
	}
	for _, start := range free {
		slots = append(slots, start.String())
	}
	return
}
