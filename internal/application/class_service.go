package application

import (
	"context"
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

// ClassService manages the fixed weekly class grid. Every operation is staff only.
type ClassService struct {
	stores      Stores
	checker     *scheduler.Checker
	suggester   *scheduler.Suggester
	locks       *RoomLocks
	publisher   notify.Publisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewClassService wires the class service.
func NewClassService(stores Stores, engine *recurrence.Engine, locks *RoomLocks, publisher notify.Publisher, idGenerator func() string, now func() time.Time) *ClassService {
	return NewClassServiceWithLogger(stores, engine, locks, publisher, idGenerator, now, nil)
}

// NewClassServiceWithLogger wires the class service with a specified logger.
func NewClassServiceWithLogger(stores Stores, engine *recurrence.Engine, locks *RoomLocks, publisher notify.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ClassService {
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
	return &ClassService{
		stores:      stores,
		checker:     newChecker(stores, engine, now),
		suggester:   newSuggester(stores),
		locks:       locks,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ClassService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ClassService", operation, attrs...)
}

// ListClasses returns the grid ordered by room, weekday and start, optionally
// narrowed to one room. An unknown slug yields an empty list.
func (s *ClassService) ListClasses(ctx context.Context, principal Principal, roomSlug string) (classes []ScheduledClass, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListClasses", "principal_id", principal.UserID, "room_slug", roomSlug)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list classes", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(classes)).InfoContext(ctx, "classes listed")
	}()

	if !principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var rooms []persistence.Room
	if rooms, err = s.stores.Rooms.ListRooms(ctx); err != nil {
		return
	}
	roomsByID := make(map[string]persistence.Room, len(rooms))
	filter := persistence.ClassFilter{}
	for _, room := range rooms {
		roomsByID[room.ID] = room
		if roomSlug != "" && room.Slug == strings.TrimSpace(roomSlug) {
			filter.RoomID = room.ID
		}
	}
	classes = []ScheduledClass{}
	if roomSlug != "" && filter.RoomID == "" {
		return
	}

	var rows []persistence.ScheduledClass
	if rows, err = s.stores.Classes.ListClasses(ctx, filter); err != nil {
		return
	}
	var names map[string]string
	if names, err = s.displayNames(ctx); err != nil {
		return
	}

	for _, row := range rows {
		class := classFromPersistence(row)
		class.RoomSlug = roomsByID[row.RoomID].Slug
		class.TeacherName = names[row.UserID]
		classes = append(classes, class)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i], classes[j]
		if a.RoomSlug != b.RoomSlug {
			return a.RoomSlug < b.RoomSlug
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.Start < b.Start
	})
	return
}

func (s *ClassService) displayNames(ctx context.Context) (map[string]string, error) {
	users, err := s.stores.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, user := range users {
		if name := strings.TrimSpace(user.DisplayName); name != "" {
			names[user.ID] = name
			continue
		}
		names[user.ID] = user.Email
	}
	return names, nil
}

type classRequest struct {
	room     persistence.Room
	userID   string
	title    string
	weekdays []timezone.Weekday
	start    timezone.TimeOfDay
	end      timezone.TimeOfDay
}

// validateClassInput checks the shared class fields. When requireWeekdays is
// false an empty weekday list is accepted.
func (s *ClassService) validateClassInput(ctx context.Context, input ClassInput, requireWeekdays bool) (req classRequest, err error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomSlug) == "" {
		vErr.add("room_slug", "sala é obrigatória")
	}
	if strings.TrimSpace(input.UserID) == "" {
		vErr.add("user_id", "professor é obrigatório")
	}

	seen := make(map[timezone.Weekday]struct{}, len(input.Weekdays))
	for _, raw := range input.Weekdays {
		wd := timezone.Weekday(raw)
		if !wd.Valid() {
			vErr.add("weekdays", "dia da semana inválido")
			continue
		}
		if _, dup := seen[wd]; dup {
			continue
		}
		seen[wd] = struct{}{}
		req.weekdays = append(req.weekdays, wd)
	}
	if requireWeekdays && len(input.Weekdays) == 0 {
		vErr.add("weekdays", "selecione ao menos um dia da semana")
	}

	req.start, req.end = parseSlot(input.StartTime, durationOrDefault(input.DurationMinutes), vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if req.room, err = resolveRoom(ctx, s.stores.Rooms, input.RoomSlug); err != nil {
		return
	}
	if _, err = s.stores.Users.GetUser(ctx, strings.TrimSpace(input.UserID)); err != nil {
		err = mapRepoError(err, "user_id", "professor inválido")
		return
	}
	req.userID = strings.TrimSpace(input.UserID)
	req.title = strings.TrimSpace(input.Title)
	if req.title == "" {
		req.title = DefaultClassTitle
	}
	return
}

// conflictFor checks one weekday and attaches alternatives on a hit.
func (s *ClassService) conflictFor(ctx context.Context, roomID string, weekday timezone.Weekday, start, end timezone.TimeOfDay, excludeID string) (*WeekdayConflict, error) {
	kind, err := s.checker.HasConflict(ctx, roomID, weekday, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	if kind == scheduler.ConflictNone {
		return nil, nil
	}
	alternatives, err := s.suggester.Suggest(ctx, roomID, weekday, start, int(end-start), excludeID, scheduler.DefaultMaxSuggestions)
	if err != nil {
		return nil, err
	}
	return &WeekdayConflict{Kind: kind, Weekday: weekday, Start: start, Alternatives: alternatives}, nil
}

// CreateClasses creates one class per requested weekday. A conflict on any
// weekday rejects the whole batch with alternatives for each rejected day.
func (s *ClassService) CreateClasses(ctx context.Context, params CreateClassesParams) (classes []ScheduledClass, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateClasses",
		"principal_id", params.Principal.UserID,
		"room_slug", params.Input.RoomSlug,
		"weekdays", params.Input.Weekdays,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create classes", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(classes)).InfoContext(ctx, "classes created")
	}()

	if !params.Principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var req classRequest
	if req, err = s.validateClassInput(ctx, params.Input, true); err != nil {
		return
	}

	unlock := s.locks.Lock(req.room.ID)
	defer unlock()

	var conflicts []WeekdayConflict
	for _, wd := range req.weekdays {
		var hit *WeekdayConflict
		if hit, err = s.conflictFor(ctx, req.room.ID, wd, req.start, req.end, ""); err != nil {
			return
		}
		if hit != nil {
			conflicts = append(conflicts, *hit)
		}
	}
	if len(conflicts) > 0 {
		err = &ConflictError{Kind: conflicts[0].Kind, Weekdays: conflicts}
		return
	}

	now := s.now()
	rows := make([]persistence.ScheduledClass, len(req.weekdays))
	for i, wd := range req.weekdays {
		rows[i] = persistence.ScheduledClass{
			ID:          s.idGenerator(),
			RoomID:      req.room.ID,
			UserID:      req.userID,
			Title:       req.title,
			Weekday:     int(wd),
			StartMinute: int(req.start),
			EndMinute:   int(req.end),
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	if err = s.stores.Classes.CreateClasses(ctx, rows); err != nil {
		err = mapRepoError(err, "weekdays", "aula inválida")
		return
	}
	unlock()

	classes = make([]ScheduledClass, len(rows))
	for i, row := range rows {
		classes[i] = classFromPersistence(row)
		classes[i].RoomSlug = req.room.Slug
		publishEvent(ctx, s.publisher, logger, notify.Event{
			Type:       notify.ClassCreated,
			OccurredAt: now,
			RoomID:     req.room.ID,
			RoomSlug:   req.room.Slug,
			ResourceID: classEventPrefix + row.ID,
			ActorID:    params.Principal.UserID,
			Data: map[string]any{
				"weekday": timezone.Weekday(row.Weekday).Label(),
				"start":   req.start.String(),
				"end":     req.end.String(),
			},
		})
	}
	return
}

// UpdateClass moves or retitles a class. The first weekday given wins;
// without one the current weekday is kept. The class never conflicts with itself.
func (s *ClassService) UpdateClass(ctx context.Context, params UpdateClassParams) (class ScheduledClass, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}

	id := stripEventPrefix(params.ClassID, classEventPrefix)
	logger := s.loggerWith(ctx, "UpdateClass",
		"principal_id", params.Principal.UserID,
		"class_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update class", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "class updated")
	}()

	if !params.Principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var existing persistence.ScheduledClass
	if existing, err = s.stores.Classes.GetClass(ctx, id); err != nil {
		err = mapRepoError(err, "class_id", "aula inválida")
		return
	}

	var req classRequest
	if req, err = s.validateClassInput(ctx, params.Input, false); err != nil {
		return
	}
	weekday := timezone.Weekday(existing.Weekday)
	if len(req.weekdays) > 0 {
		weekday = req.weekdays[0]
	}

	unlock := s.locks.Lock(req.room.ID)
	defer unlock()

	if existing.Active {
		var hit *WeekdayConflict
		if hit, err = s.conflictFor(ctx, req.room.ID, weekday, req.start, req.end, existing.ID); err != nil {
			return
		}
		if hit != nil {
			err = &ConflictError{Kind: hit.Kind, Weekdays: []WeekdayConflict{*hit}}
			return
		}
	}

	updated := existing
	updated.RoomID = req.room.ID
	updated.UserID = req.userID
	updated.Title = req.title
	updated.Weekday = int(weekday)
	updated.StartMinute = int(req.start)
	updated.EndMinute = int(req.end)
	updated.UpdatedAt = s.now()
	if err = s.stores.Classes.UpdateClass(ctx, updated); err != nil {
		err = mapRepoError(err, "class_id", "aula inválida")
		return
	}
	unlock()

	class = classFromPersistence(updated)
	class.RoomSlug = req.room.Slug
	publishEvent(ctx, s.publisher, logger, notify.Event{
		Type:       notify.ClassUpdated,
		OccurredAt: updated.UpdatedAt,
		RoomID:     req.room.ID,
		RoomSlug:   req.room.Slug,
		ResourceID: classEventPrefix + updated.ID,
		ActorID:    params.Principal.UserID,
		Data: map[string]any{
			"weekday": weekday.Label(),
			"start":   req.start.String(),
			"end":     req.end.String(),
		},
	})
	return
}

// ToggleClass flips the active flag. Reactivating a class re-checks its slot
// so the grid never holds two overlapping active classes.
func (s *ClassService) ToggleClass(ctx context.Context, principal Principal, classID string) (class ScheduledClass, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}

	id := stripEventPrefix(classID, classEventPrefix)
	logger := s.loggerWith(ctx, "ToggleClass", "principal_id", principal.UserID, "class_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle class", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("active", class.Active).InfoContext(ctx, "class toggled")
	}()

	if !principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var existing persistence.ScheduledClass
	if existing, err = s.stores.Classes.GetClass(ctx, id); err != nil {
		err = mapRepoError(err, "class_id", "aula inválida")
		return
	}

	unlock := s.locks.Lock(existing.RoomID)
	defer unlock()

	active := !existing.Active
	if active {
		weekday := timezone.Weekday(existing.Weekday)
		start, end := timezone.TimeOfDay(existing.StartMinute), timezone.TimeOfDay(existing.EndMinute)
		var hit *WeekdayConflict
		if hit, err = s.conflictFor(ctx, existing.RoomID, weekday, start, end, existing.ID); err != nil {
			return
		}
		if hit != nil {
			err = &ConflictError{Kind: hit.Kind, Weekdays: []WeekdayConflict{*hit}}
			return
		}
	}

	now := s.now()
	if err = s.stores.Classes.SetClassActive(ctx, existing.ID, active, now); err != nil {
		err = mapRepoError(err, "class_id", "aula inválida")
		return
	}
	unlock()
	existing.Active = active
	existing.UpdatedAt = now
	class = classFromPersistence(existing)

	publishEvent(ctx, s.publisher, logger, notify.Event{
		Type:       notify.ClassToggled,
		OccurredAt: now,
		RoomID:     existing.RoomID,
		ResourceID: classEventPrefix + existing.ID,
		ActorID:    principal.UserID,
		Data:       map[string]any{"active": active},
	})
	return
}

// DeleteClass removes a class permanently.
func (s *ClassService) DeleteClass(ctx context.Context, principal Principal, classID string) (err error) {
	if s == nil {
		return fmt.Errorf("ClassService is nil")
	}

	id := stripEventPrefix(classID, classEventPrefix)
	logger := s.loggerWith(ctx, "DeleteClass", "principal_id", principal.UserID, "class_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete class", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "class deleted")
	}()

	if !principal.IsStaff() {
		return ErrUnauthorized
	}

	existing, err := s.stores.Classes.GetClass(ctx, id)
	if err != nil {
		return mapRepoError(err, "class_id", "aula inválida")
	}
	if err = s.stores.Classes.DeleteClass(ctx, existing.ID); err != nil {
		return mapRepoError(err, "class_id", "aula inválida")
	}

	publishEvent(ctx, s.publisher, logger, notify.Event{
		Type:       notify.ClassDeleted,
		OccurredAt: s.now(),
		RoomID:     existing.RoomID,
		ResourceID: classEventPrefix + existing.ID,
		ActorID:    principal.UserID,
	})
	return nil
}
