package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// RoomService manages the room catalog.
type RoomService struct {
	rooms       persistence.RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for staff.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
		"slug", params.Input.Slug,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	input := normalizeRoomInput(params.Input)
	if vErr := validateRoomInput(input, true); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	record := persistence.Room{
		ID:        s.idGenerator(),
		Slug:      input.Slug,
		Name:      input.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.rooms.CreateRoom(ctx, record); err != nil {
		err = mapRepoError(err, "slug", "identificador inválido")
		return
	}

	room = roomFromPersistence(record)
	return
}

// UpdateRoom renames a room. The slug is immutable because feeds and
// bookings address rooms by it.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if !params.Principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var existing persistence.Room
	if existing, err = s.findRoom(ctx, params.RoomID); err != nil {
		return
	}

	input := normalizeRoomInput(params.Input)
	if vErr := validateRoomInput(input, false); vErr.HasErrors() {
		err = vErr
		return
	}
	if input.Slug != "" && input.Slug != existing.Slug {
		err = newValidationError("slug", "o identificador da sala não pode ser alterado")
		return
	}

	existing.Name = input.Name
	existing.UpdatedAt = s.now()
	if err = s.rooms.UpdateRoom(ctx, existing); err != nil {
		err = mapRepoError(err, "name", "nome inválido")
		return
	}

	room = roomFromPersistence(existing)
	return
}

// GetRoom looks a room up by id or slug for any signed-in user.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, ref string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetRoom", "principal_id", principal.UserID, "room_ref", ref)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "room lookup failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var record persistence.Room
	if record, err = s.findRoom(ctx, ref); err != nil {
		return
	}
	room = roomFromPersistence(record)
	return
}

// findRoom resolves ref as an id first and as a slug second.
func (s *RoomService) findRoom(ctx context.Context, ref string) (persistence.Room, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return persistence.Room{}, ErrNotFound
	}

	room, err := s.rooms.GetRoom(ctx, ref)
	if errors.Is(err, persistence.ErrNotFound) {
		room, err = s.rooms.GetRoomBySlug(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return persistence.Room{}, mapRepoError(err, "room_id", "sala inválida")
	}
	return room, nil
}

// ListRooms returns the catalog ordered by name for any signed-in user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListRooms", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []persistence.Room
	if raw, err = s.rooms.ListRooms(ctx); err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	for i, r := range raw {
		rooms[i] = roomFromPersistence(r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].Slug < rooms[j].Slug
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return
}

func normalizeRoomInput(input RoomInput) RoomInput {
	return RoomInput{
		Slug: strings.ToLower(strings.TrimSpace(input.Slug)),
		Name: strings.TrimSpace(input.Name),
	}
}

func validateRoomInput(input RoomInput, requireSlug bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Slug == "" {
		if requireSlug {
			vErr.add("slug", "identificador é obrigatório")
		}
	} else if !validSlug(input.Slug) {
		vErr.add("slug", "use apenas letras minúsculas, números e hífens")
	}
	if input.Name == "" {
		vErr.add("name", "nome é obrigatório")
	}

	return vErr
}

func validSlug(slug string) bool {
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
