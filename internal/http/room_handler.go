package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	GetRoom(ctx context.Context, principal application.Principal, ref string) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

// RoomHandler serves the room catalog. Rooms are addressed by id or slug.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.fail(w, r, "List", err, "principal_id", principal.UserID)
		return
	}

	h.log(r.Context(), "List", "principal_id", principal.UserID, "result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	ref := pathRef(r, "ref")
	room, err := h.service.GetRoom(r.Context(), principal, ref)
	if err != nil {
		h.fail(w, r, "Get", err, "principal_id", principal.UserID, "room_ref", ref)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "malformed room payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		h.fail(w, r, "Create", err, "principal_id", principal.UserID, "slug", req.Slug)
		return
	}

	h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", room.ID, "slug", room.Slug).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ref := pathRef(r, "ref")
	if ref == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_ref", ref, "error_kind", "bad_request").WarnContext(r.Context(), "malformed room payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    ref,
		Input:     req.toInput(),
	})
	if err != nil {
		h.fail(w, r, "Update", err, "principal_id", principal.UserID, "room_ref", ref)
		return
	}

	h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", room.ID).InfoContext(r.Context(), "room renamed", "name", room.Name)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error, attrs ...any) {
	h.log(r.Context(), operation, attrs...).ErrorContext(r.Context(), "room request failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

type roomRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{Slug: strings.TrimSpace(r.Slug), Name: strings.TrimSpace(r.Name)}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

// roomDTO carries the slug used by the feed and availability query strings.
type roomDTO struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:        room.ID,
		Slug:      room.Slug,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: room.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
