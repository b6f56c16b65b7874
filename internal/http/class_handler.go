package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

type classService interface {
	ListClasses(ctx context.Context, principal application.Principal, roomSlug string) ([]application.ScheduledClass, error)
	CreateClasses(ctx context.Context, params application.CreateClassesParams) ([]application.ScheduledClass, error)
	UpdateClass(ctx context.Context, params application.UpdateClassParams) (application.ScheduledClass, error)
	ToggleClass(ctx context.Context, principal application.Principal, classID string) (application.ScheduledClass, error)
	DeleteClass(ctx context.Context, principal application.Principal, classID string) error
}

// ClassHandler manages the fixed weekly class grid.
type ClassHandler struct {
	service   classService
	responder responder
	logger    *slog.Logger
}

func NewClassHandler(service classService, logger *slog.Logger) *ClassHandler {
	base := defaultLogger(logger)
	return &ClassHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ClassHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ClassHandler", operation, attrs...)
}

func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	roomSlug := strings.TrimSpace(r.URL.Query().Get("room"))
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "room_slug", roomSlug)

	classes, err := h.service.ListClasses(r.Context(), principal, roomSlug)
	if err != nil {
		logger.ErrorContext(r.Context(), "class list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(classes)).InfoContext(r.Context(), "classes listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listClassesResponse{Classes: toClassDTOs(classes)})
}

func (h *ClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req classRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode class request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_slug", req.RoomSlug)

	classes, err := h.service.CreateClasses(r.Context(), application.CreateClassesParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "class creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("created", len(classes)).InfoContext(r.Context(), "classes created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, classesResponse{
		OK:      true,
		Message: "Aula(s) criada(s) com sucesso!",
		Classes: toClassDTOs(classes),
	})
}

func (h *ClassHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := h.classID(w, r, "Update")
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req classRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "class_id", classID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode class update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "class_id", classID)

	class, err := h.service.UpdateClass(r.Context(), application.UpdateClassParams{
		Principal: principal,
		ClassID:   classID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "class update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "class updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{
		OK:      true,
		Message: "Aula atualizada com sucesso!",
		Class:   toClassDTO(class),
	})
}

func (h *ClassHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := h.classID(w, r, "Toggle")
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Toggle", "principal_id", principal.UserID, "class_id", classID)

	class, err := h.service.ToggleClass(r.Context(), principal, classID)
	if err != nil {
		logger.ErrorContext(r.Context(), "class toggle failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "class toggled", "active", class.Active)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{OK: true, Class: toClassDTO(class)})
}

func (h *ClassHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := h.classID(w, r, "Delete")
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "class_id", classID)

	if err := h.service.DeleteClass(r.Context(), principal, classID); err != nil {
		logger.ErrorContext(r.Context(), "class delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "class deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ClassHandler) classID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	id := pathRef(r, "id")
	if id == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing class id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return "", false
	}
	return id, true
}

type classRequest struct {
	RoomSlug        string `json:"room_slug"`
	UserID          string `json:"user_id"`
	Title           string `json:"title"`
	Weekdays        []int  `json:"weekdays"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_min"`
}

func (r classRequest) toInput() application.ClassInput {
	return application.ClassInput{
		RoomSlug:        strings.TrimSpace(r.RoomSlug),
		UserID:          strings.TrimSpace(r.UserID),
		Title:           strings.TrimSpace(r.Title),
		Weekdays:        append([]int(nil), r.Weekdays...),
		StartTime:       strings.TrimSpace(r.StartTime),
		DurationMinutes: r.DurationMinutes,
	}
}

type listClassesResponse struct {
	Classes []classDTO `json:"classes"`
}

type classesResponse struct {
	OK      bool       `json:"ok"`
	Message string     `json:"message,omitempty"`
	Classes []classDTO `json:"classes"`
}

type classResponse struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message,omitempty"`
	Class   classDTO `json:"class"`
}

type classDTO struct {
	ID           string `json:"id"`
	EventID      string `json:"event_id"`
	RoomID       string `json:"room_id"`
	RoomSlug     string `json:"room_slug,omitempty"`
	UserID       string `json:"user_id"`
	TeacherName  string `json:"teacher_name,omitempty"`
	Title        string `json:"title"`
	Weekday      int    `json:"weekday"`
	WeekdayLabel string `json:"weekday_label"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Active       bool   `json:"active"`
}

func toClassDTO(class application.ScheduledClass) classDTO {
	return classDTO{
		ID:           class.ID,
		EventID:      "sc-" + class.ID,
		RoomID:       class.RoomID,
		RoomSlug:     class.RoomSlug,
		UserID:       class.UserID,
		TeacherName:  class.TeacherName,
		Title:        class.Title,
		Weekday:      int(class.Weekday),
		WeekdayLabel: class.Weekday.Label(),
		StartTime:    class.Start.String(),
		EndTime:      class.End.String(),
		Active:       class.Active,
	}
}

func toClassDTOs(classes []application.ScheduledClass) []classDTO {
	out := make([]classDTO, 0, len(classes))
	for _, class := range classes {
		out = append(out, toClassDTO(class))
	}
	return out
}
