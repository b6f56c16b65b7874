package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, params application.CancelReservationParams) (application.CancelReservationResult, error)
	CancelBulk(ctx context.Context, principal application.Principal, ids []string) (application.BulkCancelResult, error)
	ListEvents(ctx context.Context, params application.EventFeedParams) ([]application.CalendarEvent, error)
	ListAdminEvents(ctx context.Context, params application.EventFeedParams) ([]application.CalendarEvent, error)
	Availability(ctx context.Context, params application.AvailabilityParams) ([]string, error)
}

// BookingHandler serves calendar feeds, availability and reservation changes.
type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.listEvents(w, r, "Events", false)
}

func (h *BookingHandler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	h.listEvents(w, r, "AdminEvents", true)
}

func (h *BookingHandler) listEvents(w http.ResponseWriter, r *http.Request, operation string, admin bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildFeedParams(r.URL.Query(), principal, admin)
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "room_slug", params.RoomSlug)

	var (
		events []application.CalendarEvent
		err    error
	)
	if admin {
		events, err = h.service.ListAdminEvents(r.Context(), params)
	} else {
		events, err = h.service.ListEvents(r.Context(), params)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "event feed failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(events)).InfoContext(r.Context(), "events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTOs(events))
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	duration := 0
	if raw := strings.TrimSpace(query.Get("duration_min")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.log(r.Context(), "Availability", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid duration parameter", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("Duração inválida."))
			return
		}
		duration = parsed
	}

	params := application.AvailabilityParams{
		Principal:       principal,
		Date:            strings.TrimSpace(query.Get("date")),
		RoomSlug:        strings.TrimSpace(query.Get("room_slug")),
		DurationMinutes: duration,
	}
	logger := h.log(r.Context(), "Availability", "principal_id", principal.UserID, "room_slug", params.RoomSlug, "date", params.Date)

	slots, err := h.service.Availability(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}

	logger.With("result_count", len(slots)).DebugContext(r.Context(), "availability computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Available: slots})
}

func (h *BookingHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "CreateReservation", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateReservation", "principal_id", principal.UserID, "room_slug", req.RoomSlug)

	reservation, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{
		OK:          true,
		Message:     "Reserva criada com sucesso!",
		Reservation: toReservationDTO(reservation),
	})
}

func (h *BookingHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID := pathRef(r, "id")
	if reservationID == "" {
		h.log(r.Context(), "CancelReservation", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	// An empty body cancels the single date given in the query, if any.
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), "CancelReservation", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.Date == "" {
		req.Date = strings.TrimSpace(r.URL.Query().Get("date"))
	}

	logger := h.log(r.Context(), "CancelReservation", "principal_id", principal.UserID, "reservation_id", reservationID, "mode", req.Mode)

	result, err := h.service.CancelReservation(r.Context(), application.CancelReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Mode:          application.CancelMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		Date:          strings.TrimSpace(req.Date),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled", "exception_date", result.ExceptionDate)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cancelResponse{
		OK:               true,
		Reservation:      toReservationDTO(result.Reservation),
		ExceptionDate:    result.ExceptionDate,
		ExceptionCreated: result.ExceptionCreated,
	})
}

func (h *BookingHandler) CancelBulk(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bulkCancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "CancelBulk", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode bulk cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CancelBulk", "principal_id", principal.UserID, "requested", len(req.IDs))

	result, err := h.service.CancelBulk(r.Context(), principal, req.IDs)
	if err != nil {
		logger.ErrorContext(r.Context(), "bulk cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "bulk cancellation applied", "reservations", result.Reservations, "classes", result.Classes)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bulkCancelResponse{
		OK:           true,
		Reservations: result.Reservations,
		Classes:      result.Classes,
	})
}

func buildFeedParams(values url.Values, principal application.Principal, admin bool) application.EventFeedParams {
	params := application.EventFeedParams{
		Principal: principal,
		Start:     strings.TrimSpace(values.Get("start")),
		End:       strings.TrimSpace(values.Get("end")),
		RoomSlug:  strings.TrimSpace(values.Get("room")),
	}
	if admin {
		params.UserID = strings.TrimSpace(values.Get("user"))
	}
	return params
}

type reservationRequest struct {
	RoomSlug        string `json:"room_slug"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_min"`
	RecurrenceRule  string `json:"recurrence_rule"`
	UserID          string `json:"user_id"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{
		RoomSlug:        strings.TrimSpace(r.RoomSlug),
		Date:            strings.TrimSpace(r.Date),
		StartTime:       strings.TrimSpace(r.StartTime),
		DurationMinutes: r.DurationMinutes,
		RecurrenceRule:  strings.TrimSpace(r.RecurrenceRule),
		UserID:          strings.TrimSpace(r.UserID),
	}
}

type cancelRequest struct {
	Mode string `json:"mode"`
	Date string `json:"date"`
}

type bulkCancelRequest struct {
	IDs []string `json:"ids"`
}

type availabilityResponse struct {
	Available []string `json:"available"`
}

type reservationResponse struct {
	OK          bool           `json:"ok"`
	Message     string         `json:"message,omitempty"`
	Reservation reservationDTO `json:"reservation"`
}

type cancelResponse struct {
	OK               bool           `json:"ok"`
	Reservation      reservationDTO `json:"reservation"`
	ExceptionDate    string         `json:"exception_date,omitempty"`
	ExceptionCreated bool           `json:"exception_created"`
}

type bulkCancelResponse struct {
	OK           bool `json:"ok"`
	Reservations int  `json:"reservations"`
	Classes      int  `json:"classes"`
}

type reservationDTO struct {
	ID             string  `json:"id"`
	EventID        string  `json:"event_id"`
	RoomID         string  `json:"room_id"`
	UserID         string  `json:"user_id"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	RecurrenceRule *string `json:"recurrence_rule,omitempty"`
	Cancelled      bool    `json:"cancelled"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:             reservation.ID,
		EventID:        "r-" + reservation.ID,
		RoomID:         reservation.RoomID,
		UserID:         reservation.UserID,
		Start:          reservation.Start.Format(time.RFC3339),
		End:            reservation.End.Format(time.RFC3339),
		RecurrenceRule: reservation.RecurrenceRule,
		Cancelled:      reservation.Cancelled,
	}
}

// eventDTO follows the calendar widget's event object, so extras travel in extendedProps.
type eventDTO struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Start         string        `json:"start"`
	End           string        `json:"end"`
	RoomSlug      string        `json:"room_slug"`
	ExtendedProps eventPropsDTO `json:"extendedProps"`
}

type eventPropsDTO struct {
	Type        string `json:"type"`
	TeacherName string `json:"teacher_name"`
	RoomName    string `json:"room_name"`
	OwnerID     string `json:"owner_id,omitempty"`
	CanCancel   bool   `json:"can_cancel"`
	Recurring   bool   `json:"recurring,omitempty"`
}

func toEventDTOs(events []application.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, eventDTO{
			ID:       event.ID,
			Title:    event.Title,
			Start:    event.Start.Format(time.RFC3339),
			End:      event.End.Format(time.RFC3339),
			RoomSlug: event.RoomSlug,
			ExtendedProps: eventPropsDTO{
				Type:        event.Type,
				TeacherName: event.TeacherName,
				RoomName:    event.RoomName,
				OwnerID:     event.OwnerID,
				CanCancel:   event.CanCancel,
				Recurring:   event.Recurring,
			},
		})
	}
	return out
}
