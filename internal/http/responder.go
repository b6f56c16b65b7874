package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	errBadRequestBody      = errors.New("Formato de requisição inválido.")
	errInvalidClassID      = errors.New("Identificador de aula inválido.")
	errInvalidReservation  = errors.New("Identificador de reserva inválido.")
	errInvalidRoomID       = errors.New("Identificador de sala inválido.")
	errMissingSessionToken = errors.New("Informe o token de autenticação.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   localizedStatusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "Já existe um registro com esses dados.",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "E-mail ou senha incorretos.",
		})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_ACCOUNT_DISABLED",
			Message:   "Esta conta está desativada.",
		})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "Sessão expirada. Entre novamente.",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: localizedStatusMessage(http.StatusUnprocessableEntity),
				Errors:  vErr.FieldErrors,
			})
			return
		}

		var cErr *application.ConflictError
		if errors.As(err, &cErr) {
			r.writeJSON(ctx, w, http.StatusConflict, toConflictResponse(cErr))
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return handlerLogger(ctx, r.logger, "", "")
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Requisição inválida."
	case http.StatusUnauthorized:
		return "Autenticação necessária."
	case http.StatusForbidden:
		return "Você não tem permissão para executar esta operação."
	case http.StatusNotFound:
		return "O recurso solicitado não foi encontrado."
	case http.StatusConflict:
		return "A operação conflita com o estado atual do recurso."
	case http.StatusUnprocessableEntity:
		return "Há erros nos dados informados."
	default:
		return "Ocorreu um erro interno no servidor."
	}
}

func conflictMessage(kind scheduler.ConflictKind) string {
	switch kind {
	case scheduler.ConflictFixedClass:
		return "Conflito com uma aula fixa existente."
	case scheduler.ConflictReservation:
		return "Conflito com outra reserva."
	default:
		return localizedStatusMessage(http.StatusConflict)
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	Kind         string           `json:"kind"`
	Weekday      int              `json:"weekday"`
	WeekdayLabel string           `json:"weekday_label"`
	Start        string           `json:"start"`
	Alternatives []alternativeDTO `json:"alternatives"`
}

type alternativeDTO struct {
	Weekday      int    `json:"weekday"`
	WeekdayLabel string `json:"weekday_label"`
	Start        string `json:"start"`
	Label        string `json:"label"`
}

func toConflictResponse(cErr *application.ConflictError) errorResponse {
	resp := errorResponse{
		ErrorCode: "CONFLICT_" + strings.ToUpper(string(cErr.Kind)),
		Message:   conflictMessage(cErr.Kind),
	}
	for _, wd := range cErr.Weekdays {
		alternatives := make([]alternativeDTO, 0, len(wd.Alternatives))
		for _, slot := range wd.Alternatives {
			alternatives = append(alternatives, alternativeDTO{
				Weekday:      int(slot.Weekday),
				WeekdayLabel: slot.Weekday.Label(),
				Start:        slot.Start.String(),
				Label:        slot.Label(),
			})
		}
		resp.Conflicts = append(resp.Conflicts, conflictDTO{
			Kind:         string(wd.Kind),
			Weekday:      int(wd.Weekday),
			WeekdayLabel: wd.Weekday.Label(),
			Start:        wd.Start.String(),
			Alternatives: alternatives,
		})
	}
	return resp
}
