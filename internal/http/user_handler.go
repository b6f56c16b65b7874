package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	CurrentUser(ctx context.Context, principal application.Principal) (application.User, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.User, error)
}

// UserHandler serves account administration for staff and the self-service
// profile of the signed-in user.
type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Create registers an account; the profile role defaults to professor.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(r.Context(), "malformed user payload", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "user creation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user created", "user_id", user.ID, "role", string(user.Role))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "user listing rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

// Me returns the signed-in user with profile data.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.service.CurrentUser(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Me", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "current user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// UpdateMe changes the phone stored on the caller's profile.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "UpdateMe", "principal_id", principal.UserID)

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(r.Context(), "malformed profile payload", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), application.UpdateProfileParams{Principal: principal, Phone: req.Phone})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileResponse{
		OK:   true,
		User: toUserDTO(user),
	})
}

type userRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		Email:       strings.TrimSpace(r.Email),
		DisplayName: strings.TrimSpace(r.DisplayName),
		Password:    r.Password,
		Role:        application.Role(strings.ToLower(strings.TrimSpace(r.Role))),
		Phone:       strings.TrimSpace(r.Phone),
		IsSuperuser: r.IsSuperuser,
	}
}

type profileRequest struct {
	Phone string `json:"phone"`
}

type profileResponse struct {
	OK   bool    `json:"ok"`
	User userDTO `json:"user"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	RoleLabel   string `json:"role_label"`
	Phone       string `json:"phone,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
	IsStaff     bool   `json:"is_staff"`
	CreatedAt   string `json:"created_at,omitempty"`
}

var roleLabels = map[application.Role]string{
	application.RoleAdmin:     "Administrador",
	application.RoleSecretary: "Secretário",
	application.RoleTeacher:   "Professor",
}

func toUserDTO(user application.User) userDTO {
	access := application.Principal{UserID: user.ID, Role: user.Role, IsSuperuser: user.IsSuperuser}
	dto := userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		RoleLabel:   roleLabels[user.Role],
		Phone:       user.Phone,
		IsSuperuser: user.IsSuperuser,
		IsStaff:     access.IsStaff(),
	}
	if !user.CreatedAt.IsZero() {
		dto.CreatedAt = user.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}
