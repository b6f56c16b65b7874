package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RefreshSession(ctx context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error)
	RevokeSession(ctx context.Context, token string) error
}

const sessionCookieName = "session_token"

// AuthHandler issues, rotates and revokes session tokens. Tokens travel in the
// session cookie and in the X-Session-Token header so API clients without a
// cookie jar can use Bearer authentication.
type AuthHandler struct {
	service       authService
	responder     responder
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler builds the handler. secureCookies marks the session cookie
// Secure and should only be false for plain HTTP development setups.
func NewAuthHandler(service authService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base, secureCookies: secureCookies}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// CreateSession exchanges e-mail and password for a session.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "CreateSession", "error_kind", "bad_request").WarnContext(r.Context(), "malformed login payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.log(r.Context(), "CreateSession", "email", email)

	result, err := h.service.Authenticate(r.Context(), application.AuthenticateParams{
		Email:       email,
		Password:    req.Password,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "login refused", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session opened", "user_id", result.User.ID)
	user := toUserDTO(result.User)
	h.writeSession(w, r, http.StatusCreated, result.Session, &user)
}

// RefreshCurrentSession rotates the caller's token and extends its expiry.
// The previous token stops working immediately.
func (h *AuthHandler) RefreshCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := extractTokenFromRequest(r)
	result, err := h.service.RefreshSession(r.Context(), application.RefreshSessionParams{
		Token:       token,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		h.log(r.Context(), "RefreshCurrentSession").WarnContext(r.Context(), "session refresh refused", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "RefreshCurrentSession", "user_id", result.Session.UserID).InfoContext(r.Context(), "session rotated")
	h.writeSession(w, r, http.StatusOK, result.Session, nil)
}

// DeleteCurrentSession logs the caller out.
func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := extractTokenFromRequest(r)
	if token == "" {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   errMissingSessionToken.Error(),
		})
		return
	}

	if err := h.service.RevokeSession(r.Context(), token); err != nil {
		h.log(r.Context(), "DeleteCurrentSession").ErrorContext(r.Context(), "logout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.setCookie(w, "", time.Unix(0, 0))
	h.log(r.Context(), "DeleteCurrentSession").InfoContext(r.Context(), "session closed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, session application.Session, user *userDTO) {
	h.setCookie(w, session.Token, session.ExpiresAt)
	w.Header().Set("X-Session-Token", session.Token)
	h.responder.writeJSON(r.Context(), w, status, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      user,
	})
}

// setCookie writes the session cookie; an empty token expires it.
func (h *AuthHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      *userDTO `json:"user,omitempty"`
}

// extractTokenFromRequest prefers a Bearer header over the session cookie.
func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token, ok := strings.CutPrefix(strings.TrimSpace(r.Header.Get("Authorization")), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
