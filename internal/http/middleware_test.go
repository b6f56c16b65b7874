package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/room-booking/internal/application"
)

type fakeSessionValidator struct {
	principals map[string]application.Principal
	err        error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	if f.err != nil {
		return application.Principal{}, f.err
	}
	principal, ok := f.principals[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return principal, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookieToken    *http.Cookie
			headerToken    string
			validatorErr   error
			expectedStatus int
			expectedCode   string
		}{
			{
				name:           "missing credentials",
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "malformed authorization header",
				headerToken:    "Token abc",
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "unknown bearer token",
				headerToken:    "Bearer unknown",
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_INVALID",
			},
			{
				name:           "expired session",
				cookieToken:    &http.Cookie{Name: sessionCookieName, Value: "old"},
				validatorErr:   fmt.Errorf("validate: %w", application.ErrSessionExpired),
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_EXPIRED",
			},
			{
				name:           "disabled account",
				cookieToken:    &http.Cookie{Name: sessionCookieName, Value: "valid"},
				validatorErr:   application.ErrAccountDisabled,
				expectedStatus: http.StatusForbidden,
				expectedCode:   "AUTH_ACCOUNT_DISABLED",
			},
			{
				name:           "storage failure",
				headerToken:    "Bearer valid",
				validatorErr:   errors.New("database is locked"),
				expectedStatus: http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}
				recorder := httptest.NewRecorder()

				validator := fakeSessionValidator{err: tc.validatorErr}
				handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.expectedStatus {
					t.Fatalf("expected status %d, got %d", tc.expectedStatus, recorder.Code)
				}
				body := decodeError(t, recorder)
				if body.Message == "" {
					t.Fatalf("expected a localized message")
				}
				if tc.expectedCode != "" && body.ErrorCode != tc.expectedCode {
					t.Fatalf("expected error code %q, got %q", tc.expectedCode, body.ErrorCode)
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "user-123", Role: application.RoleSecretary}
		validator := fakeSessionValidator{principals: map[string]application.Principal{"valid-token": principal}}

		for _, viaCookie := range []bool{true, false} {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if viaCookie {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "valid-token"})
			} else {
				req.Header.Set("Authorization", "Bearer valid-token")
			}
			recorder := httptest.NewRecorder()

			var captured application.Principal
			handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				if !ok {
					t.Fatal("expected principal in request context")
				}
				captured = p
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(recorder, req)

			if recorder.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", recorder.Code)
			}
			if captured != principal {
				t.Fatalf("expected %#v, got %#v", principal, captured)
			}
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("generates a request id when none is given", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		if recorder.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected a generated request id")
		}
		if recorder.Code != http.StatusTeapot {
			t.Fatalf("expected the wrapped status to pass through, got %d", recorder.Code)
		}
	})

	t.Run("keeps the caller supplied request id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		recorder := httptest.NewRecorder()
		RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(recorder, req)

		if got := recorder.Header().Get("X-Request-ID"); got != "req-42" {
			t.Fatalf("expected req-42, got %q", got)
		}
	})
}
