package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Bookings *BookingHandler
	Classes  *ClassHandler
	// Realtime serves the websocket stream; it sits behind the session check.
	Realtime http.Handler
	Sessions SessionValidator
	Logger   *slog.Logger
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeError(r.Context(), w, http.StatusNotFound, nil)
	})

	requireSession := func(next http.Handler) http.Handler { return next }
	if cfg.Sessions != nil {
		requireSession = RequireSession(cfg.Sessions, cfg.Logger)
	}

	if cfg.Auth != nil {
		router.HandleFunc("/api/sessions", cfg.Auth.CreateSession).Methods(http.MethodPost)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(requireSession)

	if cfg.Auth != nil {
		api.HandleFunc("/sessions/current", cfg.Auth.DeleteCurrentSession).Methods(http.MethodDelete)
		api.HandleFunc("/sessions/current/refresh", cfg.Auth.RefreshCurrentSession).Methods(http.MethodPost)
	}

	if cfg.Rooms != nil {
		api.HandleFunc("/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		api.HandleFunc("/rooms", cfg.Rooms.Create).Methods(http.MethodPost)
		api.HandleFunc("/rooms/{ref}", cfg.Rooms.Get).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{ref}", cfg.Rooms.Update).Methods(http.MethodPut)
	}

	if cfg.Bookings != nil {
		api.HandleFunc("/events", cfg.Bookings.Events).Methods(http.MethodGet)
		api.HandleFunc("/availability", cfg.Bookings.Availability).Methods(http.MethodGet)
		api.HandleFunc("/reservations", cfg.Bookings.CreateReservation).Methods(http.MethodPost)
		api.HandleFunc("/reservations/{id}/cancel", cfg.Bookings.CancelReservation).Methods(http.MethodPost)
		api.HandleFunc("/admin/events", cfg.Bookings.AdminEvents).Methods(http.MethodGet)
		api.HandleFunc("/admin/cancel-bulk", cfg.Bookings.CancelBulk).Methods(http.MethodPost)
	}

	if cfg.Classes != nil {
		api.HandleFunc("/admin/classes", cfg.Classes.List).Methods(http.MethodGet)
		api.HandleFunc("/admin/classes", cfg.Classes.Create).Methods(http.MethodPost)
		api.HandleFunc("/admin/classes/{id}", cfg.Classes.Update).Methods(http.MethodPut)
		api.HandleFunc("/admin/classes/{id}", cfg.Classes.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/admin/classes/{id}/toggle", cfg.Classes.Toggle).Methods(http.MethodPost)
	}

	if cfg.Users != nil {
		api.HandleFunc("/admin/users", cfg.Users.List).Methods(http.MethodGet)
		api.HandleFunc("/admin/users", cfg.Users.Create).Methods(http.MethodPost)
		api.HandleFunc("/me", cfg.Users.Me).Methods(http.MethodGet)
		api.HandleFunc("/me", cfg.Users.UpdateMe).Methods(http.MethodPatch)
	}

	if cfg.Realtime != nil {
		router.Handle("/ws", requireSession(cfg.Realtime)).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
