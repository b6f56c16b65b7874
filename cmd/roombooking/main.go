package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/persistence/sqlstore"
	"github.com/example/room-booking/internal/realtime"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	zl, err := logging.NewZap(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewSlog(zl.Core())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		stop()
		_ = zl.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	zone, err := timezone.Load(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	store, err := sqlstore.OpenStore(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	hub := realtime.NewHub(logger)
	publisher, closePublishers := buildPublisher(cfg, hub, logger)
	defer closePublishers()

	idGenerator := uuid.NewString
	now := time.Now
	engine := recurrence.NewEngineWithLogger(zone, logger)
	locks := application.NewRoomLocks()
	stores := application.Stores{
		Users:        store.Users,
		Rooms:        store.Rooms,
		Reservations: store.Reservations,
		Classes:      store.Classes,
		Bulk:         store.Reservations,
	}

	userService := application.NewUserServiceWithLogger(store.Users, nil, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(store.Rooms, idGenerator, now, logger)
	reservationService := application.NewReservationServiceWithLogger(stores, engine, locks, publisher, idGenerator, now, logger)
	classService := application.NewClassServiceWithLogger(stores, engine, locks, publisher, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(store.Users, store.Sessions, nil, newTokenGenerator(cfg.SessionSecret), now, cfg.SessionTTL, logger)

	if cfg.BootstrapAdminEmail != "" {
		if _, err := userService.BootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, cfg.Environment == logging.EnvProduction, logger),
		Users:      httptransport.NewUserHandler(userService, logger),
		Rooms:      httptransport.NewRoomHandler(roomService, logger),
		Bookings:   httptransport.NewBookingHandler(reservationService, logger),
		Classes:    httptransport.NewClassHandler(classService, logger),
		Realtime:   realtime.Handler(hub, logger),
		Sessions:   authService,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting HTTP server", "addr", server.Addr, "timezone", zone.Location().String(), "driver", cfg.DatabaseDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildPublisher fans events out to the websocket hub and to whichever
// external integrations are configured. An unreachable broker is logged and
// skipped so the API still starts.
func buildPublisher(cfg config.Config, hub *realtime.Hub, logger *slog.Logger) (notify.Publisher, func()) {
	publishers := []notify.Publisher{hub}
	var closers []func() error

	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("amqp publisher disabled", "error", err)
		} else {
			publishers = append(publishers, amqpPublisher)
			closers = append(closers, amqpPublisher.Close)
		}
	}

	if cfg.TelegramEnabled() {
		telegramPublisher, err := notify.NewTelegramPublisher(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram publisher disabled", "error", err)
		} else {
			publishers = append(publishers, telegramPublisher)
		}
	}

	closeAll := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("failed to close publisher", "error", err)
			}
		}
	}
	return notify.NewFanout(logger, publishers...), closeAll
}

// newTokenGenerator derives session tokens from random bytes keyed with the
// deployment secret.
func newTokenGenerator(secret string) func() string {
	key := []byte(secret)
	return func() string {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("failed to read random bytes: %v", err))
		}
		mac := hmac.New(sha256.New, key)
		mac.Write(buf)
		return hex.EncodeToString(mac.Sum(nil))
	}
}
