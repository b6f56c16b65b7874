package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/timezone"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Publisher   notify.Publisher
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.Clock = clock }
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.IDGenerator = generator }
}

// WithPublisher routes change events to publisher.
func WithPublisher(publisher notify.Publisher) ServiceFactoryOption {
	return func(factory *ServiceFactory) { factory.Publisher = publisher }
}

// Services bundles every application service over one store.
type Services struct {
	Users        *application.UserService
	Rooms        *application.RoomService
	Reservations *application.ReservationService
	Classes      *application.ClassService
	Auth         *application.AuthService
}

// Build wires all services over h. The reservation and class services share
// one lock table, as they do in the server.
func (f *ServiceFactory) Build(h *SQLiteHarness) Services {
	zone, err := timezone.Load(timezone.DefaultName)
	if err != nil {
		zone = timezone.New(time.UTC)
	}
	engine := recurrence.NewEngineWithLogger(zone, f.Logger)
	locks := application.NewRoomLocks()
	stores := application.Stores{
		Users:        h.Users,
		Rooms:        h.Rooms,
		Reservations: h.Reservations,
		Classes:      h.Classes,
		Bulk:         h.Reservations,
	}
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	return Services{
		Users:        application.NewUserServiceWithLogger(h.Users, fastHash, ids, now, f.Logger),
		Rooms:        application.NewRoomServiceWithLogger(h.Rooms, ids, now, f.Logger),
		Reservations: application.NewReservationServiceWithLogger(stores, engine, locks, f.Publisher, ids, now, f.Logger),
		Classes:      application.NewClassServiceWithLogger(stores, engine, locks, f.Publisher, ids, now, f.Logger),
		Auth:         application.NewAuthServiceWithLogger(h.Users, h.Sessions, nil, ids, now, time.Hour, f.Logger),
	}
}

// fastHash keeps argon2id but with parameters cheap enough for tests.
func fastHash(password string) (string, error) {
	return application.CreatePasswordHash(password, application.Argon2idParams{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
}

// Staff returns an admin principal for userID.
func Staff(userID string) application.Principal {
	return application.Principal{UserID: userID, Role: application.RoleAdmin}
}

// Teacher returns a professor principal for userID.
func Teacher(userID string) application.Principal {
	return application.Principal{UserID: userID, Role: application.RoleTeacher}
}
