package persistence

import (
	"context"
	"time"
)

// UserRepository stores accounts together with their profiles.
type UserRepository interface {
	// CreateUserWithProfile inserts both rows in one transaction.
	CreateUserWithProfile(ctx context.Context, user User, profile Profile) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
	// UpdateProfile rewrites the phone of an existing profile.
	UpdateProfile(ctx context.Context, profile Profile) error
	ListUsers(ctx context.Context) ([]User, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// ReservationFilter narrows reservation listings. Empty fields do not filter.
type ReservationFilter struct {
	RoomID           string
	UserID           string
	IncludeCancelled bool
}

// ReservationRepository stores reservations and their per-date exceptions.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	SetReservationCancelled(ctx context.Context, id string, updatedAt time.Time) error
	// AddException is idempotent per (reservation, date); created is false when
	// the date was already excepted.
	AddException(ctx context.Context, exception ReservationException) (created bool, err error)
	ListExceptions(ctx context.Context, reservationIDs []string) (map[string][]string, error)
}

// ClassFilter narrows class listings. Empty fields do not filter.
type ClassFilter struct {
	RoomID     string
	UserID     string
	Weekday    *int
	ActiveOnly bool
	ExcludeID  string
}

// ClassRepository stores the fixed weekly class grid.
type ClassRepository interface {
	// CreateClasses inserts every class or none.
	CreateClasses(ctx context.Context, classes []ScheduledClass) error
	UpdateClass(ctx context.Context, class ScheduledClass) error
	GetClass(ctx context.Context, id string) (ScheduledClass, error)
	ListClasses(ctx context.Context, filter ClassFilter) ([]ScheduledClass, error)
	SetClassActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	DeleteClass(ctx context.Context, id string) error
}

// BulkCanceller cancels reservations and deactivates classes in one transaction.
// It returns only the IDs whose state actually changed.
type BulkCanceller interface {
	CancelBulk(ctx context.Context, reservationIDs, classIDs []string, at time.Time) (reservations []string, classes []string, err error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
