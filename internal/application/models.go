package application

import (
	"time"

	"github.com/example/room-booking/internal/timezone"
)

// Role is the profile role attached to every user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSecretary Role = "secretario"
	RoleTeacher   Role = "professor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSecretary, RoleTeacher:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
// It is resolved once per request and is the only place permissions are decided.
type Principal struct {
	UserID      string
	Role        Role
	IsSuperuser bool
}

// IsStaff reports whether the principal may run administrative operations.
func (p Principal) IsStaff() bool {
	return p.IsSuperuser || p.Role == RoleAdmin || p.Role == RoleSecretary
}

// CanManage reports whether the principal may change a resource owned by ownerID.
func (p Principal) CanManage(ownerID string) bool {
	if p.UserID == "" {
		return false
	}
	return p.UserID == ownerID || p.IsStaff()
}

// User is an account together with its profile.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Phone       string
	IsSuperuser bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        Role
	Phone       string
	IsSuperuser bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateProfileParams carries the self-service profile changes of a user.
type UpdateProfileParams struct {
	Principal Principal
	Phone     string
}

// Room is a bookable room.
type Room struct {
	ID        string
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Slug string
	Name string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to rename a room. RoomID may also
// be the room slug.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// Reservation is a one-off or recurring booking.
type Reservation struct {
	ID             string
	RoomID         string
	UserID         string
	Start          time.Time
	End            time.Time
	RecurrenceRule *string
	Cancelled      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReservationInput captures a booking request. Date is YYYY-MM-DD and
// StartTime is HH:MM in the configured zone.
type ReservationInput struct {
	RoomSlug        string
	Date            string
	StartTime       string
	DurationMinutes int
	RecurrenceRule  string
	// UserID books on behalf of another user; honoured for staff only.
	UserID string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// CancelMode selects between cancelling a whole series or a single date.
type CancelMode string

const (
	CancelAll    CancelMode = "all"
	CancelSingle CancelMode = "single"
)

// CancelReservationParams wraps the data required to cancel a reservation.
type CancelReservationParams struct {
	Principal     Principal
	ReservationID string
	Mode          CancelMode
	Date          string
}

// CancelReservationResult reports what the cancellation changed.
type CancelReservationResult struct {
	Reservation Reservation
	// ExceptionDate is set when a single occurrence of a series was cancelled.
	ExceptionDate string
	// ExceptionCreated is false when that date had already been cancelled.
	ExceptionCreated bool
}

// BulkCancelResult counts what a bulk cancellation changed.
type BulkCancelResult struct {
	Reservations int
	Classes      int
}

// ScheduledClass is an entry of the fixed weekly grid.
type ScheduledClass struct {
	ID          string
	RoomID      string
	RoomSlug    string
	UserID      string
	TeacherName string
	Title       string
	Weekday     timezone.Weekday
	Start       timezone.TimeOfDay
	End         timezone.TimeOfDay
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ClassInput captures a grid entry request. Weekdays use 0 for Monday.
type ClassInput struct {
	RoomSlug        string
	UserID          string
	Title           string
	Weekdays        []int
	StartTime       string
	DurationMinutes int
}

// CreateClassesParams wraps the data required to create a batch of classes.
type CreateClassesParams struct {
	Principal Principal
	Input     ClassInput
}

// UpdateClassParams wraps the data required to move or retitle a class.
type UpdateClassParams struct {
	Principal Principal
	ClassID   string
	Input     ClassInput
}

// Event types exposed by the calendar feeds.
const (
	EventTypeReservation    = "reservation"
	EventTypeScheduledClass = "scheduled_class"
)

// CalendarEvent is one occurrence in a calendar feed.
type CalendarEvent struct {
	ID          string
	Type        string
	Title       string
	Start       time.Time
	End         time.Time
	RoomSlug    string
	RoomName    string
	TeacherName string
	OwnerID     string
	CanCancel   bool
	Recurring   bool
}

// EventFeedParams selects the window and filters of a calendar feed.
type EventFeedParams struct {
	Principal Principal
	Start     string
	End       string
	RoomSlug  string
	// UserID filters by owner; honoured by the admin feed only.
	UserID string
}

// AvailabilityParams selects the day, room and length of wanted slots.
type AvailabilityParams struct {
	Principal       Principal
	Date            string
	RoomSlug        string
	DurationMinutes int
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
