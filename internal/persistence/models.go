package persistence

import "time"

// User represents an account able to sign in and book rooms.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile carries the role and contact data attached to every user.
type Profile struct {
	UserID    string
	Role      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room represents a bookable room identified by its slug.
type Room struct {
	ID        string
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservation is a one-off or recurring booking of a room.
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

// ReservationException cancels one date of a recurring reservation.
type ReservationException struct {
	ID            string
	ReservationID string
	Date          string
	CreatedAt     time.Time
}

// ScheduledClass is a fixed weekly occupation of a room. Weekday 0 is Monday;
// StartMinute and EndMinute count minutes since midnight.
type ScheduledClass struct {
	ID          string
	RoomID      string
	UserID      string
	Title       string
	Weekday     int
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authentication session persisted for a user.
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
