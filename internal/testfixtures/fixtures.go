package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

var (
	userCounter        uint64
	roomCounter        uint64
	classCounter       uint64
	reservationCounter uint64
)

// 2024-01-02 is a Tuesday; 12:04 in America/Sao_Paulo.
var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account plus profile.
type UserFixture struct {
	persistence.User
	Role  string
	Phone string
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic teacher account with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		User: persistence.User{
			ID:           fmt.Sprintf("user-%03d", idx),
			Email:        fmt.Sprintf("user%03d@example.com", idx),
			DisplayName:  fmt.Sprintf("Professor %03d", idx),
			PasswordHash: "hash",
			IsActive:     true,
			CreatedAt:    created,
			UpdatedAt:    created,
		},
		Role: "professor",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserRole sets the profile role ("admin", "secretario", "professor").
func WithUserRole(role string) UserOption {
	return func(f *UserFixture) { f.Role = role }
}

// WithUserSuperuser marks the account as superuser.
func WithUserSuperuser() UserOption {
	return func(f *UserFixture) { f.IsSuperuser = true }
}

// WithUserInactive disables the account.
func WithUserInactive() UserOption {
	return func(f *UserFixture) { f.IsActive = false }
}

// Profile returns the profile row matching the fixture.
func (f UserFixture) Profile() persistence.Profile {
	return persistence.Profile{
		UserID:    f.ID,
		Role:      f.Role,
		Phone:     f.Phone,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures the generated room fixture.
type RoomOption func(*persistence.Room)

// NewRoom returns a deterministic room with optional overrides.
func NewRoom(opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Slug:      fmt.Sprintf("sala-%03d", idx),
		Name:      fmt.Sprintf("Sala %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithRoomSlug overrides the generated slug.
func WithRoomSlug(slug string) RoomOption {
	return func(r *persistence.Room) { r.Slug = slug }
}

// WithRoomName overrides the generated name.
func WithRoomName(name string) RoomOption {
	return func(r *persistence.Room) { r.Name = name }
}

// ----------------------------- Class fixtures ----------------------------

// ClassOption configures the generated class fixture.
type ClassOption func(*persistence.ScheduledClass)

// NewClass returns an active Monday 08:00-09:00 class for roomID and userID.
func NewClass(roomID, userID string, opts ...ClassOption) persistence.ScheduledClass {
	idx := atomic.AddUint64(&classCounter, 1)
	class := persistence.ScheduledClass{
		ID:          fmt.Sprintf("class-%03d", idx),
		RoomID:      roomID,
		UserID:      userID,
		Title:       fmt.Sprintf("Aula %03d", idx),
		Weekday:     0,
		StartMinute: 8 * 60,
		EndMinute:   9 * 60,
		Active:      true,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&class)
	}
	return class
}

// WithClassID overrides the generated class ID.
func WithClassID(id string) ClassOption {
	return func(c *persistence.ScheduledClass) { c.ID = id }
}

// WithClassSlot sets the weekday (0 = Monday) and the HH:MM bounds as minutes.
func WithClassSlot(weekday, startMinute, endMinute int) ClassOption {
	return func(c *persistence.ScheduledClass) {
		c.Weekday = weekday
		c.StartMinute = startMinute
		c.EndMinute = endMinute
	}
}

// WithClassTitle overrides the generated title.
func WithClassTitle(title string) ClassOption {
	return func(c *persistence.ScheduledClass) { c.Title = title }
}

// WithClassInactive creates the class switched off.
func WithClassInactive() ClassOption {
	return func(c *persistence.ScheduledClass) { c.Active = false }
}

// -------------------------- Reservation fixtures -------------------------

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a one hour reservation starting at start.
func NewReservation(roomID, userID string, start time.Time, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	reservation := persistence.Reservation{
		ID:        fmt.Sprintf("reservation-%03d", idx),
		RoomID:    roomID,
		UserID:    userID,
		Start:     start,
		End:       start.Add(time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) { r.ID = id }
}

// WithReservationDuration changes the length of the reservation.
func WithReservationDuration(d time.Duration) ReservationOption {
	return func(r *persistence.Reservation) { r.End = r.Start.Add(d) }
}

// WithReservationRule makes the reservation recurring.
func WithReservationRule(rule string) ReservationOption {
	return func(r *persistence.Reservation) { r.RecurrenceRule = &rule }
}
