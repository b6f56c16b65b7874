package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlstore"
)

// SQLiteHarness is a migrated store on a temporary SQLite file.
type SQLiteHarness struct {
	*sqlstore.Store
}

// NewSQLiteHarness opens and migrates a store under tb.TempDir. It is closed
// through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "roombooking.db")
	store, err := sqlstore.OpenStore(context.Background(), sqlstore.DriverSQLite, sqlstore.SQLiteDSN(path), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return &SQLiteHarness{Store: store}
}

// InsertUser stores the account together with its profile.
func (h *SQLiteHarness) InsertUser(tb testing.TB, user UserFixture) UserFixture {
	tb.Helper()
	if err := h.Users.CreateUserWithProfile(context.Background(), user.User, user.Profile()); err != nil {
		tb.Fatalf("failed to insert user %s: %v", user.ID, err)
	}
	return user
}

// InsertRoom stores room.
func (h *SQLiteHarness) InsertRoom(tb testing.TB, room persistence.Room) persistence.Room {
	tb.Helper()
	if err := h.Rooms.CreateRoom(context.Background(), room); err != nil {
		tb.Fatalf("failed to insert room %s: %v", room.ID, err)
	}
	return room
}

// InsertClasses stores classes in one batch.
func (h *SQLiteHarness) InsertClasses(tb testing.TB, classes ...persistence.ScheduledClass) {
	tb.Helper()
	if err := h.Classes.CreateClasses(context.Background(), classes); err != nil {
		tb.Fatalf("failed to insert classes: %v", err)
	}
}

// InsertReservation stores reservation.
func (h *SQLiteHarness) InsertReservation(tb testing.TB, reservation persistence.Reservation) persistence.Reservation {
	tb.Helper()
	if err := h.Reservations.CreateReservation(context.Background(), reservation); err != nil {
		tb.Fatalf("failed to insert reservation %s: %v", reservation.ID, err)
	}
	return reservation
}
