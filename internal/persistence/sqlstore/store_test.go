package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

var referenceTime = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roombooking.db")
	store, err := OpenStore(ctx, DriverSQLite, SQLiteDSN(path), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUserAndRoom(t *testing.T, store *Store) (persistence.User, persistence.Room) {
	t.Helper()
	ctx := context.Background()
	user := persistence.User{
		ID:           "u-1",
		Email:        "Ana@Example.com",
		DisplayName:  "Ana",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    referenceTime,
	}
	if err := store.Users.CreateUserWithProfile(ctx, user, persistence.Profile{Role: "professor"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	room := persistence.Room{ID: "room-1", Slug: "sala-1", Name: "Sala 1", CreatedAt: referenceTime}
	if err := store.Rooms.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return user, room
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &ConnectionPool{driver: DriverSQLite}
	postgres := &ConnectionPool{driver: DriverPostgres}
	query := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"

	if got := sqlite.rebind(query); got != query {
		t.Fatalf("expected sqlite query untouched, got %q", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got := postgres.rebind(query); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUserRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := seedUserAndRoom(t, store)

	t.Run("looks users up by normalized email", func(t *testing.T) {
		got, err := store.Users.GetUserByEmail(ctx, "  ana@example.COM ")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if got.ID != user.ID || got.Email != "ana@example.com" {
			t.Fatalf("unexpected user: %+v", got)
		}
		if !got.IsActive || got.IsSuperuser {
			t.Fatalf("unexpected flags: %+v", got)
		}
		if !got.CreatedAt.Equal(referenceTime) {
			t.Fatalf("expected created_at %v, got %v", referenceTime, got.CreatedAt)
		}
	})

	t.Run("stores the profile alongside the user", func(t *testing.T) {
		profile, err := store.Users.GetProfile(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile.Role != "professor" {
			t.Fatalf("expected professor role, got %q", profile.Role)
		}
	})

	t.Run("updates the phone of a profile", func(t *testing.T) {
		later := referenceTime.Add(time.Hour)
		if err := store.Users.UpdateProfile(ctx, persistence.Profile{UserID: user.ID, Phone: " (11) 99999-0000 ", UpdatedAt: later}); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		profile, err := store.Users.GetProfile(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile.Phone != "(11) 99999-0000" || profile.Role != "professor" || !profile.UpdatedAt.Equal(later) {
			t.Fatalf("unexpected profile: %+v", profile)
		}

		if err := store.Users.UpdateProfile(ctx, persistence.Profile{UserID: "missing"}); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		dup := user
		dup.ID = "u-2"
		err := store.Users.CreateUserWithProfile(ctx, dup, persistence.Profile{Role: "professor"})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("rolls back the user when the profile is invalid", func(t *testing.T) {
		bad := persistence.User{ID: "u-3", Email: "bad@example.com", DisplayName: "Bad", PasswordHash: "x", IsActive: true}
		err := store.Users.CreateUserWithProfile(ctx, bad, persistence.Profile{Role: "janitor"})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
		if _, err := store.Users.GetUser(ctx, "u-3"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected user to be rolled back, got %v", err)
		}
	})
}

func TestRoomRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, room := seedUserAndRoom(t, store)

	t.Run("finds rooms by slug", func(t *testing.T) {
		got, err := store.Rooms.GetRoomBySlug(ctx, "sala-1")
		if err != nil {
			t.Fatalf("GetRoomBySlug failed: %v", err)
		}
		if got.ID != room.ID {
			t.Fatalf("expected %s, got %s", room.ID, got.ID)
		}
	})

	t.Run("rejects duplicate slug", func(t *testing.T) {
		err := store.Rooms.CreateRoom(ctx, persistence.Room{ID: "room-2", Slug: "sala-1", Name: "Outra"})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update of unknown room is not found", func(t *testing.T) {
		err := store.Rooms.UpdateRoom(ctx, persistence.Room{ID: "missing", Slug: "x", Name: "x"})
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("lists rooms by name", func(t *testing.T) {
		if err := store.Rooms.CreateRoom(ctx, persistence.Room{ID: "room-0", Slug: "auditorio", Name: "Auditório"}); err != nil {
			t.Fatalf("create room: %v", err)
		}
		rooms, err := store.Rooms.ListRooms(ctx)
		if err != nil {
			t.Fatalf("ListRooms failed: %v", err)
		}
		if len(rooms) != 2 || rooms[0].ID != "room-0" {
			t.Fatalf("unexpected rooms: %+v", rooms)
		}
	})
}

func TestReservationRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, room := seedUserAndRoom(t, store)
	rule := "FREQ=WEEKLY;BYDAY=TU"

	single := persistence.Reservation{
		ID:     "r-1",
		RoomID: room.ID,
		UserID: user.ID,
		Start:  time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC),
	}
	recurring := persistence.Reservation{
		ID:             "r-2",
		RoomID:         room.ID,
		UserID:         user.ID,
		Start:          time.Date(2024, 1, 2, 17, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC),
		RecurrenceRule: &rule,
	}
	for _, r := range []persistence.Reservation{single, recurring} {
		if err := store.Reservations.CreateReservation(ctx, r); err != nil {
			t.Fatalf("create reservation %s: %v", r.ID, err)
		}
	}

	t.Run("round trips the recurrence rule", func(t *testing.T) {
		got, err := store.Reservations.GetReservation(ctx, "r-2")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if got.RecurrenceRule == nil || *got.RecurrenceRule != rule {
			t.Fatalf("expected rule %q, got %v", rule, got.RecurrenceRule)
		}
		if !got.Start.Equal(recurring.Start) {
			t.Fatalf("expected start %v, got %v", recurring.Start, got.Start)
		}
	})

	t.Run("rejects unknown room", func(t *testing.T) {
		bad := single
		bad.ID = "r-bad"
		bad.RoomID = "nowhere"
		err := store.Reservations.CreateReservation(ctx, bad)
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("exceptions are idempotent per date", func(t *testing.T) {
		ex := persistence.ReservationException{ID: "ex-1", ReservationID: "r-2", Date: "2024-01-16"}
		created, err := store.Reservations.AddException(ctx, ex)
		if err != nil || !created {
			t.Fatalf("expected first exception created, got created=%v err=%v", created, err)
		}
		ex.ID = "ex-2"
		created, err = store.Reservations.AddException(ctx, ex)
		if err != nil {
			t.Fatalf("second AddException failed: %v", err)
		}
		if created {
			t.Fatal("expected duplicate exception to be a no-op")
		}

		exceptions, err := store.Reservations.ListExceptions(ctx, []string{"r-1", "r-2"})
		if err != nil {
			t.Fatalf("ListExceptions failed: %v", err)
		}
		if got := exceptions["r-2"]; len(got) != 1 || got[0] != "2024-01-16" {
			t.Fatalf("unexpected exceptions: %v", exceptions)
		}
		if len(exceptions["r-1"]) != 0 {
			t.Fatalf("expected no exceptions for r-1, got %v", exceptions["r-1"])
		}
	})

	t.Run("cancelled reservations drop out of the default listing", func(t *testing.T) {
		if err := store.Reservations.SetReservationCancelled(ctx, "r-1", referenceTime); err != nil {
			t.Fatalf("SetReservationCancelled failed: %v", err)
		}
		active, err := store.Reservations.ListReservations(ctx, persistence.ReservationFilter{RoomID: room.ID})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(active) != 1 || active[0].ID != "r-2" {
			t.Fatalf("unexpected active reservations: %+v", active)
		}
		all, err := store.Reservations.ListReservations(ctx, persistence.ReservationFilter{RoomID: room.ID, IncludeCancelled: true})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 reservations including cancelled, got %d", len(all))
		}
	})

	t.Run("cancel of unknown reservation is not found", func(t *testing.T) {
		err := store.Reservations.SetReservationCancelled(ctx, "missing", referenceTime)
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestClassRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, room := seedUserAndRoom(t, store)

	newClass := func(id string, weekday, start, end int) persistence.ScheduledClass {
		return persistence.ScheduledClass{
			ID:          id,
			RoomID:      room.ID,
			UserID:      user.ID,
			Title:       "Piano",
			Weekday:     weekday,
			StartMinute: start,
			EndMinute:   end,
			Active:      true,
		}
	}

	t.Run("batch insert is atomic", func(t *testing.T) {
		batch := []persistence.ScheduledClass{
			newClass("c-1", 0, 8*60, 9*60),
			newClass("c-1", 2, 8*60, 9*60),
		}
		if err := store.Classes.CreateClasses(ctx, batch); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		classes, err := store.Classes.ListClasses(ctx, persistence.ClassFilter{})
		if err != nil {
			t.Fatalf("ListClasses failed: %v", err)
		}
		if len(classes) != 0 {
			t.Fatalf("expected no classes after rollback, got %d", len(classes))
		}
	})

	t.Run("filters by weekday, activity and exclusion", func(t *testing.T) {
		batch := []persistence.ScheduledClass{
			newClass("c-mon", 0, 8*60, 9*60),
			newClass("c-mon-2", 0, 10*60, 11*60),
			newClass("c-wed", 2, 8*60, 9*60),
		}
		if err := store.Classes.CreateClasses(ctx, batch); err != nil {
			t.Fatalf("CreateClasses failed: %v", err)
		}
		if err := store.Classes.SetClassActive(ctx, "c-mon-2", false, referenceTime); err != nil {
			t.Fatalf("SetClassActive failed: %v", err)
		}

		monday := 0
		active, err := store.Classes.ListClasses(ctx, persistence.ClassFilter{RoomID: room.ID, Weekday: &monday, ActiveOnly: true})
		if err != nil {
			t.Fatalf("ListClasses failed: %v", err)
		}
		if len(active) != 1 || active[0].ID != "c-mon" {
			t.Fatalf("unexpected active monday classes: %+v", active)
		}

		excluded, err := store.Classes.ListClasses(ctx, persistence.ClassFilter{RoomID: room.ID, Weekday: &monday, ExcludeID: "c-mon"})
		if err != nil {
			t.Fatalf("ListClasses failed: %v", err)
		}
		if len(excluded) != 1 || excluded[0].ID != "c-mon-2" {
			t.Fatalf("unexpected classes after exclusion: %+v", excluded)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		class, err := store.Classes.GetClass(ctx, "c-wed")
		if err != nil {
			t.Fatalf("GetClass failed: %v", err)
		}
		class.StartMinute = 14 * 60
		class.EndMinute = 15 * 60
		if err := store.Classes.UpdateClass(ctx, class); err != nil {
			t.Fatalf("UpdateClass failed: %v", err)
		}
		got, err := store.Classes.GetClass(ctx, "c-wed")
		if err != nil {
			t.Fatalf("GetClass failed: %v", err)
		}
		if got.StartMinute != 14*60 {
			t.Fatalf("expected start 840, got %d", got.StartMinute)
		}
		if err := store.Classes.DeleteClass(ctx, "c-wed"); err != nil {
			t.Fatalf("DeleteClass failed: %v", err)
		}
		if err := store.Classes.DeleteClass(ctx, "c-wed"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("rejects inverted ranges", func(t *testing.T) {
		err := store.Classes.CreateClasses(ctx, []persistence.ScheduledClass{newClass("c-bad", 1, 10*60, 9*60)})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})
}

func TestCancelBulk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, room := seedUserAndRoom(t, store)

	for i, id := range []string{"r-1", "r-2"} {
		start := time.Date(2024, 1, 3, 10+i, 0, 0, 0, time.UTC)
		err := store.Reservations.CreateReservation(ctx, persistence.Reservation{
			ID: id, RoomID: room.ID, UserID: user.ID, Start: start, End: start.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("create reservation: %v", err)
		}
	}
	err := store.Classes.CreateClasses(ctx, []persistence.ScheduledClass{{
		ID: "c-1", RoomID: room.ID, UserID: user.ID, Weekday: 1, StartMinute: 480, EndMinute: 540, Active: true,
	}})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	if err := store.Reservations.SetReservationCancelled(ctx, "r-2", referenceTime); err != nil {
		t.Fatalf("cancel r-2: %v", err)
	}

	reservations, classes, err := store.Reservations.CancelBulk(ctx, []string{"r-1", "r-2", "missing"}, []string{"c-1", "c-missing"}, referenceTime)
	if err != nil {
		t.Fatalf("CancelBulk failed: %v", err)
	}
	if len(reservations) != 1 || reservations[0] != "r-1" {
		t.Fatalf("expected only r-1 to change, got %v", reservations)
	}
	if len(classes) != 1 || classes[0] != "c-1" {
		t.Fatalf("expected only c-1 to change, got %v", classes)
	}
	class, err := store.Classes.GetClass(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if class.Active {
		t.Fatal("expected class to be deactivated")
	}

	reservations, classes, err = store.Reservations.CancelBulk(ctx, []string{"r-1"}, []string{"c-1"}, referenceTime)
	if err != nil {
		t.Fatalf("second CancelBulk failed: %v", err)
	}
	if len(reservations) != 0 || len(classes) != 0 {
		t.Fatalf("expected nothing to change on repeat, got %v and %v", reservations, classes)
	}
}

func TestSessionRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := seedUserAndRoom(t, store)

	session := persistence.Session{
		ID:        "s-1",
		UserID:    user.ID,
		Token:     " token-1 ",
		ExpiresAt: referenceTime.Add(time.Hour),
		CreatedAt: referenceTime,
	}
	if _, err := store.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	t.Run("trims the token on lookup", func(t *testing.T) {
		got, err := store.Sessions.GetSession(ctx, "token-1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.RevokedAt != nil {
			t.Fatalf("expected active session, got revoked at %v", got.RevokedAt)
		}
	})

	t.Run("extends expiry", func(t *testing.T) {
		got, err := store.Sessions.GetSession(ctx, "token-1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		got.ExpiresAt = referenceTime.Add(2 * time.Hour)
		updated, err := store.Sessions.UpdateSession(ctx, got)
		if err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		if !updated.ExpiresAt.Equal(referenceTime.Add(2 * time.Hour)) {
			t.Fatalf("unexpected expiry %v", updated.ExpiresAt)
		}
	})

	t.Run("revokes by token", func(t *testing.T) {
		revoked, err := store.Sessions.RevokeSession(ctx, "token-1", referenceTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		if revoked.RevokedAt == nil {
			t.Fatal("expected revoked_at to be set")
		}
		if _, err := store.Sessions.RevokeSession(ctx, "nope", referenceTime); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deletes expired sessions", func(t *testing.T) {
		if err := store.Sessions.DeleteExpiredSessions(ctx, referenceTime.Add(3*time.Hour)); err != nil {
			t.Fatalf("DeleteExpiredSessions failed: %v", err)
		}
		if _, err := store.Sessions.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentWritesShareOneConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, room := seedUserAndRoom(t, store)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
			errs <- store.Reservations.CreateReservation(ctx, persistence.Reservation{
				ID:     "r-" + start.Format("15"),
				RoomID: room.ID,
				UserID: user.ID,
				Start:  start,
				End:    start.Add(30 * time.Minute),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert failed: %v", err)
		}
	}
}
