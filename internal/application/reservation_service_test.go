package application_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/testfixtures"
	"github.com/example/room-booking/internal/timezone"
)

// The fixture clock sits on Tuesday 2024-01-02 12:04 local time; 2024-01-08 is
// the next Monday.
const nextMonday = "2024-01-08"

type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Publish(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type bookingEnv struct {
	harness  *testfixtures.SQLiteHarness
	services testfixtures.Services
	recorder *eventRecorder
	teacher  testfixtures.UserFixture
	other    testfixtures.UserFixture
	admin    testfixtures.UserFixture
	room     persistence.Room
}

func newBookingEnv(t *testing.T) *bookingEnv {
	t.Helper()
	harness := testfixtures.NewSQLiteHarness(t)
	recorder := &eventRecorder{}
	env := &bookingEnv{
		harness:  harness,
		recorder: recorder,
		services: testfixtures.NewServiceFactory(testfixtures.WithPublisher(recorder)).Build(harness),
		teacher:  harness.InsertUser(t, testfixtures.NewUserFixture(testfixtures.WithUserDisplayName("Ana Souza"))),
		other:    harness.InsertUser(t, testfixtures.NewUserFixture(testfixtures.WithUserDisplayName("Bruno Lima"))),
		admin:    harness.InsertUser(t, testfixtures.NewUserFixture(testfixtures.WithUserRole("secretario"))),
		room:     harness.InsertRoom(t, testfixtures.NewRoom(testfixtures.WithRoomSlug("sala-1"))),
	}
	return env
}

func (e *bookingEnv) book(principal application.Principal, date, start string, minutes int) (application.Reservation, error) {
	return e.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
		Principal: principal,
		Input: application.ReservationInput{
			RoomSlug:        e.room.Slug,
			Date:            date,
			StartTime:       start,
			DurationMinutes: minutes,
		},
	})
}

func TestReservationService_CreateReservation(t *testing.T) {
	t.Run("rejects an overlap with a fixed class and offers alternatives", func(t *testing.T) {
		env := newBookingEnv(t)
		env.harness.InsertClasses(t, testfixtures.NewClass(env.room.ID, env.other.ID))

		_, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "08:30", 60)

		var cErr *application.ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if cErr.Kind != scheduler.ConflictFixedClass {
			t.Fatalf("expected fixed_class conflict, got %q", cErr.Kind)
		}
		if len(cErr.Weekdays) != 1 || cErr.Weekdays[0].Weekday != timezone.Monday {
			t.Fatalf("expected Monday to be reported, got %#v", cErr.Weekdays)
		}
		alternatives := cErr.Weekdays[0].Alternatives
		if len(alternatives) == 0 {
			t.Fatalf("expected alternatives")
		}
		for _, slot := range alternatives {
			if slot.Start < 9*60 && slot.Start+60 > 8*60 {
				t.Fatalf("alternative %s overlaps the class", slot.Label())
			}
		}

		rows, err := env.harness.Reservations.ListReservations(context.Background(), persistence.ReservationFilter{})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(rows) != 0 {
			t.Fatalf("expected nothing persisted, got %d rows", len(rows))
		}
	})

	t.Run("accepts a slot touching the class boundary", func(t *testing.T) {
		env := newBookingEnv(t)
		env.harness.InsertClasses(t, testfixtures.NewClass(env.room.ID, env.other.ID))

		reservation, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "09:00", 60)
		if err != nil {
			t.Fatalf("expected booking to succeed, got %v", err)
		}
		if reservation.UserID != env.teacher.ID {
			t.Fatalf("expected owner %s, got %s", env.teacher.ID, reservation.UserID)
		}
		if got := reservation.Start.In(time.UTC); !got.Equal(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected 09:00 local (12:00 UTC), got %v", got)
		}
		if types := env.recorder.types(); len(types) != 1 || types[0] != notify.ReservationCreated {
			t.Fatalf("expected one reservation.created event, got %v", types)
		}
	})

	t.Run("rejects an overlap with another reservation", func(t *testing.T) {
		env := newBookingEnv(t)
		if _, err := env.book(testfixtures.Teacher(env.other.ID), nextMonday, "14:00", 90); err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}

		_, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "15:00", 60)

		var cErr *application.ConflictError
		if !errors.As(err, &cErr) || cErr.Kind != scheduler.ConflictReservation {
			t.Fatalf("expected reservation conflict, got %v", err)
		}
		if len(cErr.Weekdays[0].Alternatives) != 0 {
			t.Fatalf("reservation conflicts carry no alternatives, got %v", cErr.Weekdays[0].Alternatives)
		}
	})

	t.Run("validates the request", func(t *testing.T) {
		env := newBookingEnv(t)

		_, err := env.book(testfixtures.Teacher(env.teacher.ID), "2024-01-01", "25:00", 60)

		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"date", "start_time"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects slots crossing midnight", func(t *testing.T) {
		env := newBookingEnv(t)

		_, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "23:30", 60)

		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["duration_min"] == "" {
			t.Fatalf("expected duration_min error, got %v", err)
		}
	})

	t.Run("defaults the duration to one hour", func(t *testing.T) {
		env := newBookingEnv(t)

		reservation, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 0)
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
		if d := reservation.End.Sub(reservation.Start); d != time.Hour {
			t.Fatalf("expected one hour, got %v", d)
		}
	})

	t.Run("returns not found for an unknown room", func(t *testing.T) {
		env := newBookingEnv(t)

		_, err := env.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
			Principal: testfixtures.Teacher(env.teacher.ID),
			Input:     application.ReservationInput{RoomSlug: "nope", Date: nextMonday, StartTime: "10:00"},
		})
		if !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("lets staff book on behalf of a teacher only", func(t *testing.T) {
		env := newBookingEnv(t)
		input := application.ReservationInput{RoomSlug: env.room.Slug, Date: nextMonday, StartTime: "10:00", UserID: env.other.ID}

		byStaff, err := env.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
			Principal: testfixtures.Staff(env.admin.ID),
			Input:     input,
		})
		if err != nil {
			t.Fatalf("staff booking failed: %v", err)
		}
		if byStaff.UserID != env.other.ID {
			t.Fatalf("expected booking owned by %s, got %s", env.other.ID, byStaff.UserID)
		}

		input.StartTime = "12:00"
		byTeacher, err := env.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
			Principal: testfixtures.Teacher(env.teacher.ID),
			Input:     input,
		})
		if err != nil {
			t.Fatalf("teacher booking failed: %v", err)
		}
		if byTeacher.UserID != env.teacher.ID {
			t.Fatalf("expected teacher to keep ownership, got %s", byTeacher.UserID)
		}
	})

	t.Run("lets exactly one of two concurrent bookings win", func(t *testing.T) {
		env := newBookingEnv(t)

		var (
			wg        sync.WaitGroup
			errs      = make([]error, 2)
			bookers   = []string{env.teacher.ID, env.other.ID}
			startLine = make(chan struct{})
		)
		for i, userID := range bookers {
			wg.Add(1)
			go func(i int, userID string) {
				defer wg.Done()
				<-startLine
				_, errs[i] = env.book(testfixtures.Teacher(userID), nextMonday, "16:00", 60)
			}(i, userID)
		}
		close(startLine)
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range errs {
			var cErr *application.ConflictError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &cErr):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if successes != 1 || conflicts != 1 {
			t.Fatalf("expected one success and one conflict, got %d and %d", successes, conflicts)
		}
	})
}

func (e *bookingEnv) bookSeries(principal application.Principal, date, start string, minutes int, rule string) (application.Reservation, error) {
	return e.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
		Principal: principal,
		Input: application.ReservationInput{
			RoomSlug:        e.room.Slug,
			Date:            date,
			StartTime:       start,
			DurationMinutes: minutes,
			RecurrenceRule:  rule,
		},
	})
}

func TestReservationService_RecurringSeries(t *testing.T) {
	t.Run("long occurrences block slots late in the morning", func(t *testing.T) {
		env := newBookingEnv(t)
		if _, err := env.bookSeries(testfixtures.Teacher(env.teacher.ID), nextMonday, "08:00", 240, "FREQ=WEEKLY"); err != nil {
			t.Fatalf("seed series failed: %v", err)
		}

		for _, date := range []string{nextMonday, "2024-01-15"} {
			_, err := env.book(testfixtures.Teacher(env.other.ID), date, "11:00", 30)
			var cErr *application.ConflictError
			if !errors.As(err, &cErr) || cErr.Kind != scheduler.ConflictReservation {
				t.Fatalf("%s 11:00: expected reservation conflict, got %v", date, err)
			}
		}

		if _, err := env.book(testfixtures.Teacher(env.other.ID), "2024-01-15", "12:00", 30); err != nil {
			t.Fatalf("expected the slot after the series to be free, got %v", err)
		}
	})

	t.Run("rejects rules repeating more often than daily", func(t *testing.T) {
		env := newBookingEnv(t)

		for _, rule := range []string{"FREQ=HOURLY", "RRULE:FREQ=MINUTELY;INTERVAL=15"} {
			_, err := env.bookSeries(testfixtures.Teacher(env.teacher.ID), nextMonday, "08:00", 30, rule)
			var vErr *application.ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors["recurrence_rule"] == "" {
				t.Fatalf("%s: expected recurrence_rule error, got %v", rule, err)
			}
		}
		if types := env.recorder.types(); len(types) != 0 {
			t.Fatalf("expected no events, got %v", types)
		}
	})

	t.Run("accepts daily rules", func(t *testing.T) {
		env := newBookingEnv(t)

		reservation, err := env.bookSeries(testfixtures.Teacher(env.teacher.ID), nextMonday, "08:00", 30, "FREQ=DAILY;COUNT=3")
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
		if reservation.RecurrenceRule == nil || *reservation.RecurrenceRule != "FREQ=DAILY;COUNT=3" {
			t.Fatalf("expected rule to be stored, got %v", reservation.RecurrenceRule)
		}
	})
}

func TestReservationService_RejectsTrailingDateGarbage(t *testing.T) {
	env := newBookingEnv(t)

	_, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday+"xyz", "10:00", 60)

	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["date"] == "" {
		t.Fatalf("expected date error, got %v", err)
	}
}

func TestReservationService_PublishesOutsideRoomLock(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	blocking := notify.PublisherFunc(func(ctx context.Context, event notify.Event) error {
		hold := false
		first.Do(func() { hold = true })
		if !hold {
			return nil
		}
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	env := &bookingEnv{
		harness:  harness,
		services: testfixtures.NewServiceFactory(testfixtures.WithPublisher(blocking)).Build(harness),
		teacher:  harness.InsertUser(t, testfixtures.NewUserFixture()),
		other:    harness.InsertUser(t, testfixtures.NewUserFixture()),
		room:     harness.InsertRoom(t, testfixtures.NewRoom(testfixtures.WithRoomSlug("sala-1"))),
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 60)
		firstDone <- err
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first booking never reached the publisher")
	}

	secondDone := make(chan error, 1)
	go func() {
		_, err := env.book(testfixtures.Teacher(env.other.ID), nextMonday, "14:00", 60)
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("second booking failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("second booking waited on the first one's publish")
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
}

func TestReservationService_CancelReservation(t *testing.T) {
	t.Run("single day on a one-off reservation cancels it entirely", func(t *testing.T) {
		env := newBookingEnv(t)
		reservation, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 60)
		if err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}

		result, err := env.services.Reservations.CancelReservation(context.Background(), application.CancelReservationParams{
			Principal:     testfixtures.Teacher(env.teacher.ID),
			ReservationID: "r-" + reservation.ID,
			Mode:          application.CancelSingle,
			Date:          nextMonday,
		})
		if err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}
		if !result.Reservation.Cancelled || result.ExceptionDate != "" {
			t.Fatalf("expected whole reservation cancelled, got %#v", result)
		}

		stored, err := env.harness.Reservations.GetReservation(context.Background(), reservation.ID)
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if !stored.Cancelled {
			t.Fatalf("expected stored reservation to be cancelled")
		}
	})

	t.Run("single day on a series hides only that date", func(t *testing.T) {
		env := newBookingEnv(t)
		teacher := testfixtures.Teacher(env.teacher.ID)
		reservation, err := env.services.Reservations.CreateReservation(context.Background(), application.CreateReservationParams{
			Principal: teacher,
			Input: application.ReservationInput{
				RoomSlug:        env.room.Slug,
				Date:            "2024-01-02",
				StartTime:       "10:00",
				DurationMinutes: 60,
				RecurrenceRule:  "FREQ=WEEKLY;BYDAY=TU",
			},
		})
		if err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}

		cancel := application.CancelReservationParams{Principal: teacher, ReservationID: reservation.ID, Date: "2024-01-16"}
		first, err := env.services.Reservations.CancelReservation(context.Background(), cancel)
		if err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}
		if !first.ExceptionCreated || first.ExceptionDate != "2024-01-16" {
			t.Fatalf("expected a new exception, got %#v", first)
		}
		again, err := env.services.Reservations.CancelReservation(context.Background(), cancel)
		if err != nil {
			t.Fatalf("repeated cancel failed: %v", err)
		}
		if again.ExceptionCreated {
			t.Fatalf("expected repeated cancel to be a no-op")
		}

		events, err := env.services.Reservations.ListEvents(context.Background(), application.EventFeedParams{
			Principal: teacher,
			Start:     "2024-01-01",
			End:       "2024-02-01",
		})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		var dates []string
		for _, event := range events {
			if event.Type == application.EventTypeReservation {
				dates = append(dates, event.Start.Format("2006-01-02"))
			}
		}
		want := []string{"2024-01-02", "2024-01-09", "2024-01-23", "2024-01-30"}
		if len(dates) != len(want) {
			t.Fatalf("expected %v, got %v", want, dates)
		}
		for i := range want {
			if dates[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, dates)
			}
		}
	})

	t.Run("forbids cancelling someone else's reservation", func(t *testing.T) {
		env := newBookingEnv(t)
		reservation, err := env.book(testfixtures.Teacher(env.other.ID), nextMonday, "10:00", 60)
		if err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}

		_, err = env.services.Reservations.CancelReservation(context.Background(), application.CancelReservationParams{
			Principal:     testfixtures.Teacher(env.teacher.ID),
			ReservationID: reservation.ID,
			Mode:          application.CancelAll,
		})
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		if _, err := env.services.Reservations.CancelReservation(context.Background(), application.CancelReservationParams{
			Principal:     testfixtures.Staff(env.admin.ID),
			ReservationID: reservation.ID,
			Mode:          application.CancelAll,
		}); err != nil {
			t.Fatalf("expected staff to cancel, got %v", err)
		}
	})

	t.Run("requires a date for single mode", func(t *testing.T) {
		env := newBookingEnv(t)
		reservation, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 60)
		if err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}

		_, err = env.services.Reservations.CancelReservation(context.Background(), application.CancelReservationParams{
			Principal:     testfixtures.Teacher(env.teacher.ID),
			ReservationID: reservation.ID,
		})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["date"] == "" {
			t.Fatalf("expected date validation error, got %v", err)
		}
	})
}

func TestReservationService_CancelBulk(t *testing.T) {
	env := newBookingEnv(t)
	reservation, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 60)
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	class := testfixtures.NewClass(env.room.ID, env.other.ID)
	env.harness.InsertClasses(t, class)
	ids := []string{"r-" + reservation.ID, "sc-" + class.ID, "r-missing", "bogus"}

	t.Run("is staff only", func(t *testing.T) {
		_, err := env.services.Reservations.CancelBulk(context.Background(), testfixtures.Teacher(env.teacher.ID), ids)
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("counts what changed", func(t *testing.T) {
		result, err := env.services.Reservations.CancelBulk(context.Background(), testfixtures.Staff(env.admin.ID), ids)
		if err != nil {
			t.Fatalf("CancelBulk failed: %v", err)
		}
		if result.Reservations != 1 || result.Classes != 1 {
			t.Fatalf("expected 1 reservation and 1 class, got %#v", result)
		}

		stored, err := env.harness.Classes.GetClass(context.Background(), class.ID)
		if err != nil {
			t.Fatalf("GetClass failed: %v", err)
		}
		if stored.Active {
			t.Fatalf("expected class to be deactivated")
		}

		want := []string{notify.ReservationCreated, notify.ReservationCancelled, notify.ClassToggled}
		if got := env.recorder.types(); !slices.Equal(got, want) {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	})

	t.Run("repeating the selection changes nothing", func(t *testing.T) {
		before := len(env.recorder.types())

		result, err := env.services.Reservations.CancelBulk(context.Background(), testfixtures.Staff(env.admin.ID), ids)
		if err != nil {
			t.Fatalf("CancelBulk failed: %v", err)
		}
		if result.Reservations != 0 || result.Classes != 0 {
			t.Fatalf("expected nothing to change, got %#v", result)
		}
		if after := len(env.recorder.types()); after != before {
			t.Fatalf("expected no new events, got %v", env.recorder.types()[before:])
		}
	})

	t.Run("rejects an empty selection", func(t *testing.T) {
		_, err := env.services.Reservations.CancelBulk(context.Background(), testfixtures.Staff(env.admin.ID), nil)
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestReservationService_ListEvents(t *testing.T) {
	env := newBookingEnv(t)
	env.harness.InsertClasses(t, testfixtures.NewClass(env.room.ID, env.other.ID, testfixtures.WithClassTitle("Piano")))
	if _, err := env.book(testfixtures.Teacher(env.teacher.ID), nextMonday, "10:00", 60); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	feed := application.EventFeedParams{
		Principal: testfixtures.Teacher(env.teacher.ID),
		Start:     "2024-01-08T00:00:00",
		End:       "2024-01-09T00:00:00",
	}

	t.Run("merges classes and reservations in start order", func(t *testing.T) {
		events, err := env.services.Reservations.ListEvents(context.Background(), feed)
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %#v", events)
		}
		class, reservation := events[0], events[1]
		if class.Type != application.EventTypeScheduledClass || class.Title != "Piano — Bruno Lima" || class.CanCancel {
			t.Fatalf("unexpected class event %#v", class)
		}
		if reservation.Type != application.EventTypeReservation || reservation.Title != "Ana Souza" || !reservation.CanCancel {
			t.Fatalf("unexpected reservation event %#v", reservation)
		}
		if reservation.RoomSlug != "sala-1" {
			t.Fatalf("expected room slug on events, got %q", reservation.RoomSlug)
		}
	})

	t.Run("returns nothing for an unknown room", func(t *testing.T) {
		params := feed
		params.RoomSlug = "nope"
		events, err := env.services.Reservations.ListEvents(context.Background(), params)
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		params := feed
		params.Start, params.End = feed.End, feed.Start
		_, err := env.services.Reservations.ListEvents(context.Background(), params)
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("admin feed is staff only and filters by owner", func(t *testing.T) {
		if _, err := env.services.Reservations.ListAdminEvents(context.Background(), feed); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		params := feed
		params.Principal = testfixtures.Staff(env.admin.ID)
		params.UserID = env.other.ID
		events, err := env.services.Reservations.ListAdminEvents(context.Background(), params)
		if err != nil {
			t.Fatalf("ListAdminEvents failed: %v", err)
		}
		if len(events) != 1 || events[0].Title != "Piano" || !events[0].CanCancel {
			t.Fatalf("expected only the class titled Piano, got %#v", events)
		}
	})
}

func TestReservationService_Availability(t *testing.T) {
	env := newBookingEnv(t)
	env.harness.InsertClasses(t, testfixtures.NewClass(env.room.ID, env.other.ID))
	staff := testfixtures.Staff(env.admin.ID)

	t.Run("skips slots overlapping occupations", func(t *testing.T) {
		slots, err := env.services.Reservations.Availability(context.Background(), application.AvailabilityParams{
			Principal:       staff,
			Date:            nextMonday,
			RoomSlug:        env.room.Slug,
			DurationMinutes: 60,
		})
		if err != nil {
			t.Fatalf("Availability failed: %v", err)
		}
		free := map[string]bool{}
		for _, slot := range slots {
			free[slot] = true
		}
		for _, busy := range []string{"07:30", "08:00", "08:30"} {
			if free[busy] {
				t.Fatalf("expected %s to be busy", busy)
			}
		}
		for _, open := range []string{"00:00", "07:00", "09:00", "22:30"} {
			if !free[open] {
				t.Fatalf("expected %s to be free, got %v", open, slots)
			}
		}
		if free["23:00"] {
			t.Fatalf("a slot may not run past 23:59")
		}
		if len(slots) != 43 {
			t.Fatalf("expected 43 slots, got %d", len(slots))
		}
	})

	t.Run("starts today after the current time", func(t *testing.T) {
		slots, err := env.services.Reservations.Availability(context.Background(), application.AvailabilityParams{
			Principal: staff,
			Date:      "2024-01-02",
			RoomSlug:  env.room.Slug,
		})
		if err != nil {
			t.Fatalf("Availability failed: %v", err)
		}
		if len(slots) == 0 || slots[0] != "12:30" {
			t.Fatalf("expected first slot 12:30, got %v", slots)
		}
	})

	t.Run("returns an empty list for past dates", func(t *testing.T) {
		slots, err := env.services.Reservations.Availability(context.Background(), application.AvailabilityParams{
			Principal: staff,
			Date:      "2023-12-29",
			RoomSlug:  env.room.Slug,
		})
		if err != nil {
			t.Fatalf("Availability failed: %v", err)
		}
		if len(slots) != 0 {
			t.Fatalf("expected no slots, got %v", slots)
		}
	})
}
