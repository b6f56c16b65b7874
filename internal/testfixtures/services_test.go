package testfixtures

import (
	"context"
	"testing"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

func TestServiceFactoryBuildsServicesOverHarness(t *testing.T) {
	harness := NewSQLiteHarness(t)
	admin := harness.InsertUser(t, NewUserFixture(WithUserRole("admin")))
	services := NewServiceFactory(WithIDGenerator(NewIDGenerator("room"))).Build(harness)

	room, err := services.Rooms.CreateRoom(context.Background(), application.CreateRoomParams{
		Principal: Staff(admin.ID),
		Input:     application.RoomInput{Slug: "lab", Name: "Laboratório"},
	})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if room.ID != "room-1" {
		t.Fatalf("expected deterministic id room-1, got %q", room.ID)
	}

	stored, err := harness.Rooms.GetRoomBySlug(context.Background(), "lab")
	if err != nil {
		t.Fatalf("expected room to be persisted: %v", err)
	}
	if stored.Name != "Laboratório" {
		t.Fatalf("unexpected stored name %q", stored.Name)
	}
}

func TestFastHashVerifies(t *testing.T) {
	hash, err := fastHash("segredo123")
	if err != nil {
		t.Fatalf("fastHash failed: %v", err)
	}
	if err := application.VerifyPassword(hash, "segredo123"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
}

func TestFixturesProduceDistinctRows(t *testing.T) {
	harness := NewSQLiteHarness(t)
	user := harness.InsertUser(t, NewUserFixture())
	room := harness.InsertRoom(t, NewRoom())
	harness.InsertClasses(t,
		NewClass(room.ID, user.ID),
		NewClass(room.ID, user.ID, WithClassSlot(2, 10*60, 11*60)),
	)
	harness.InsertReservation(t, NewReservation(room.ID, user.ID, ReferenceTime().AddDate(0, 0, 7)))

	classes, err := harness.Classes.ListClasses(context.Background(), persistence.ClassFilter{RoomID: room.ID})
	if err != nil {
		t.Fatalf("ListClasses failed: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(classes))
	}
}
