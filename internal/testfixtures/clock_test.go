package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if got := nowFn(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("expected NowFunc to follow the clock, got %v", got)
	}

	clock.Set(start)
	if got := clock.Now(); !got.Equal(start) {
		t.Fatalf("expected %v after Set, got %v", start, got)
	}
}
