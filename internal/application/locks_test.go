package application

import (
	"sync"
	"testing"
	"time"
)

func TestRoomLocks(t *testing.T) {
	t.Run("serializes holders of the same room", func(t *testing.T) {
		locks := NewRoomLocks()
		unlock := locks.Lock("room-1")

		acquired := make(chan struct{})
		go func() {
			release := locks.Lock("room-1")
			close(acquired)
			release()
		}()

		select {
		case <-acquired:
			t.Fatalf("second holder acquired a locked room")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatalf("second holder never acquired the room")
		}
	})

	t.Run("does not block other rooms", func(t *testing.T) {
		locks := NewRoomLocks()
		unlock := locks.Lock("room-1")
		defer unlock()

		done := make(chan struct{})
		go func() {
			locks.Lock("room-2")()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("lock on room-2 blocked behind room-1")
		}
	})

	t.Run("drops entries once released", func(t *testing.T) {
		locks := NewRoomLocks()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("room-1")
				unlock()
				unlock()
			}()
		}
		wg.Wait()

		if got := locks.size(); got != 0 {
			t.Fatalf("expected empty table, got %d entries", got)
		}
	})

	t.Run("nil table is a no-op", func(t *testing.T) {
		var locks *RoomLocks
		locks.Lock("room-1")()
	})
}
