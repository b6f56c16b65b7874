package application

import "sync"

// RoomLocks serializes check-then-write sequences per room within one process.
// Entries are reference counted and removed once no caller holds them.
type RoomLocks struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewRoomLocks creates an empty lock table.
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{rooms: make(map[string]*roomLock)}
}

// Lock blocks until roomID is free and returns the matching unlock function.
func (l *RoomLocks) Lock(roomID string) (unlock func()) {
	if l == nil {
		return func() {}
	}

	l.mu.Lock()
	entry, ok := l.rooms[roomID]
	if !ok {
		entry = &roomLock{}
		l.rooms[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.rooms, roomID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *RoomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
