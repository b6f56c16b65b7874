// Package sqlstore implements the persistence repositories on database/sql.
// SQLite (modernc) and PostgreSQL (pgx) share the same portable schema.
package sqlstore

import (
	"context"
	"log/slog"
)

// Store bundles every repository over one connection pool.
type Store struct {
	*ConnectionPool

	Users        *UserRepository
	Rooms        *RoomRepository
	Reservations *ReservationRepository
	Classes      *ClassRepository
	Sessions     *SessionRepository
}

// NewStore wires repositories on top of pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{
		ConnectionPool: pool,
		Users:          NewUserRepository(pool),
		Rooms:          NewRoomRepository(pool),
		Reservations:   NewReservationRepository(pool),
		Classes:        NewClassRepository(pool),
		Sessions:       NewSessionRepository(pool),
	}
}

// OpenStore connects and applies pending migrations.
func OpenStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx, logger); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}
