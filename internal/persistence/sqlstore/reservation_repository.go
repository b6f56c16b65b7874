package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository and
// persistence.BulkCanceller.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reservationColumns = `id, room_id, user_id, start_at, end_at, recurrence_rule, is_cancelled, created_at, updated_at`

// CreateReservation inserts a new reservation.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.RoomID == "" || reservation.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = reservation.CreatedAt
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		reservation.ID,
		reservation.RoomID,
		reservation.UserID,
		formatTime(reservation.Start),
		formatTime(reservation.End),
		nullableString(reservation.RecurrenceRule),
		reservation.Cancelled,
		formatTime(reservation.CreatedAt),
		formatTime(reservation.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetReservation retrieves a reservation by ID, cancelled or not.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	reservation, err := scanReservation(r.helper.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// ListReservations returns reservations matching filter ordered by start.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if !filter.IncludeCancelled {
		clauses = append(clauses, "is_cancelled = ?")
		args = append(args, false)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	return reservations, nil
}

// SetReservationCancelled marks the reservation and every future occurrence cancelled.
func (r *ReservationRepository) SetReservationCancelled(ctx context.Context, id string, updatedAt time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE reservations SET is_cancelled = ?, updated_at = ? WHERE id = ?
	`, true, formatTime(updatedAt), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// AddException records an excepted date for a recurring reservation. A repeated
// date is a no-op and reports created=false.
func (r *ReservationRepository) AddException(ctx context.Context, exception persistence.ReservationException) (bool, error) {
	if exception.ID == "" || exception.ReservationID == "" || strings.TrimSpace(exception.Date) == "" {
		return false, persistence.ErrConstraintViolation
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		INSERT INTO reservation_exceptions (id, reservation_id, date, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (reservation_id, date) DO NOTHING
	`,
		exception.ID,
		exception.ReservationID,
		strings.TrimSpace(exception.Date),
		formatTime(exception.CreatedAt),
	)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListExceptions returns the excepted dates keyed by reservation ID.
func (r *ReservationRepository) ListExceptions(ctx context.Context, reservationIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(reservationIDs))
	for i, id := range reservationIDs {
		args[i] = id
	}
	rows, err := r.helper.Query(ctx, `
		SELECT reservation_id, date FROM reservation_exceptions
		WHERE reservation_id IN (`+placeholders(len(args))+`)
		ORDER BY reservation_id, date
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var reservationID, date string
		if err := rows.Scan(&reservationID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		out[reservationID] = append(out[reservationID], date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exceptions: %w", err)
	}
	return out, nil
}

// CancelBulk cancels reservations and deactivates classes in a single
// transaction. Unknown or already inactive IDs are skipped and left out of the
// returned slices.
func (r *ReservationRepository) CancelBulk(ctx context.Context, reservationIDs, classIDs []string, at time.Time) ([]string, []string, error) {
	var cancelled, deactivated []string
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, id := range reservationIDs {
			result, err := r.helper.ExecOn(ctx, tx, `
				UPDATE reservations SET is_cancelled = ?, updated_at = ?
				WHERE id = ? AND is_cancelled = ?
			`, true, formatTime(at), id, false)
			if err != nil {
				return r.mapper.MapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n > 0 {
				cancelled = append(cancelled, id)
			}
		}
		for _, id := range classIDs {
			result, err := r.helper.ExecOn(ctx, tx, `
				UPDATE scheduled_classes SET is_active = ?, updated_at = ?
				WHERE id = ? AND is_active = ?
			`, false, formatTime(at), id, true)
			if err != nil {
				return r.mapper.MapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n > 0 {
				deactivated = append(deactivated, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return cancelled, deactivated, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation                          persistence.Reservation
		startAt, endAt, createdAt, updatedAt string
		rule                                 sql.NullString
	)
	if err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.UserID,
		&startAt,
		&endAt,
		&rule,
		&reservation.Cancelled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if reservation.Start, err = parseTime("start_at", startAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTime("end_at", endAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if rule.Valid && strings.TrimSpace(rule.String) != "" {
		value := rule.String
		reservation.RecurrenceRule = &value
	}
	return reservation, nil
}
