package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// ClassRepository implements persistence.ClassRepository.
type ClassRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewClassRepository creates a new scheduled class repository.
func NewClassRepository(pool *ConnectionPool) *ClassRepository {
	return &ClassRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const classColumns = `id, room_id, user_id, title, weekday, start_minute, end_minute, is_active, created_at, updated_at`

// CreateClasses inserts every class in one transaction.
func (r *ClassRepository) CreateClasses(ctx context.Context, classes []persistence.ScheduledClass) error {
	if len(classes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range classes {
		if err := validateClass(classes[i]); err != nil {
			return err
		}
		if classes[i].CreatedAt.IsZero() {
			classes[i].CreatedAt = now
		}
		if classes[i].UpdatedAt.IsZero() {
			classes[i].UpdatedAt = classes[i].CreatedAt
		}
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, class := range classes {
			_, err := r.helper.ExecOn(ctx, tx, `
				INSERT INTO scheduled_classes (`+classColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				class.ID,
				class.RoomID,
				class.UserID,
				class.Title,
				class.Weekday,
				class.StartMinute,
				class.EndMinute,
				class.Active,
				formatTime(class.CreatedAt),
				formatTime(class.UpdatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// UpdateClass replaces the mutable fields of an existing class.
func (r *ClassRepository) UpdateClass(ctx context.Context, class persistence.ScheduledClass) error {
	if err := validateClass(class); err != nil {
		return err
	}
	if class.UpdatedAt.IsZero() {
		class.UpdatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE scheduled_classes
		SET room_id = ?, user_id = ?, title = ?, weekday = ?, start_minute = ?, end_minute = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		class.RoomID,
		class.UserID,
		class.Title,
		class.Weekday,
		class.StartMinute,
		class.EndMinute,
		class.Active,
		formatTime(class.UpdatedAt),
		class.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetClass retrieves a class by ID.
func (r *ClassRepository) GetClass(ctx context.Context, id string) (persistence.ScheduledClass, error) {
	class, err := scanClass(r.helper.QueryRow(ctx, `SELECT `+classColumns+` FROM scheduled_classes WHERE id = ?`, id))
	if err != nil {
		return persistence.ScheduledClass{}, r.mapper.MapError(err)
	}
	return class, nil
}

// ListClasses returns classes matching filter ordered by weekday and start.
func (r *ClassRepository) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.ScheduledClass, error) {
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
	if filter.Weekday != nil {
		clauses = append(clauses, "weekday = ?")
		args = append(args, *filter.Weekday)
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active = ?")
		args = append(args, true)
	}
	if filter.ExcludeID != "" {
		clauses = append(clauses, "id <> ?")
		args = append(args, filter.ExcludeID)
	}

	query := `SELECT ` + classColumns + ` FROM scheduled_classes`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY weekday, start_minute, id`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var classes []persistence.ScheduledClass
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classes: %w", err)
	}
	return classes, nil
}

// SetClassActive toggles whether the class occupies its slot.
func (r *ClassRepository) SetClassActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE scheduled_classes SET is_active = ?, updated_at = ? WHERE id = ?
	`, active, formatTime(updatedAt), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// DeleteClass removes a class permanently.
func (r *ClassRepository) DeleteClass(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM scheduled_classes WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func validateClass(class persistence.ScheduledClass) error {
	if class.ID == "" || class.RoomID == "" || class.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if class.Weekday < 0 || class.Weekday > 6 {
		return persistence.ErrConstraintViolation
	}
	if class.StartMinute < 0 || class.EndMinute > 24*60 || class.EndMinute <= class.StartMinute {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func scanClass(row rowScanner) (persistence.ScheduledClass, error) {
	var (
		class                persistence.ScheduledClass
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&class.ID,
		&class.RoomID,
		&class.UserID,
		&class.Title,
		&class.Weekday,
		&class.StartMinute,
		&class.EndMinute,
		&class.Active,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.ScheduledClass{}, err
	}
	var err error
	if class.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.ScheduledClass{}, err
	}
	if class.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.ScheduledClass{}, err
	}
	return class, nil
}
