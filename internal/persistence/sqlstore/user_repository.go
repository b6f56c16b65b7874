package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const (
	userColumns    = `id, email, display_name, password_hash, is_superuser, is_active, created_at, updated_at`
	profileColumns = `user_id, role, phone, created_at, updated_at`
)

// CreateUserWithProfile inserts the user and its profile atomically.
func (r *UserRepository) CreateUserWithProfile(ctx context.Context, user persistence.User, profile persistence.Profile) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	profile.UserID = user.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = user.CreatedAt
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecOn(ctx, tx, `
			INSERT INTO users (`+userColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			user.ID,
			normalizeEmail(user.Email),
			user.DisplayName,
			user.PasswordHash,
			user.IsSuperuser,
			user.IsActive,
			formatTime(user.CreatedAt),
			formatTime(user.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		_, err = r.helper.ExecOn(ctx, tx, `
			INSERT INTO profiles (`+profileColumns+`)
			VALUES (?, ?, ?, ?, ?)
		`,
			profile.UserID,
			profile.Role,
			profile.Phone,
			formatTime(profile.CreatedAt),
			formatTime(profile.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	user, err := scanUser(r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	user, err := scanUser(r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetProfile retrieves the profile attached to userID.
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (persistence.Profile, error) {
	profile, err := scanProfile(r.helper.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if err != nil {
		return persistence.Profile{}, r.mapper.MapError(err)
	}
	return profile, nil
}

// UpdateProfile stores the contact fields of profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile persistence.Profile) error {
	if profile.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE profiles SET phone = ?, updated_at = ? WHERE user_id = ?
	`, strings.TrimSpace(profile.Phone), formatTime(profile.UpdatedAt), profile.UserID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// ListUsers returns all users ordered by display name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// ListProfiles returns every profile.
func (r *UserRepository) ListProfiles(ctx context.Context) ([]persistence.Profile, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var profiles []persistence.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsSuperuser,
		&user.IsActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.User{}, err
	}
	var err error
	if user.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func scanProfile(row rowScanner) (persistence.Profile, error) {
	var (
		profile              persistence.Profile
		createdAt, updatedAt string
	)
	if err := row.Scan(&profile.UserID, &profile.Role, &profile.Phone, &createdAt, &updatedAt); err != nil {
		return persistence.Profile{}, err
	}
	var err error
	if profile.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Profile{}, err
	}
	if profile.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Profile{}, err
	}
	return profile, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
