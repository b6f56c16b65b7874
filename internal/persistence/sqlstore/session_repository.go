package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token for a user.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.UserID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}
	if normalized.CreatedAt.IsZero() {
		normalized.CreatedAt = time.Now().UTC()
	}
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = normalized.CreatedAt
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.UserID,
		normalized.Token,
		normalized.Fingerprint,
		formatTime(normalized.ExpiresAt),
		nullableTime(normalized.RevokedAt),
		formatTime(normalized.CreatedAt),
		formatTime(normalized.UpdatedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return cloneSession(normalized), nil
}

// GetSession retrieves a session by its token value.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, normalizedToken)
	session, err := scanSession(row)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// UpdateSession updates the mutable fields of an existing session.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}

	var updated persistence.Session
	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := scanSession(r.helper.QueryRowOn(ctx, tx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, normalized.ID))
		if err != nil {
			return r.mapper.MapError(err)
		}

		normalized.UserID = current.UserID
		normalized.CreatedAt = current.CreatedAt
		if normalized.UpdatedAt.IsZero() {
			normalized.UpdatedAt = time.Now().UTC()
		}

		result, err := r.helper.ExecOn(ctx, tx, `
			UPDATE sessions
			SET token = ?, fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
			WHERE id = ?
		`,
			normalized.Token,
			normalized.Fingerprint,
			formatTime(normalized.ExpiresAt),
			nullableTime(normalized.RevokedAt),
			formatTime(normalized.UpdatedAt),
			normalized.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		updated = cloneSession(normalized)
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return updated, nil
}

// RevokeSession marks a session as revoked based on its token value.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	revokedAtUTC := revokedAt.UTC()

	var revoked persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		session, err := scanSession(r.helper.QueryRowOn(ctx, tx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, normalizedToken))
		if err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecOn(ctx, tx, `
			UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ?
		`, formatTime(revokedAtUTC), formatTime(revokedAtUTC), normalizedToken)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		session.RevokedAt = &revokedAtUTC
		session.UpdatedAt = revokedAtUTC
		revoked = cloneSession(session)
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return revoked, nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? AND expires_at != '0001-01-01T00:00:00Z'
	`, formatTime(reference))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session                         persistence.Session
		expiresAt, createdAt, updatedAt string
		revokedAt                       sql.NullString
	)
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&expiresAt,
		&revokedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, err
	}

	var err error
	if session.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Session{}, err
	}
	if revokedAt.Valid {
		t, err := parseTime("revoked_at", revokedAt.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &t
	}
	return session, nil
}

func normalizeSession(session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	if session.RevokedAt != nil {
		revoked := session.RevokedAt.UTC()
		session.RevokedAt = &revoked
	}
	return session, nil
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	if session.RevokedAt != nil {
		revoked := *session.RevokedAt
		clone.RevokedAt = &revoked
	}
	return clone
}
