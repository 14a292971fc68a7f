package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"voicecontrol/internal/db"
)

const userColumns = `id, email, username, password_hash, full_name, phone, role,
	is_active, is_verified, failed_login_attempts, locked_until, last_login_at,
	created_at, updated_at`

const sessionColumns = `id, user_id, refresh_token, issued_at, expires_at,
	client_ip, user_agent, is_active, revoked_at`

// Repository persists accounts and sessions in Postgres.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	u.ID = id.String()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, full_name, phone, role,
			is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Phone, string(u.Role),
		u.IsActive, u.IsVerified, now)
	if err != nil {
		if dup := duplicateUserError(err); dup != nil {
			return User{}, dup
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByIdentifier matches either email or username; both columns are
// unique so at most one row matches.
func (r *Repository) GetUserByIdentifier(ctx context.Context, identifier string) (User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 OR username = $1
	`, identifier)
	return scanUser(row)
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// RecordLoginFailure increments the failure counter and, when the new count
// reaches the threshold, sets the lockout expiry, all in one statement so
// concurrent failures never lose an increment.
func (r *Repository) RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil, now time.Time) (int, *time.Time, error) {
	var failed int
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE locked_until
			END,
			updated_at = $4
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`, userID, threshold, lockUntil.UTC(), now.UTC()).Scan(&failed, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, ErrUserNotFound
		}
		return 0, nil, fmt.Errorf("record login failure: %w", err)
	}

	return failed, lockedUntil, nil
}

func (r *Repository) RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
			locked_until = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}

	return nil
}

func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	s.ID = id.String()
	s.IsActive = true

	_, err = r.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, issued_at, expires_at,
			client_ip, user_agent, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`, s.ID, s.UserID, s.RefreshToken, s.IssuedAt.UTC(), s.ExpiresAt.UTC(), s.ClientIP, s.UserAgent)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	return s, nil
}

// FindActiveSession returns ErrSessionExpired when no active row holds the
// token, whether it never existed, was revoked, or was rotated away.
func (r *Repository) FindActiveSession(ctx context.Context, refreshToken string) (Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE refresh_token = $1 AND is_active = TRUE
	`, refreshToken)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, err
	}

	return s, nil
}

// RevokeSession deactivates the session holding the token. Revoking twice,
// or revoking a token with no session, is a no-op.
func (r *Repository) RevokeSession(ctx context.Context, refreshToken string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE,
			revoked_at = COALESCE(revoked_at, $2)
		WHERE refresh_token = $1
	`, refreshToken, now.UTC())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// RotateSession revokes the session holding oldToken and inserts its
// replacement in one transaction. The old row is locked FOR UPDATE, so of
// two concurrent rotations of the same token exactly one commits; the loser
// observes an inactive row and gets ErrSessionExpired. Client IP and user
// agent carry forward from the old session.
func (r *Repository) RotateSession(ctx context.Context, oldToken, newToken string, newExpiry, now time.Time) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("begin session rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old Session
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, expires_at, client_ip, user_agent, is_active
		FROM sessions
		WHERE refresh_token = $1
		FOR UPDATE
	`, oldToken).Scan(&old.ID, &old.UserID, &old.ExpiresAt, &old.ClientIP, &old.UserAgent, &old.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, fmt.Errorf("read session for rotation: %w", err)
	}
	if !old.IsActive || now.After(old.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}

	next := Session{
		ID:           id.String(),
		UserID:       old.UserID,
		RefreshToken: newToken,
		IssuedAt:     now.UTC(),
		ExpiresAt:    newExpiry.UTC(),
		ClientIP:     old.ClientIP,
		UserAgent:    old.UserAgent,
		IsActive:     true,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, issued_at, expires_at,
			client_ip, user_agent, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`, next.ID, next.UserID, next.RefreshToken, next.IssuedAt, next.ExpiresAt, next.ClientIP, next.UserAgent)
	if err != nil {
		return Session{}, fmt.Errorf("insert rotated session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $2
		WHERE id = $1
	`, old.ID, now.UTC())
	if err != nil {
		return Session{}, fmt.Errorf("revoke rotated session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("commit session rotation: %w", err)
	}

	return next, nil
}

// DeleteStaleSessions removes expired sessions and sessions revoked before
// the retention cutoff, in bounded batches.
func (r *Repository) DeleteStaleSessions(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := r.db.Exec(ctx, `
		WITH stale AS (
			SELECT id
			FROM sessions
			WHERE expires_at < NOW() OR (revoked_at IS NOT NULL AND revoked_at < $1)
			ORDER BY issued_at ASC
			LIMIT $2
		)
		DELETE FROM sessions s
		USING stale
		WHERE s.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}

func duplicateUserError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}

	switch pgErr.ConstraintName {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_username_key":
		return ErrDuplicateUsername
	default:
		return nil
	}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Phone,
		&role, &u.IsActive, &u.IsVerified, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = Role(role)

	return u, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.IssuedAt, &s.ExpiresAt,
		&s.ClientIP, &s.UserAgent, &s.IsActive, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	return s, nil
}
