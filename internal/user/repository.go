package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/db"
)

// Repository persists profile updates for existing accounts.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) GetByID(ctx context.Context, id string) (auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, full_name, phone, role,
			is_active, is_verified, failed_login_attempts, locked_until, last_login_at,
			created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	var u auth.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Phone,
		&role, &u.IsActive, &u.IsVerified, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = auth.Role(role)

	return u, nil
}

// UpdateProfile changes only the fields present in the patch; nil pointers
// leave the stored value alone.
func (r *Repository) UpdateProfile(ctx context.Context, id string, fullName, phone *string) (auth.User, error) {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
			phone = COALESCE($3, phone),
			updated_at = $4
		WHERE id = $1
	`, id, fullName, phone, time.Now().UTC())
	if err != nil {
		return auth.User{}, fmt.Errorf("update profile: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}

	return nil
}

// Delete removes the account; sessions, devices and command logs cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}

	return nil
}
