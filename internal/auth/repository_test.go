package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewRepository(mock), mock
}

func TestCreateUserMapsDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "alice@example.com", "alice", "hash", pgxmock.AnyArg(),
			pgxmock.AnyArg(), "user", true, false, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "users_email_key",
		})

	_, err := repo.CreateUser(context.Background(), User{
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "hash",
		IsActive:     true,
	})

	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsDuplicateUsername(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "alice@example.com", "alice", "hash", pgxmock.AnyArg(),
			pgxmock.AnyArg(), "user", true, false, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "users_username_key",
		})

	_, err := repo.CreateUser(context.Background(), User{
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "hash",
		IsActive:     true,
	})

	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureLocksAtThreshold(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	lockUntil := now.Add(30 * time.Minute)

	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", 5, lockUntil, now).
		WillReturnRows(pgxmock.NewRows([]string{"failed_login_attempts", "locked_until"}).
			AddRow(5, &lockUntil))

	failed, lockedUntil, err := repo.RecordLoginFailure(context.Background(), "user-1", 5, lockUntil, now)
	require.NoError(t, err)

	assert.Equal(t, 5, failed)
	require.NotNil(t, lockedUntil)
	assert.Equal(t, lockUntil, *lockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureBelowThreshold(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	lockUntil := now.Add(30 * time.Minute)

	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", 5, lockUntil, now).
		WillReturnRows(pgxmock.NewRows([]string{"failed_login_attempts", "locked_until"}).
			AddRow(2, nil))

	failed, lockedUntil, err := repo.RecordLoginFailure(context.Background(), "user-1", 5, lockUntil, now)
	require.NoError(t, err)

	assert.Equal(t, 2, failed)
	assert.Nil(t, lockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeSessionIsIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE sessions").
		WithArgs("unknown-token", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.RevokeSession(context.Background(), "unknown-token", now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionCommitsReplacement(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	expiry := now.Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id, expires_at").
		WithArgs("old-token").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "expires_at", "client_ip", "user_agent", "is_active"}).
			AddRow("session-1", "user-1", now.Add(time.Hour), "1.2.3.4", "test-agent", true))
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), "user-1", "new-token", now, expiry, "1.2.3.4", "test-agent").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE sessions").
		WithArgs("session-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	next, err := repo.RotateSession(context.Background(), "old-token", "new-token", expiry, now)
	require.NoError(t, err)

	assert.Equal(t, "user-1", next.UserID)
	assert.Equal(t, "new-token", next.RefreshToken)
	assert.Equal(t, "1.2.3.4", next.ClientIP)
	assert.Equal(t, "test-agent", next.UserAgent)
	assert.True(t, next.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionRejectsInactiveRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id, expires_at").
		WithArgs("old-token").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "expires_at", "client_ip", "user_agent", "is_active"}).
			AddRow("session-1", "user-1", now.Add(time.Hour), "1.2.3.4", "test-agent", false))
	mock.ExpectRollback()

	_, err := repo.RotateSession(context.Background(), "old-token", "new-token", now.Add(time.Hour), now)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionRejectsExpiredRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id, expires_at").
		WithArgs("old-token").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "expires_at", "client_ip", "user_agent", "is_active"}).
			AddRow("session-1", "user-1", now.Add(-time.Minute), "1.2.3.4", "test-agent", true))
	mock.ExpectRollback()

	_, err := repo.RotateSession(context.Background(), "old-token", "new-token", now.Add(time.Hour), now)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveSessionMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WithArgs("missing-token").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveSession(context.Background(), "missing-token")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}
