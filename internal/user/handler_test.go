package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/observability"
)

func newTestUserServer(t *testing.T) (http.Handler, pgxmock.PgxPoolIface, auth.PasswordPolicy, string) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	issuer, err := auth.NewTokenIssuer("test-signing-secret", "HS256", 30*time.Minute, time.Hour)
	require.NoError(t, err)
	token, err := issuer.IssueAccess("user-1", nil)
	require.NoError(t, err)

	policy := auth.NewPasswordPolicy(bcrypt.MinCost)
	handler := NewHandler(NewRepository(mock), policy, observability.NewLogger())

	mux := http.NewServeMux()
	handler.Register(mux)
	return auth.RequireAuth(issuer, mux), mock, policy, token
}

func userRows(t *testing.T, policy auth.PasswordPolicy, password string) *pgxmock.Rows {
	t.Helper()

	hash, err := policy.Hash(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	return pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "full_name",
		"phone", "role", "is_active", "is_verified", "failed_login_attempts", "locked_until",
		"last_login_at", "created_at", "updated_at"}).
		AddRow("user-1", "alice@example.com", "alice", hash, nil,
			nil, "user", true, false, 0, nil, nil, now, now)
}

func postPasswordChange(t *testing.T, server http.Handler, token string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/users/me/password", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestChangePasswordTrimsInput(t *testing.T) {
	server, mock, policy, token := newTestUserServer(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(userRows(t, policy, "Abcdef1!"))
	mock.ExpectExec("UPDATE users").
		WithArgs("user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	// Padding around either password matches the stored trimmed credential.
	rec := postPasswordChange(t, server, token, map[string]any{
		"current_password": "  Abcdef1!  ",
		"new_password":     "  Zyxwvu2@  ",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	server, mock, policy, token := newTestUserServer(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(userRows(t, policy, "Abcdef1!"))

	rec := postPasswordChange(t, server, token, map[string]any{
		"current_password": "NotItAtAll1!",
		"new_password":     "Zyxwvu2@",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "current password does not match")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordRejectsWeakReplacement(t *testing.T) {
	server, mock, policy, token := newTestUserServer(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(userRows(t, policy, "Abcdef1!"))

	rec := postPasswordChange(t, server, token, map[string]any{
		"current_password": "Abcdef1!",
		"new_password":     "weak",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 8 characters")
	assert.NoError(t, mock.ExpectationsWereMet())
}
