package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/observability"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,20}$`)

type profileResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FullName    *string    `json:"full_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Handler exposes the authenticated /users/me endpoints.
type Handler struct {
	repo      *Repository
	passwords auth.PasswordPolicy
	logger    *observability.Logger
}

func NewHandler(repo *Repository, passwords auth.PasswordPolicy, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, passwords: passwords, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users/me", h.getProfile)
	mux.HandleFunc("PATCH /users/me", h.updateProfile)
	mux.HandleFunc("POST /users/me/password", h.changePassword)
	mux.HandleFunc("DELETE /users/me", h.deleteAccount)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	u, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfile(u))
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Phone != nil && *req.Phone != "" && !phoneRegex.MatchString(*req.Phone) {
		writeError(w, http.StatusBadRequest, "invalid phone number")
		return
	}

	u, err := h.repo.UpdateProfile(r.Context(), userID, req.FullName, req.Phone)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfile(u))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Passwords are trimmed everywhere they are hashed or verified.
	current := strings.TrimSpace(req.CurrentPassword)
	next := strings.TrimSpace(req.NewPassword)

	u, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	if !h.passwords.Verify(current, u.PasswordHash) {
		writeError(w, http.StatusForbidden, "current password does not match")
		return
	}

	if ok, violations := h.passwords.Strength(next); !ok {
		writeError(w, http.StatusBadRequest, violations[0])
		return
	}

	hash, err := h.passwords.Hash(next)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	if err := h.repo.UpdatePassword(r.Context(), userID, hash); err != nil {
		h.writeUserError(w, err)
		return
	}

	h.logger.Info("password_changed", map[string]any{"user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := h.repo.Delete(r.Context(), userID); err != nil {
		h.writeUserError(w, err)
		return
	}

	h.logger.Info("account_deleted", map[string]any{"user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeUserError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	sentry.CaptureException(err)
	h.logger.Error("user_request_failed", map[string]any{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func toProfile(u auth.User) profileResponse {
	return profileResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		Phone:       u.Phone,
		Role:        string(u.Role),
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
