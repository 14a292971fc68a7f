package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"voicecontrol/internal/observability"
)

// SessionCleaner deletes expired and long-revoked sessions.
type SessionCleaner interface {
	DeleteStaleSessions(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// LogCleaner deletes command logs past their retention.
type LogCleaner interface {
	DeleteStaleLogs(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// CleanupHandler runs retention cleanup when called by the platform cron.
// Requests must carry the shared secret; when no secret is configured the
// endpoint does not exist.
type CleanupHandler struct {
	sessions    SessionCleaner
	logs        LogCleaner
	secret      string
	sessionKeep time.Duration
	logKeep     time.Duration
	batchSize   int
	logger      *observability.Logger
}

func NewCleanupHandler(sessions SessionCleaner, logs LogCleaner, secret string, sessionKeep, logKeep time.Duration, batchSize int, logger *observability.Logger) *CleanupHandler {
	return &CleanupHandler{
		sessions:    sessions,
		logs:        logs,
		secret:      secret,
		sessionKeep: sessionKeep,
		logKeep:     logKeep,
		batchSize:   batchSize,
		logger:      logger,
	}
}

func (h *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.NotFound(w, r)
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token != h.secret {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	sessionsDeleted, err := h.sessions.DeleteStaleSessions(r.Context(), h.sessionKeep, h.batchSize)
	if err != nil {
		h.fail(w, "session cleanup failed", err)
		return
	}

	logsDeleted, err := h.logs.DeleteStaleLogs(r.Context(), h.logKeep, h.batchSize)
	if err != nil {
		h.fail(w, "command log cleanup failed", err)
		return
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"sessions_deleted": sessionsDeleted,
		"logs_deleted":     logsDeleted,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessions_deleted": sessionsDeleted,
		"logs_deleted":     logsDeleted,
	})
}

func (h *CleanupHandler) fail(w http.ResponseWriter, message string, err error) {
	sentry.CaptureException(err)
	h.logger.Error("cleanup_failed", map[string]any{"error": err.Error()})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
