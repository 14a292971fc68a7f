package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/device"
	"voicecontrol/internal/observability"
)

// Handler exposes the authenticated command endpoints: text in, device
// action out, everything logged.
type Handler struct {
	repo       *Repository
	devices    *device.Repository
	controller *device.Controller
	logger     *observability.Logger
}

func NewHandler(repo *Repository, devices *device.Repository, controller *device.Controller, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, devices: devices, controller: controller, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /commands", h.process)
	mux.HandleFunc("GET /commands/logs", h.listLogs)
}

type processRequest struct {
	Text string `json:"text"`
}

type processResponse struct {
	Success    bool           `json:"success"`
	Response   string         `json:"response"`
	Action     string         `json:"action,omitempty"`
	DeviceType string         `json:"device_type,omitempty"`
	Location   string         `json:"location,omitempty"`
	Value      *float64       `json:"value,omitempty"`
	State      map[string]any `json:"state,omitempty"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req processRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	text := Sanitize(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "command text is required")
		return
	}

	started := time.Now()
	parsed := Parse(text)

	entry := Log{
		UserID:     userID,
		RawText:    text,
		Action:     string(parsed.Action),
		DeviceType: parsed.DeviceType,
		Location:   parsed.Location,
		Value:      parsed.Value,
	}

	if !parsed.Valid() {
		observability.CommandsProcessed.WithLabelValues("unrecognized").Inc()
		entry.Response = "could not understand the command"
		h.finishLog(r.Context(), entry, started)
		writeJSON(w, http.StatusOK, processResponse{
			Success:  false,
			Response: entry.Response,
		})
		return
	}

	resolved, err := h.devices.FindByTypeAndRoom(r.Context(), userID, parsed.DeviceType, parsed.Location)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			observability.CommandsProcessed.WithLabelValues("no_device").Inc()
			entry.Response = "no matching device found"
			h.finishLog(r.Context(), entry, started)
			writeJSON(w, http.StatusOK, processResponse{
				Success:    false,
				Response:   entry.Response,
				Action:     entry.Action,
				DeviceType: entry.DeviceType,
				Location:   entry.Location,
				Value:      entry.Value,
			})
			return
		}
		h.writeCommandError(w, err)
		return
	}

	controlled, err := h.controller.Control(r.Context(), userID, resolved.DeviceID, string(parsed.Action), parsed.Value)
	if err != nil {
		observability.CommandsProcessed.WithLabelValues("failed").Inc()
		entry.ErrorMessage = err.Error()
		entry.Response = "device did not accept the command"
		h.finishLog(r.Context(), entry, started)
		h.writeCommandError(w, err)
		return
	}

	observability.CommandsProcessed.WithLabelValues("executed").Inc()
	entry.Success = true
	entry.Response = resolved.Name + " updated"
	h.finishLog(r.Context(), entry, started)

	writeJSON(w, http.StatusOK, processResponse{
		Success:    true,
		Response:   entry.Response,
		Action:     entry.Action,
		DeviceType: entry.DeviceType,
		Location:   entry.Location,
		Value:      entry.Value,
		State:      controlled.State,
	})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.repo.ListRecentByUser(r.Context(), userID, limit)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// finishLog stamps the processing time and stores the entry. Log failures
// never fail the request.
func (h *Handler) finishLog(ctx context.Context, entry Log, started time.Time) {
	entry.ProcessingMS = time.Since(started).Milliseconds()
	if _, err := h.repo.InsertLog(ctx, entry); err != nil {
		h.logger.Warn("command_log_failed", map[string]any{"error": err.Error()})
	}
}

func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrUnsupportedAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, device.ErrNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	default:
		sentry.CaptureException(err)
		h.logger.Error("command_request_failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal server error")
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
