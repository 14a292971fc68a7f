package device

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"voicecontrol/internal/auth"
	"voicecontrol/internal/observability"
)

// Handler exposes the authenticated device CRUD and control endpoints.
type Handler struct {
	repo       *Repository
	controller *Controller
	logger     *observability.Logger
}

func NewHandler(repo *Repository, controller *Controller, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, controller: controller, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /devices", h.list)
	mux.HandleFunc("POST /devices", h.create)
	mux.HandleFunc("GET /devices/{deviceID}", h.get)
	mux.HandleFunc("PATCH /devices/{deviceID}", h.update)
	mux.HandleFunc("DELETE /devices/{deviceID}", h.delete)
	mux.HandleFunc("POST /devices/{deviceID}/control", h.control)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	devices, err := h.repo.ListByOwner(r.Context(), userID)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var in CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	in.DeviceID = strings.TrimSpace(in.DeviceID)
	in.Name = strings.TrimSpace(in.Name)
	in.DeviceType = strings.TrimSpace(in.DeviceType)
	if in.DeviceID == "" || in.Name == "" || in.DeviceType == "" {
		writeError(w, http.StatusBadRequest, "device_id, name and device_type are required")
		return
	}

	d, err := h.repo.Create(r.Context(), userID, in)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	d, err := h.repo.GetByDeviceID(r.Context(), userID, r.PathValue("deviceID"))
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var in UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	if in.Status != nil {
		switch *in.Status {
		case StatusOnline, StatusOffline, StatusError:
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	d, err := h.repo.Update(r.Context(), userID, r.PathValue("deviceID"), in)
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := h.repo.Delete(r.Context(), userID, r.PathValue("deviceID")); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type controlRequest struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value"`
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req controlRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.controller.Control(r.Context(), userID, r.PathValue("deviceID"), req.Action, req.Value)
	if err != nil {
		if errors.Is(err, ErrUnsupportedAction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, ErrDuplicate):
		writeError(w, http.StatusBadRequest, "device id already registered")
	default:
		sentry.CaptureException(err)
		h.logger.Error("device_request_failed", map[string]any{"error": err.Error()})
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
