package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/jobtrack/internal/store"
	"github.com/dukerupert/jobtrack/internal/websocket"
)

type NotificationHandler struct {
	users    *store.UserStore
	prefs    *store.PreferenceStore
	enqueuer Enqueuer
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewNotificationHandler(us *store.UserStore, ps *store.PreferenceStore, enq Enqueuer, hub *websocket.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{users: us, prefs: ps, enqueuer: enq, hub: hub, logger: logger}
}

func (h *NotificationHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// preferenceRequest carries a partial update; absent fields keep their value.
type preferenceRequest struct {
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	LeadDays             *int    `json:"lead_days"`
	PreferredTime        *string `json:"preferred_time"`
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	pref, err := h.prefs.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get preference", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preference")
		return
	}
	if pref == nil {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	pref, err := h.prefs.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get preference", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preference")
		return
	}
	if pref == nil {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}

	if req.NotificationsEnabled != nil {
		pref.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.LeadDays != nil {
		pref.LeadDays = *req.LeadDays
	}
	if req.PreferredTime != nil {
		pref.PreferredTime = strings.TrimSpace(*req.PreferredTime)
	}

	updated, err := h.prefs.Update(r.Context(), *pref)
	if errors.Is(err, store.ErrInvalidPreference) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to update preference", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update preference")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}

	h.broadcast(websocket.NewMessage("preference.updated", "", updated))
	writeJSON(w, http.StatusOK, updated)
}

// SendTest queues a test email to the user's address.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.enqueuer.EnqueueTestEmail(user.Email); err != nil {
		writeQueueError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "email": user.Email})
}
