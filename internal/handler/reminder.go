package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/jobtrack/internal/model"
	"github.com/dukerupert/jobtrack/internal/queue"
	"github.com/dukerupert/jobtrack/internal/store"
)

// ScanRunner runs a reminder scan on demand.
type ScanRunner interface {
	RunNow(ctx context.Context) ([]int64, error)
}

// Enqueuer queues reminder and test email jobs.
type Enqueuer interface {
	EnqueueDispatch(interviewID int64) error
	EnqueueTestEmail(to string) error
}

type QueueStatus interface {
	Snapshot() queue.Snapshot
}

type ReminderHandler struct {
	scans      ScanRunner
	enqueuer   Enqueuer
	queue      QueueStatus
	interviews *store.InterviewStore
	deliveries *store.DeliveryStore
	logger     *slog.Logger
}

func NewReminderHandler(scans ScanRunner, enq Enqueuer, q QueueStatus, is *store.InterviewStore, ds *store.DeliveryStore, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{scans: scans, enqueuer: enq, queue: q, interviews: is, deliveries: ds, logger: logger}
}

// Scan runs the reminder scan immediately. Partial failures still report
// what was enqueued.
func (h *ReminderHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ids, err := h.scans.RunNow(r.Context())
	if ids == nil {
		ids = []int64{}
	}
	if err != nil {
		h.logger.Error("manual reminder scan failed", "enqueued", len(ids), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"enqueued": ids,
			"error":    "scan failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enqueued": ids})
}

// Remind queues a reminder for one interview regardless of its date.
func (h *ReminderHandler) Remind(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	iv, err := h.interviews.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get interview", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get interview")
		return
	}
	if iv == nil {
		writeError(w, http.StatusNotFound, "interview not found")
		return
	}
	if iv.ReminderSent {
		writeJSON(w, http.StatusOK, map[string]any{"interview_id": id, "status": "already_sent"})
		return
	}

	if err := h.enqueuer.EnqueueDispatch(id); err != nil {
		writeQueueError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"interview_id": id, "status": "queued"})
}

func (h *ReminderHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deliveries, err := h.deliveries.ListByInterview(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list deliveries", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []model.ReminderDelivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func (h *ReminderHandler) Queue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Snapshot())
}

func writeQueueError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "queue is full")
	case errors.Is(err, queue.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "queue is not running")
	default:
		logger.Error("failed to enqueue job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
	}
}
