package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/jobtrack/internal/model"
	"github.com/dukerupert/jobtrack/internal/store"
)

const (
	defaultUpcomingDays = 7
	maxUpcomingDays     = 90
)

// InterviewHandler serves the read-only upcoming and needs-review lists.
type InterviewHandler struct {
	users      *store.UserStore
	interviews *store.InterviewStore
	now        func() time.Time
	logger     *slog.Logger
}

func NewInterviewHandler(us *store.UserStore, is *store.InterviewStore, now func() time.Time, logger *slog.Logger) *InterviewHandler {
	if now == nil {
		now = time.Now
	}
	return &InterviewHandler{users: us, interviews: is, now: now, logger: logger}
}

type interviewList struct {
	Count      int                       `json:"count"`
	Interviews []model.InterviewOverview `json:"interviews"`
}

func newInterviewList(items []model.InterviewOverview) interviewList {
	if items == nil {
		items = []model.InterviewOverview{}
	}
	return interviewList{Count: len(items), Interviews: items}
}

// Upcoming lists pending interviews in the next ?days= days (default 7).
func (h *InterviewHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	days := defaultUpcomingDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUpcomingDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}

	now := h.now()
	items, err := h.interviews.ListUpcoming(r.Context(), id, now, now.AddDate(0, 0, days))
	if err != nil {
		h.logger.Error("failed to list upcoming interviews", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	writeJSON(w, http.StatusOK, newInterviewList(items))
}

// NeedsReview lists interviews whose time has passed but whose outcome was
// never recorded.
func (h *InterviewHandler) NeedsReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	items, err := h.interviews.ListNeedsReview(r.Context(), id, h.now())
	if err != nil {
		h.logger.Error("failed to list interviews needing review", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	writeJSON(w, http.StatusOK, newInterviewList(items))
}

func (h *InterviewHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return 0, false
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return 0, false
	}
	return id, true
}
