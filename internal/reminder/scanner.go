package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/jobtrack/internal/store"
)

// Enqueuer hands an interview to the dispatch pipeline.
type Enqueuer interface {
	EnqueueDispatch(interviewID int64) error
}

// Scanner finds interviews whose reminder is due today and enqueues them.
type Scanner struct {
	prefs      *store.PreferenceStore
	interviews *store.InterviewStore
	enqueuer   Enqueuer
	loc        *time.Location
	logger     *slog.Logger
}

// NewScanner returns a scanner that computes calendar days in loc.
func NewScanner(prefs *store.PreferenceStore, interviews *store.InterviewStore, enqueuer Enqueuer, loc *time.Location, logger *slog.Logger) *Scanner {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		prefs:      prefs,
		interviews: interviews,
		enqueuer:   enqueuer,
		loc:        loc,
		logger:     logger,
	}
}

// Scan enqueues a dispatch for every interview that falls on its owner's
// reminder day relative to now, and returns the enqueued ids. Failure to
// list preferences aborts the scan. Failures for a single user or interview
// are logged, collected into the returned error, and the scan moves on.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]int64, error) {
	prefs, err := s.prefs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled preferences: %w", err)
	}

	local := now.In(s.loc)
	var enqueued []int64
	var errs []error

	for _, p := range prefs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		from, to := DayBounds(TargetDate(local, p.LeadDays))
		due, err := s.interviews.ListDueForReminder(ctx, p.UserID, from, to)
		if err != nil {
			s.logger.Warn("scan user failed", "user_id", p.UserID, "error", err)
			errs = append(errs, fmt.Errorf("scan user %d: %w", p.UserID, err))
			continue
		}

		for _, iv := range due {
			if err := s.enqueuer.EnqueueDispatch(iv.ID); err != nil {
				s.logger.Warn("enqueue reminder failed", "interview_id", iv.ID, "user_id", p.UserID, "error", err)
				errs = append(errs, fmt.Errorf("enqueue interview %d: %w", iv.ID, err))
				continue
			}
			enqueued = append(enqueued, iv.ID)
			s.logger.Info("queued reminder", "interview_id", iv.ID, "user_id", p.UserID,
				"interview_type", iv.TypeLabel(), "lead_days", p.LeadDays)
		}
	}

	s.logger.Info("reminder scan complete", "users", len(prefs), "enqueued", len(enqueued), "errors", len(errs))
	return enqueued, errors.Join(errs...)
}
