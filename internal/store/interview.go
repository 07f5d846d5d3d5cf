package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/jobtrack/internal/model"
)

// ErrInvalidInterview is returned when an interview fails validation.
var ErrInvalidInterview = errors.New("invalid interview")

type InterviewStore struct {
	db *sql.DB
}

func NewInterviewStore(db *sql.DB) *InterviewStore {
	return &InterviewStore{db: db}
}

func scanInterview(scanner interface{ Scan(...any) error }) (*model.Interview, error) {
	var i model.Interview
	var scheduledAt sql.NullTime
	err := scanner.Scan(&i.ID, &i.JobApplicationID, &i.InterviewType, &i.Location, &i.InterviewerName,
		&scheduledAt, &i.Outcome, &i.ReminderSent, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time.UTC()
		i.ScheduledAt = &t
	}
	return &i, nil
}

const interviewCols = `id, job_application_id, interview_type, location, interviewer_name, scheduled_at, outcome, reminder_sent, created_at, updated_at`

func (s *InterviewStore) Create(ctx context.Context, i model.Interview) (*model.Interview, error) {
	if i.InterviewType == "" {
		i.InterviewType = "phone_screening"
	}
	if i.Location == "" {
		i.Location = model.LocationRemote
	}
	if i.Outcome == "" {
		i.Outcome = model.OutcomePending
	}
	if !model.ValidInterviewType(i.InterviewType) {
		return nil, fmt.Errorf("%w: unknown interview type %q", ErrInvalidInterview, i.InterviewType)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO interviews (job_application_id, interview_type, location, interviewer_name, scheduled_at, outcome)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		i.JobApplicationID, i.InterviewType, i.Location, i.InterviewerName, utcPtr(i.ScheduledAt), i.Outcome,
	)
	if err != nil {
		return nil, fmt.Errorf("insert interview: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *InterviewStore) GetByID(ctx context.Context, id int64) (*model.Interview, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interviewCols+` FROM interviews WHERE id = ?`, id)
	i, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}
	return i, nil
}

func (s *InterviewStore) SetOutcome(ctx context.Context, id int64, outcome string) (*model.Interview, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE interviews SET outcome = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		outcome, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set interview outcome: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ListDueForReminder returns a user's interviews scheduled in [from, to)
// that still need a reminder: pending outcome, reminder not sent, and the
// owning application still in progress.
func (s *InterviewStore) ListDueForReminder(ctx context.Context, userID int64, from, to time.Time) ([]model.Interview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.job_application_id, i.interview_type, i.location, i.interviewer_name,
		        i.scheduled_at, i.outcome, i.reminder_sent, i.created_at, i.updated_at
		 FROM interviews i
		 JOIN job_applications a ON a.id = i.job_application_id
		 WHERE a.user_id = ?
		   AND a.status = ?
		   AND i.outcome = ?
		   AND i.reminder_sent = 0
		   AND i.scheduled_at IS NOT NULL
		   AND i.scheduled_at >= ? AND i.scheduled_at < ?
		 ORDER BY i.scheduled_at, i.id`,
		userID, model.StatusInProgress, model.OutcomePending, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list interviews due for reminder: %w", err)
	}
	defer rows.Close()
	return scanInterviews(rows)
}

// ListUpcoming returns a user's pending interviews scheduled in [from, to]
// whose application is still in progress, soonest first. Unlike
// ListDueForReminder it includes interviews already reminded.
func (s *InterviewStore) ListUpcoming(ctx context.Context, userID int64, from, to time.Time) ([]model.InterviewOverview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overviewCols+`
		 FROM interviews i
		 JOIN job_applications a ON a.id = i.job_application_id
		 WHERE a.user_id = ?
		   AND a.status = ?
		   AND i.outcome = ?
		   AND i.scheduled_at IS NOT NULL
		   AND i.scheduled_at >= ? AND i.scheduled_at <= ?
		 ORDER BY i.scheduled_at, i.id`,
		userID, model.StatusInProgress, model.OutcomePending, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming interviews: %w", err)
	}
	defer rows.Close()
	return scanOverviews(rows)
}

// ListNeedsReview returns a user's interviews scheduled before cutoff that
// still have a pending outcome while the application is in progress, most
// recent first. Reminders that exhausted their retries surface here.
func (s *InterviewStore) ListNeedsReview(ctx context.Context, userID int64, before time.Time) ([]model.InterviewOverview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overviewCols+`
		 FROM interviews i
		 JOIN job_applications a ON a.id = i.job_application_id
		 WHERE a.user_id = ?
		   AND a.status = ?
		   AND i.outcome = ?
		   AND i.scheduled_at IS NOT NULL
		   AND i.scheduled_at < ?
		 ORDER BY i.scheduled_at DESC, i.id DESC`,
		userID, model.StatusInProgress, model.OutcomePending, before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list interviews needing review: %w", err)
	}
	defer rows.Close()
	return scanOverviews(rows)
}

// MarkReminderSent flips reminder_sent from false to true. It reports whether
// this call performed the transition; false means the flag was already set
// or the interview no longer exists.
func (s *InterviewStore) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE interviews SET reminder_sent = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND reminder_sent = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder sent rows: %w", err)
	}
	return n == 1, nil
}

// GetReminderTarget loads an interview with its application, owner and
// preference in one query. It returns nil, nil when the interview is gone.
func (s *InterviewStore) GetReminderTarget(ctx context.Context, interviewID int64) (*model.ReminderTarget, error) {
	var t model.ReminderTarget
	var scheduledAt, appliedOn, prefUpdated sql.NullTime
	var prefUser sql.NullInt64
	var prefEnabled sql.NullBool
	var prefLead sql.NullInt64
	var prefTime sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.job_application_id, i.interview_type, i.location, i.interviewer_name,
		        i.scheduled_at, i.outcome, i.reminder_sent, i.created_at, i.updated_at,
		        a.id, a.user_id, a.company, a.position, a.status, a.applied_on, a.job_url, a.notes,
		        a.created_at, a.updated_at,
		        u.id, u.email, u.name, u.created_at, u.updated_at,
		        p.user_id, p.notifications_enabled, p.lead_days, p.preferred_time, p.updated_at
		 FROM interviews i
		 JOIN job_applications a ON a.id = i.job_application_id
		 JOIN users u ON u.id = a.user_id
		 LEFT JOIN notification_preferences p ON p.user_id = u.id
		 WHERE i.id = ?`, interviewID,
	).Scan(
		&t.Interview.ID, &t.Interview.JobApplicationID, &t.Interview.InterviewType, &t.Interview.Location,
		&t.Interview.InterviewerName, &scheduledAt, &t.Interview.Outcome, &t.Interview.ReminderSent,
		&t.Interview.CreatedAt, &t.Interview.UpdatedAt,
		&t.Application.ID, &t.Application.UserID, &t.Application.Company, &t.Application.Position,
		&t.Application.Status, &appliedOn, &t.Application.JobURL, &t.Application.Notes,
		&t.Application.CreatedAt, &t.Application.UpdatedAt,
		&t.User.ID, &t.User.Email, &t.User.Name, &t.User.CreatedAt, &t.User.UpdatedAt,
		&prefUser, &prefEnabled, &prefLead, &prefTime, &prefUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder target: %w", err)
	}

	if scheduledAt.Valid {
		st := scheduledAt.Time.UTC()
		t.Interview.ScheduledAt = &st
	}
	if appliedOn.Valid {
		at := appliedOn.Time
		t.Application.AppliedOn = &at
	}
	if prefUser.Valid {
		t.Preference = &model.NotificationPreference{
			UserID:               prefUser.Int64,
			NotificationsEnabled: prefEnabled.Bool,
			LeadDays:             int(prefLead.Int64),
			PreferredTime:        prefTime.String,
			UpdatedAt:            prefUpdated.Time,
		}
	}
	return &t, nil
}

func scanInterviews(rows *sql.Rows) ([]model.Interview, error) {
	var interviews []model.Interview
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, *i)
	}
	return interviews, rows.Err()
}

const overviewCols = `i.id, i.job_application_id, i.interview_type, i.location, i.interviewer_name,
		        i.scheduled_at, i.outcome, i.reminder_sent, i.created_at, i.updated_at,
		        a.company, a.position`

func scanOverviews(rows *sql.Rows) ([]model.InterviewOverview, error) {
	var out []model.InterviewOverview
	for rows.Next() {
		var o model.InterviewOverview
		var scheduledAt sql.NullTime
		err := rows.Scan(&o.ID, &o.JobApplicationID, &o.InterviewType, &o.Location, &o.InterviewerName,
			&scheduledAt, &o.Outcome, &o.ReminderSent, &o.CreatedAt, &o.UpdatedAt,
			&o.Company, &o.Position)
		if err != nil {
			return nil, fmt.Errorf("scan interview overview: %w", err)
		}
		if scheduledAt.Valid {
			t := scheduledAt.Time.UTC()
			o.ScheduledAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
