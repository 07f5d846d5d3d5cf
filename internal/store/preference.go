package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/dukerupert/jobtrack/internal/model"
)

// ErrInvalidPreference is returned when a preference update fails validation.
var ErrInvalidPreference = errors.New("invalid notification preference")

var preferredTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func scanPreference(scanner interface{ Scan(...any) error }) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	err := scanner.Scan(&p.UserID, &p.NotificationsEnabled, &p.LeadDays, &p.PreferredTime, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const preferenceCols = `user_id, notifications_enabled, lead_days, preferred_time, updated_at`

// ValidatePreference checks lead days and preferred time bounds.
func ValidatePreference(p model.NotificationPreference) error {
	if p.LeadDays < model.MinLeadDays || p.LeadDays > model.MaxLeadDays {
		return fmt.Errorf("%w: lead_days must be between %d and %d, got %d",
			ErrInvalidPreference, model.MinLeadDays, model.MaxLeadDays, p.LeadDays)
	}
	if !preferredTimeRe.MatchString(p.PreferredTime) {
		return fmt.Errorf("%w: preferred_time must be HH:MM, got %q", ErrInvalidPreference, p.PreferredTime)
	}
	return nil
}

func (s *PreferenceStore) Get(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+preferenceCols+` FROM notification_preferences WHERE user_id = ?`, userID)
	p, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return p, nil
}

// Update overwrites the preference for p.UserID. It returns nil, nil when the
// user has no preference record.
func (s *PreferenceStore) Update(ctx context.Context, p model.NotificationPreference) (*model.NotificationPreference, error) {
	if err := ValidatePreference(p); err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE notification_preferences
		 SET notifications_enabled = ?, lead_days = ?, preferred_time = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		p.NotificationsEnabled, p.LeadDays, p.PreferredTime, p.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("update notification preference: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update notification preference rows: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.Get(ctx, p.UserID)
}

// ListEnabled returns every preference with notifications turned on, ordered
// by user id.
func (s *PreferenceStore) ListEnabled(ctx context.Context) ([]model.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+preferenceCols+` FROM notification_preferences
		 WHERE notifications_enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}
