package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/jobtrack/internal/model"
)

// DeliveryStore records every reminder send attempt.
type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func (s *DeliveryStore) Record(ctx context.Context, interviewID int64, attempt int, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_deliveries (interview_id, attempt, status, error) VALUES (?, ?, ?, ?)`,
		interviewID, attempt, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("record reminder delivery: %w", err)
	}
	return nil
}

func (s *DeliveryStore) ListByInterview(ctx context.Context, interviewID int64) ([]model.ReminderDelivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, interview_id, attempt, status, error, created_at
		 FROM reminder_deliveries WHERE interview_id = ? ORDER BY id`, interviewID)
	if err != nil {
		return nil, fmt.Errorf("list reminder deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.ReminderDelivery
	for rows.Next() {
		var d model.ReminderDelivery
		if err := rows.Scan(&d.ID, &d.InterviewID, &d.Attempt, &d.Status, &d.Error, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// CountByStatus returns how many deliveries with the given status exist for
// an interview.
func (s *DeliveryStore) CountByStatus(ctx context.Context, interviewID int64, status string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_deliveries WHERE interview_id = ? AND status = ?`,
		interviewID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reminder deliveries: %w", err)
	}
	return n, nil
}
