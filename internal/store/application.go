package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/jobtrack/internal/model"
)

type ApplicationStore struct {
	db *sql.DB
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

func scanApplication(scanner interface{ Scan(...any) error }) (*model.JobApplication, error) {
	var a model.JobApplication
	var appliedOn sql.NullTime
	err := scanner.Scan(&a.ID, &a.UserID, &a.Company, &a.Position, &a.Status, &appliedOn,
		&a.JobURL, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if appliedOn.Valid {
		t := appliedOn.Time
		a.AppliedOn = &t
	}
	return &a, nil
}

const applicationCols = `id, user_id, company, position, status, applied_on, job_url, notes, created_at, updated_at`

func (s *ApplicationStore) Create(ctx context.Context, a model.JobApplication) (*model.JobApplication, error) {
	if a.Status == "" {
		a.Status = model.StatusInProgress
	}
	if !model.ValidApplicationStatus(a.Status) {
		return nil, fmt.Errorf("insert job application: unknown status %q", a.Status)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO job_applications (user_id, company, position, status, applied_on, job_url, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Company, a.Position, a.Status, utcPtr(a.AppliedOn), a.JobURL, a.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job application: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ApplicationStore) GetByID(ctx context.Context, id int64) (*model.JobApplication, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM job_applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job application: %w", err)
	}
	return a, nil
}

func (s *ApplicationStore) UpdateStatus(ctx context.Context, id int64, status string) (*model.JobApplication, error) {
	if !model.ValidApplicationStatus(status) {
		return nil, fmt.Errorf("update job application status: unknown status %q", status)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_applications SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update job application status: %w", err)
	}
	return s.GetByID(ctx, id)
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
