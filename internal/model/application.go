package model

import "time"

// Application status values.
const (
	StatusInProgress = "in_progress"
	StatusOffer      = "offer"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
	StatusDeclined   = "declined"
	StatusWithdrawn  = "withdrawn"
)

var applicationStatuses = map[string]bool{
	StatusInProgress: true,
	StatusOffer:      true,
	StatusAccepted:   true,
	StatusRejected:   true,
	StatusDeclined:   true,
	StatusWithdrawn:  true,
}

// ValidApplicationStatus reports whether s is a known application status.
func ValidApplicationStatus(s string) bool {
	return applicationStatuses[s]
}

type JobApplication struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Company   string     `json:"company"`
	Position  string     `json:"position"`
	Status    string     `json:"status"`
	AppliedOn *time.Time `json:"applied_on,omitempty"`
	JobURL    string     `json:"job_url,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
