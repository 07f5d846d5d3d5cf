package model

import "time"

// Delivery status values recorded for each reminder send attempt.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

type ReminderDelivery struct {
	ID          int64     `json:"id"`
	InterviewID int64     `json:"interview_id"`
	Attempt     int       `json:"attempt"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReminderTarget is everything needed to decide on and render one interview
// reminder. Preference is nil when the user has no preference record.
type ReminderTarget struct {
	Interview   Interview
	Application JobApplication
	User        User
	Preference  *NotificationPreference
}
