package model

import "time"

// Lead day bounds and defaults for reminder preferences.
const (
	MinLeadDays          = 1
	MaxLeadDays          = 7
	DefaultLeadDays      = 1
	DefaultPreferredTime = "09:00"
	DefaultNotifsEnabled = true
)

type NotificationPreference struct {
	UserID               int64     `json:"user_id"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	LeadDays             int       `json:"lead_days"`
	PreferredTime        string    `json:"preferred_time"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultNotificationPreference is the record every new user starts with.
func DefaultNotificationPreference(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:               userID,
		NotificationsEnabled: DefaultNotifsEnabled,
		LeadDays:             DefaultLeadDays,
		PreferredTime:        DefaultPreferredTime,
	}
}
