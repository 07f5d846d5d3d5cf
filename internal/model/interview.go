package model

import "time"

// Interview outcome values.
const (
	OutcomePending   = "pending"
	OutcomePassed    = "passed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Interview location values.
const (
	LocationRemote = "remote"
	LocationOnsite = "onsite"
	LocationHybrid = "hybrid"
)

var interviewTypeLabels = map[string]string{
	"phone_screening": "Phone Screening",
	"recruiter_call":  "Recruiter Call",
	"technical":       "Technical Interview",
	"coding":          "Coding Challenge",
	"system_design":   "System Design",
	"behavioral":      "Behavioral Interview",
	"hiring_manager":  "Hiring Manager",
	"team_fit":        "Team Fit / Culture",
	"onsite":          "Onsite Interview",
	"final":           "Final Round",
	"hr_final":        "HR Final",
	"offer_call":      "Offer Call",
}

var locationLabels = map[string]string{
	LocationRemote: "Remote",
	LocationOnsite: "On-site",
	LocationHybrid: "Hybrid",
}

// InterviewTypeLabel returns the display label for an interview type code.
// Unknown codes are returned unchanged.
func InterviewTypeLabel(code string) string {
	if label, ok := interviewTypeLabels[code]; ok {
		return label
	}
	return code
}

// ValidInterviewType reports whether code is a known interview type.
func ValidInterviewType(code string) bool {
	_, ok := interviewTypeLabels[code]
	return ok
}

type Interview struct {
	ID               int64      `json:"id"`
	JobApplicationID int64      `json:"job_application_id"`
	InterviewType    string     `json:"interview_type"`
	Location         string     `json:"location"`
	InterviewerName  string     `json:"interviewer_name,omitempty"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	Outcome          string     `json:"outcome"`
	ReminderSent     bool       `json:"reminder_sent"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (i Interview) TypeLabel() string {
	return InterviewTypeLabel(i.InterviewType)
}

func (i Interview) LocationLabel() string {
	if label, ok := locationLabels[i.Location]; ok {
		return label
	}
	return i.Location
}

// InterviewOverview is an interview listed with its application's company
// and position, for the upcoming and needs-review views.
type InterviewOverview struct {
	Interview
	Company  string `json:"company"`
	Position string `json:"position"`
}
