package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/jobtrack/internal/email"
	"github.com/dukerupert/jobtrack/internal/model"
	"github.com/dukerupert/jobtrack/internal/queue"
	"github.com/dukerupert/jobtrack/internal/store"
)

// ErrTransientSend marks an email send failure that is worth retrying.
var ErrTransientSend = errors.New("transient send failure")

type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reasons attached to skipped and failed results.
const (
	ReasonAlreadySent = "already_sent"
	ReasonDisabled    = "disabled"
	ReasonUnscheduled = "unscheduled"
	ReasonNotFound    = "not_found"
	ReasonSendError   = "send_error"
	ReasonInternal    = "internal_error"
)

// Result is the outcome of one dispatch of one interview reminder.
type Result struct {
	InterviewID int64  `json:"interview_id"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Status)
	}
	return fmt.Sprintf("%s(%s)", r.Status, r.Reason)
}

type DispatcherOption func(*Dispatcher)

func WithClock(c Clock) DispatcherOption {
	return func(d *Dispatcher) { d.now = c }
}

func WithRenderer(r Renderer) DispatcherOption {
	return func(d *Dispatcher) { d.renderer = r }
}

// WithLocation sets the zone used for the interview time in the message.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(d *Dispatcher) { d.loc = loc }
}

// WithBaseURL enables a link to the application in the message.
func WithBaseURL(u string) DispatcherOption {
	return func(d *Dispatcher) { d.baseURL = strings.TrimRight(u, "/") }
}

// Dispatcher sends the reminder for a single interview and records the
// outcome. It is safe to call repeatedly and concurrently for the same
// interview.
type Dispatcher struct {
	interviews *store.InterviewStore
	deliveries *store.DeliveryStore
	sender     email.Sender
	renderer   Renderer
	now        Clock
	loc        *time.Location
	baseURL    string
	logger     *slog.Logger
}

func NewDispatcher(interviews *store.InterviewStore, deliveries *store.DeliveryStore, sender email.Sender, logger *slog.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		interviews: interviews,
		deliveries: deliveries,
		sender:     sender,
		now:        time.Now,
		loc:        time.UTC,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.renderer == nil {
		r, err := NewTemplateRenderer()
		if err != nil {
			return nil, err
		}
		d.renderer = r
	}
	return d, nil
}

// Dispatch sends the reminder for interviewID. Skips and missing interviews
// are reported through the Result with a nil error. A failed send returns an
// error wrapping ErrTransientSend; store failures are returned unwrapped.
func (d *Dispatcher) Dispatch(ctx context.Context, interviewID int64) (Result, error) {
	res := Result{InterviewID: interviewID}
	log := d.logger.With("interview_id", interviewID)

	target, err := d.interviews.GetReminderTarget(ctx, interviewID)
	if err != nil {
		return res, fmt.Errorf("load interview %d: %w", interviewID, err)
	}
	if target == nil {
		log.Error("interview not found")
		res.Status, res.Reason = StatusFailed, ReasonNotFound
		return res, nil
	}

	if target.Interview.ReminderSent {
		log.Info("reminder already sent")
		res.Status, res.Reason = StatusSkipped, ReasonAlreadySent
		return res, nil
	}

	pref := target.Preference
	if pref == nil {
		log.Warn("preference missing; using defaults", "user_id", target.User.ID)
		def := model.DefaultNotificationPreference(target.User.ID)
		pref = &def
	}
	if !pref.NotificationsEnabled {
		log.Info("notifications disabled", "user_id", target.User.ID)
		res.Status, res.Reason = StatusSkipped, ReasonDisabled
		return res, nil
	}

	if target.Interview.ScheduledAt == nil {
		log.Info("interview has no scheduled time")
		res.Status, res.Reason = StatusSkipped, ReasonUnscheduled
		return res, nil
	}

	msg, err := d.renderer.Render(d.reminder(target, d.now()))
	if err != nil {
		return res, fmt.Errorf("render reminder: %w", err)
	}

	attempt := queue.Attempt(ctx)
	if err := d.sender.Send(ctx, msg); err != nil {
		log.Warn("reminder send failed", "attempt", attempt, "to", msg.To, "error", err)
		// The attempt's context may already be past its deadline.
		if rerr := d.deliveries.Record(context.WithoutCancel(ctx), interviewID, attempt, model.DeliveryFailed, err.Error()); rerr != nil {
			log.Error("failed to record delivery", "error", rerr)
		}
		res.Status, res.Reason = StatusFailed, ReasonSendError
		return res, fmt.Errorf("%w: %w", ErrTransientSend, err)
	}

	storeCtx := context.WithoutCancel(ctx)
	marked, err := d.interviews.MarkReminderSent(storeCtx, interviewID)
	if err != nil {
		return res, fmt.Errorf("reminder sent but not marked: %w", err)
	}
	if !marked {
		log.Warn("reminder already marked sent by another dispatch; email may be duplicated", "to", msg.To)
		res.Status, res.Reason = StatusSkipped, ReasonAlreadySent
		return res, nil
	}

	if err := d.deliveries.Record(storeCtx, interviewID, attempt, model.DeliverySent, ""); err != nil {
		log.Error("failed to record delivery", "error", err)
	}
	log.Info("reminder sent", "to", msg.To, "company", target.Application.Company,
		"interview_type", target.Interview.TypeLabel(), "attempt", attempt)
	res.Status = StatusSent
	return res, nil
}

func (d *Dispatcher) reminder(t *model.ReminderTarget, now time.Time) Reminder {
	at := t.Interview.ScheduledAt.In(d.loc)
	r := Reminder{
		To:              t.User.Email,
		UserName:        t.User.DisplayName(),
		Company:         t.Application.Company,
		Position:        t.Application.Position,
		InterviewType:   t.Interview.TypeLabel(),
		Location:        t.Interview.LocationLabel(),
		InterviewerName: t.Interview.InterviewerName,
		When:            at.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		TimeUntil:       TimeUntil(now, *t.Interview.ScheduledAt),
	}
	if d.baseURL != "" {
		r.URL = fmt.Sprintf("%s/applications/%d", d.baseURL, t.Application.ID)
	}
	return r
}
