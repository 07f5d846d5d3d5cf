package reminder

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/jobtrack/internal/database"
	"github.com/dukerupert/jobtrack/internal/email"
	"github.com/dukerupert/jobtrack/internal/model"
	"github.com/dukerupert/jobtrack/internal/store"
)

type fixture struct {
	db           *sql.DB
	users        *store.UserStore
	prefs        *store.PreferenceStore
	applications *store.ApplicationStore
	interviews   *store.InterviewStore
	deliveries   *store.DeliveryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:           db,
		users:        store.NewUserStore(db),
		prefs:        store.NewPreferenceStore(db),
		applications: store.NewApplicationStore(db),
		interviews:   store.NewInterviewStore(db),
		deliveries:   store.NewDeliveryStore(db),
	}
}

// user creates a user with the given lead days and notification setting.
func (f *fixture) user(t *testing.T, email string, leadDays int, enabled bool) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Create(ctx, email, strings.Split(email, "@")[0])
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err = f.prefs.Update(ctx, model.NotificationPreference{
		UserID:               u.ID,
		NotificationsEnabled: enabled,
		LeadDays:             leadDays,
		PreferredTime:        model.DefaultPreferredTime,
	})
	if err != nil {
		t.Fatalf("update preference: %v", err)
	}
	return u
}

func (f *fixture) application(t *testing.T, userID int64, status string) *model.JobApplication {
	t.Helper()
	a, err := f.applications.Create(context.Background(), model.JobApplication{
		UserID:   userID,
		Company:  "Acme",
		Position: "Backend Engineer",
		Status:   status,
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return a
}

func (f *fixture) interview(t *testing.T, appID int64, at time.Time, outcome string) *model.Interview {
	t.Helper()
	i, err := f.interviews.Create(context.Background(), model.Interview{
		JobApplicationID: appID,
		InterviewType:    "technical",
		ScheduledAt:      &at,
		Outcome:          outcome,
	})
	if err != nil {
		t.Fatalf("create interview: %v", err)
	}
	return i
}

func (f *fixture) reminderSent(t *testing.T, id int64) bool {
	t.Helper()
	i, err := f.interviews.GetByID(context.Background(), id)
	if err != nil || i == nil {
		t.Fatalf("get interview %d: %v", id, err)
	}
	return i.ReminderSent
}

func (f *fixture) countDeliveries(t *testing.T, id int64, status string) int {
	t.Helper()
	n, err := f.deliveries.CountByStatus(context.Background(), id, status)
	if err != nil {
		t.Fatalf("count deliveries: %v", err)
	}
	return n
}

// fakeSender records messages and fails the first failures calls.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []email.Message
	// gate, when set, is called before each send.
	gate func()
}

var errSMTPDown = errors.New("smtp: connection refused")

func (s *fakeSender) Send(ctx context.Context, msg email.Message) error {
	if s.gate != nil {
		s.gate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return errSMTPDown
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSender) Sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}

// fakeEnqueuer records ids and fails for ids in fail.
type fakeEnqueuer struct {
	mu   sync.Mutex
	ids  []int64
	fail map[int64]bool
}

func (e *fakeEnqueuer) EnqueueDispatch(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail[id] {
		return errors.New("queue full")
	}
	e.ids = append(e.ids, id)
	return nil
}

// logBuffer is a goroutine-safe sink for a JSON slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) count(msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), `"msg":"`+msg+`"`)
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	b := &logBuffer{}
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug})), b
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
