package reminder

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/dukerupert/jobtrack/internal/model"
)

var scanNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestScanner(f *fixture, enq Enqueuer) *Scanner {
	return NewScanner(f.prefs, f.interviews, enq, time.UTC, slog.New(slog.DiscardHandler))
}

func TestScanEnqueuesDueInterview(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	app := f.application(t, u.ID, model.StatusInProgress)
	due := f.interview(t, app.ID, scanNow.Add(24*time.Hour), model.OutcomePending)
	f.interview(t, app.ID, scanNow.Add(48*time.Hour), model.OutcomePending)
	f.interview(t, app.ID, scanNow.Add(2*time.Hour), model.OutcomePending)

	enq := &fakeEnqueuer{}
	ids, err := newTestScanner(f, enq).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(ids, []int64{due.ID}) {
		t.Errorf("enqueued = %v, want [%d]", ids, due.ID)
	}
	if !slices.Equal(enq.ids, ids) {
		t.Errorf("enqueuer saw %v, scan returned %v", enq.ids, ids)
	}
}

func TestScanMatchesWholeTargetDay(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 2, true)
	app := f.application(t, u.ID, model.StatusInProgress)
	early := f.interview(t, app.ID, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), model.OutcomePending)
	late := f.interview(t, app.ID, time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC), model.OutcomePending)
	f.interview(t, app.ID, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), model.OutcomePending)

	ids, err := newTestScanner(f, &fakeEnqueuer{}).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(ids, []int64{early.ID, late.ID}) {
		t.Errorf("enqueued = %v, want [%d %d]", ids, early.ID, late.ID)
	}
}

func TestScanSkipsDisabledUsers(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, false)
	app := f.application(t, u.ID, model.StatusInProgress)
	f.interview(t, app.ID, scanNow.Add(24*time.Hour), model.OutcomePending)

	s := newTestScanner(f, &fakeEnqueuer{})
	for day := 0; day < 10; day++ {
		ids, err := s.Scan(context.Background(), scanNow.AddDate(0, 0, day-5))
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("day %d: enqueued %v for disabled user", day, ids)
		}
	}
}

func TestScanSkipsIneligibleInterviews(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	open := f.application(t, u.ID, model.StatusInProgress)
	closed := f.application(t, u.ID, model.StatusRejected)
	at := scanNow.Add(24 * time.Hour)

	f.interview(t, open.ID, at, model.OutcomeCancelled)
	f.interview(t, open.ID, at, model.OutcomePassed)
	f.interview(t, closed.ID, at, model.OutcomePending)
	sent := f.interview(t, open.ID, at, model.OutcomePending)
	if _, err := f.interviews.MarkReminderSent(context.Background(), sent.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if _, err := f.interviews.Create(context.Background(), model.Interview{JobApplicationID: open.ID}); err != nil {
		t.Fatalf("create unscheduled interview: %v", err)
	}

	ids, err := newTestScanner(f, &fakeEnqueuer{}).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("enqueued = %v, want none", ids)
	}
}

func TestScanUsesEachUsersLeadDays(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", 1, true)
	bob := f.user(t, "bob@example.com", 3, true)
	aliceApp := f.application(t, alice.ID, model.StatusInProgress)
	bobApp := f.application(t, bob.ID, model.StatusInProgress)

	aliceDue := f.interview(t, aliceApp.ID, scanNow.AddDate(0, 0, 1), model.OutcomePending)
	f.interview(t, aliceApp.ID, scanNow.AddDate(0, 0, 3), model.OutcomePending)
	f.interview(t, bobApp.ID, scanNow.AddDate(0, 0, 1), model.OutcomePending)
	bobDue := f.interview(t, bobApp.ID, scanNow.AddDate(0, 0, 3), model.OutcomePending)

	ids, err := newTestScanner(f, &fakeEnqueuer{}).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(ids, []int64{aliceDue.ID, bobDue.ID}) {
		t.Errorf("enqueued = %v, want [%d %d]", ids, aliceDue.ID, bobDue.ID)
	}
}

func TestScanTreatsMissingPreferenceAsDisabled(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	app := f.application(t, u.ID, model.StatusInProgress)
	f.interview(t, app.ID, scanNow.Add(24*time.Hour), model.OutcomePending)

	if _, err := f.db.Exec(`DELETE FROM notification_preferences WHERE user_id = ?`, u.ID); err != nil {
		t.Fatalf("delete preference: %v", err)
	}

	ids, err := newTestScanner(f, &fakeEnqueuer{}).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("enqueued = %v, want none", ids)
	}
}

func TestScanIsolatesEnqueueFailures(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", 1, true)
	bob := f.user(t, "bob@example.com", 1, true)
	bad := f.interview(t, f.application(t, alice.ID, model.StatusInProgress).ID, scanNow.Add(24*time.Hour), model.OutcomePending)
	good := f.interview(t, f.application(t, bob.ID, model.StatusInProgress).ID, scanNow.Add(24*time.Hour), model.OutcomePending)

	enq := &fakeEnqueuer{fail: map[int64]bool{bad.ID: true}}
	ids, err := newTestScanner(f, enq).Scan(context.Background(), scanNow)
	if err == nil {
		t.Fatal("expected joined error for failed enqueue")
	}
	if !slices.Equal(ids, []int64{good.ID}) {
		t.Errorf("enqueued = %v, want [%d]", ids, good.ID)
	}
}

func TestScanRepeatedRunsReenqueue(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	due := f.interview(t, f.application(t, u.ID, model.StatusInProgress).ID, scanNow.Add(24*time.Hour), model.OutcomePending)

	enq := &fakeEnqueuer{}
	s := newTestScanner(f, enq)
	for i := 0; i < 2; i++ {
		if _, err := s.Scan(context.Background(), scanNow.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}
	if !slices.Equal(enq.ids, []int64{due.ID, due.ID}) {
		t.Errorf("enqueued = %v, want the interview twice", enq.ids)
	}
}

func TestScanCancelled(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	f.interview(t, f.application(t, u.ID, model.StatusInProgress).ID, scanNow.Add(24*time.Hour), model.OutcomePending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enq := &fakeEnqueuer{}
	if _, err := newTestScanner(f, enq).Scan(ctx, scanNow); err == nil {
		t.Fatal("expected error from cancelled scan")
	}
	if len(enq.ids) != 0 {
		t.Errorf("enqueued = %v after cancel", enq.ids)
	}
}

func TestScanUsesScannerLocation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com", 1, true)
	app := f.application(t, u.ID, model.StatusInProgress)

	loc := time.FixedZone("UTC-8", -8*3600)
	// 2024-01-02 03:00 UTC is still Jan 1 at 19:00 in UTC-8, so the target
	// day there is Jan 2 local.
	now := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	due := f.interview(t, app.ID, time.Date(2024, 1, 2, 10, 0, 0, 0, loc), model.OutcomePending)

	s := NewScanner(f.prefs, f.interviews, &fakeEnqueuer{}, loc, slog.New(slog.DiscardHandler))
	ids, err := s.Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(ids, []int64{due.ID}) {
		t.Errorf("enqueued = %v, want [%d]", ids, due.ID)
	}
}
