package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/jobtrack/internal/model"
	"github.com/dukerupert/jobtrack/internal/queue"
)

func startTestQueue(t *testing.T, f *fixture, sender *fakeSender) (*DispatchQueue, chan Result, *logBuffer) {
	t.Helper()
	logger, logs := newTestLogger()

	q := queue.New(queue.Config{
		Workers:    2,
		QueueSize:  16,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    time.Second,
	}, logger)
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Stop(ctx)
	})

	d := newTestDispatcher(t, f, sender, logger)
	dq := NewDispatchQueue(q, d, logger)
	results := make(chan Result, 8)
	dq.OnResult(func(r Result) { results <- r })
	return dq, results, logs
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch result")
		return Result{}
	}
}

func TestPipelineScanThenDispatch(t *testing.T) {
	f := newFixture(t)
	iv := dueInterview(t, f)
	sender := &fakeSender{}
	dq, results, _ := startTestQueue(t, f, sender)

	ids, err := NewScanner(f.prefs, f.interviews, dq, time.UTC, nil).Scan(context.Background(), scanNow)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ids) != 1 || ids[0] != iv.ID {
		t.Fatalf("enqueued = %v, want [%d]", ids, iv.ID)
	}

	if r := waitResult(t, results); r.Status != StatusSent {
		t.Fatalf("result = %v, want sent", r)
	}
	if !f.reminderSent(t, iv.ID) {
		t.Error("reminder_sent should be true")
	}
}

func TestPipelineRetriesUntilSent(t *testing.T) {
	f := newFixture(t)
	iv := dueInterview(t, f)
	sender := &fakeSender{failures: 2}
	dq, results, logs := startTestQueue(t, f, sender)

	if err := dq.EnqueueDispatch(iv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if r := waitResult(t, results); r.Status != StatusSent {
		t.Fatalf("result = %v, want sent", r)
	}
	if sender.Calls() != 3 {
		t.Errorf("sender calls = %d, want 3", sender.Calls())
	}
	if !f.reminderSent(t, iv.ID) {
		t.Error("reminder_sent should be true")
	}
	if n := f.countDeliveries(t, iv.ID, model.DeliverySent); n != 1 {
		t.Errorf("sent deliveries = %d, want 1", n)
	}
	if n := f.countDeliveries(t, iv.ID, model.DeliveryFailed); n != 2 {
		t.Errorf("failed deliveries = %d, want 2", n)
	}
	if n := logs.count("reminder send failed"); n != 2 {
		t.Errorf("send failure log entries = %d, want 2", n)
	}

	deliveries, err := f.deliveries.ListByInterview(context.Background(), iv.ID)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	for i, d := range deliveries {
		if d.Attempt != i+1 {
			t.Errorf("delivery %d attempt = %d, want %d", i, d.Attempt, i+1)
		}
	}
}

func TestPipelineRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	iv := dueInterview(t, f)
	sender := &fakeSender{failures: -1}
	dq, results, logs := startTestQueue(t, f, sender)

	if err := dq.EnqueueDispatch(iv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	r := waitResult(t, results)
	if r.Status != StatusFailed || r.Reason != ReasonSendError {
		t.Fatalf("result = %v, want failed(send_error)", r)
	}
	if sender.Calls() != 4 {
		t.Errorf("sender calls = %d, want 4", sender.Calls())
	}
	if f.reminderSent(t, iv.ID) {
		t.Error("reminder_sent should stay false after exhaustion")
	}
	if n := f.countDeliveries(t, iv.ID, model.DeliveryFailed); n != 4 {
		t.Errorf("failed deliveries = %d, want 4", n)
	}
	if logs.count("reminder retries exhausted") != 1 {
		t.Error("expected one exhaustion log entry")
	}
}

func TestPipelineNotFoundIsNotRetried(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	dq, results, _ := startTestQueue(t, f, sender)

	if err := dq.EnqueueDispatch(4242); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	r := waitResult(t, results)
	if r.Status != StatusFailed || r.Reason != ReasonNotFound {
		t.Fatalf("result = %v, want failed(not_found)", r)
	}
}

func TestPipelineStoreErrorReportsFailure(t *testing.T) {
	f := newFixture(t)
	iv := dueInterview(t, f)
	sender := &fakeSender{}
	dq, results, logs := startTestQueue(t, f, sender)

	f.db.Close()
	if err := dq.EnqueueDispatch(iv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	r := waitResult(t, results)
	if r.Status != StatusFailed || r.Reason != ReasonInternal {
		t.Fatalf("result = %v, want failed(internal_error)", r)
	}
	if r.InterviewID != iv.ID {
		t.Errorf("interview id = %d, want %d", r.InterviewID, iv.ID)
	}
	if sender.Calls() != 0 {
		t.Errorf("sender calls = %d, want 0", sender.Calls())
	}
	if logs.count("reminder dispatch failed") != 1 {
		t.Error("expected one dispatch failure log entry")
	}
}

func TestEnqueueTestEmail(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	dq, _, _ := startTestQueue(t, f, sender)

	if err := dq.EnqueueTestEmail("alice@example.com"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(sender.Sent()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for test email")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := sender.Sent()[0]; got.To != "alice@example.com" || got.Subject != "Jobtrack - Test Email" {
		t.Errorf("message = %+v", got)
	}
}
