package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/jobtrack/internal/email"
	"github.com/dukerupert/jobtrack/internal/queue"
)

// Job names used on the queue.
const (
	JobDispatchReminder = "dispatch_reminder"
	JobSendTestEmail    = "send_test_email"
)

// DispatchQueue runs dispatches as queue jobs. It implements Enqueuer.
type DispatchQueue struct {
	q      *queue.Queue
	d      *Dispatcher
	logger *slog.Logger

	mu       sync.Mutex
	onResult func(Result)
}

func NewDispatchQueue(q *queue.Queue, d *Dispatcher, logger *slog.Logger) *DispatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchQueue{q: q, d: d, logger: logger}
}

// OnResult registers a callback for every final dispatch result.
func (dq *DispatchQueue) OnResult(fn func(Result)) {
	dq.mu.Lock()
	dq.onResult = fn
	dq.mu.Unlock()
}

func (dq *DispatchQueue) report(r Result) {
	dq.mu.Lock()
	fn := dq.onResult
	dq.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

// JobKey is the queue key of an interview's dispatch jobs.
func JobKey(interviewID int64) string {
	return fmt.Sprintf("interview:%d", interviewID)
}

// EnqueueDispatch queues a reminder dispatch. Send failures are retried by
// the queue; everything else is final.
func (dq *DispatchQueue) EnqueueDispatch(interviewID int64) error {
	return dq.q.Enqueue(queue.Job{
		Name: JobDispatchReminder,
		Key:  JobKey(interviewID),
		Run: func(ctx context.Context) error {
			res, err := dq.d.Dispatch(ctx, interviewID)
			if err != nil {
				if errors.Is(err, ErrTransientSend) {
					return queue.Retryable(err)
				}
				dq.logger.Error("reminder dispatch failed", "interview_id", interviewID, "error", err)
				dq.report(Result{InterviewID: interviewID, Status: StatusFailed, Reason: ReasonInternal})
				return err
			}
			dq.report(res)
			return nil
		},
		OnGiveUp: func(ctx context.Context, attempts int, err error) {
			if errors.Is(err, ErrTransientSend) {
				dq.logger.Error("reminder retries exhausted", "interview_id", interviewID,
					"attempts", attempts, "error", err)
				dq.report(Result{InterviewID: interviewID, Status: StatusFailed, Reason: ReasonSendError})
			}
		},
	})
}

// EnqueueTestEmail queues a single test email to the address. It is not
// retried.
func (dq *DispatchQueue) EnqueueTestEmail(to string) error {
	return dq.q.Enqueue(queue.Job{
		Name:    JobSendTestEmail,
		Key:     "email:" + to,
		NoRetry: true,
		Run: func(ctx context.Context) error {
			return email.SendTest(ctx, dq.d.sender, to)
		},
	})
}
