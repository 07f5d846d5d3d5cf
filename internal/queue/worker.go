package queue

import (
	"context"
	"fmt"
	"time"
)

func (q *Queue) worker(ctx context.Context, stopCh <-chan struct{}, jobs <-chan queuedJob, idx int) {
	defer q.workerWG.Done()
	q.log.Debug("worker started", "worker", idx)
	defer q.log.Debug("worker stopped", "worker", idx)

	for {
		// A closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case item := <-jobs:
			q.execOne(ctx, stopCh, item)
		}
	}
}

func (q *Queue) execOne(ctx context.Context, stopCh <-chan struct{}, item queuedJob) {
	q.inflight.Add(1)
	defer q.inflight.Add(-1)

	start := time.Now()
	job := item.job
	err := q.runAttempt(ctx, job, item.attempt)
	dur := time.Since(start)

	if err == nil {
		q.succeeded.Add(1)
		q.log.Debug("job succeeded", "job", job.Name, "key", job.Key, "attempt", item.attempt, "duration", dur)
		q.record(HistoryItem{ID: job.ID, Name: job.Name, Key: job.Key, Started: start, Duration: dur, Attempts: item.attempt})
		q.emit(Event{Type: EventSucceeded, JobID: job.ID, Name: job.Name, Key: job.Key, Attempt: item.attempt, Duration: dur})
		return
	}

	if ctx.Err() != nil {
		q.log.Warn("job aborted by shutdown", "job", job.Name, "key", job.Key, "attempt", item.attempt, "error", err)
		return
	}

	if IsRetryable(err) {
		if delay, stop := item.backoff.Next(); !stop {
			q.log.Warn("job attempt failed; retry scheduled", "job", job.Name, "key", job.Key,
				"attempt", item.attempt, "delay", delay, "error", err)
			q.emit(Event{Type: EventRetry, JobID: job.ID, Name: job.Name, Key: job.Key, Attempt: item.attempt, Error: err.Error()})
			next := item
			next.attempt++
			q.scheduleRetry(stopCh, next, delay)
			return
		}
	}

	q.failed.Add(1)
	q.log.Error("job failed", "job", job.Name, "key", job.Key, "attempts", item.attempt, "error", err)
	q.record(HistoryItem{ID: job.ID, Name: job.Name, Key: job.Key, Started: start, Duration: dur, Attempts: item.attempt, Error: err.Error()})
	q.emit(Event{Type: EventFailed, JobID: job.ID, Name: job.Name, Key: job.Key, Attempt: item.attempt, Duration: dur, Error: err.Error()})
	if job.OnGiveUp != nil {
		job.OnGiveUp(ctx, item.attempt, err)
	}
}

// runAttempt executes one attempt with the per-attempt timeout. A panic in
// the job is converted into a non-retryable error.
func (q *Queue) runAttempt(ctx context.Context, job Job, attempt int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("panic in job", "job", job.Name, "key", job.Key, "panic", r, "stack", stack())
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()

	runCtx := withAttempt(ctx, attempt)
	if q.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, q.cfg.Timeout)
		defer cancel()
	}
	return job.Run(runCtx)
}

func (q *Queue) scheduleRetry(stopCh <-chan struct{}, item queuedJob, delay time.Duration) {
	q.mu.Lock()
	jobs := q.jobs
	q.mu.Unlock()

	q.delayed.Add(1)
	q.timerWG.Add(1)
	go func() {
		defer q.timerWG.Done()
		defer q.delayed.Add(-1)

		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-stopCh:
			q.log.Warn("pending retry dropped by shutdown", "job", item.job.Name, "key", item.job.Key, "attempt", item.attempt)
			return
		case <-t.C:
		}

		select {
		case jobs <- item:
		case <-stopCh:
		}
	}()
}
