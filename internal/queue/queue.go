package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

type queuedJob struct {
	job     Job
	attempt int
	backoff retry.Backoff
}

// Queue executes jobs on a fixed pool of workers. Failed attempts marked
// Retryable are re-queued after the retry delay without holding a worker.
type Queue struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	onEvent func(Event)

	jobs     chan queuedJob
	stopCh   chan struct{}
	runCtx   context.Context
	cancel   context.CancelFunc
	workerWG sync.WaitGroup
	timerWG  sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem

	inflight  atomic.Int64
	delayed   atomic.Int64
	dropped   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

func New(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{cfg: cfg.withDefaults(), log: logger}
}

// OnEvent registers a callback for job lifecycle events. It must be set
// before Start.
func (q *Queue) OnEvent(fn func(Event)) {
	q.mu.Lock()
	q.onEvent = fn
	q.mu.Unlock()
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopCh != nil {
		return
	}

	q.stopCh = make(chan struct{})
	q.runCtx, q.cancel = context.WithCancel(ctx)
	q.jobs = make(chan queuedJob, q.cfg.QueueSize)

	q.workerWG.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.worker(q.runCtx, q.stopCh, q.jobs, i)
	}

	q.log.Info("queue started", "workers", q.cfg.Workers, "queue_size", q.cfg.QueueSize,
		"max_retries", q.cfg.MaxRetries, "retry_delay", q.cfg.RetryDelay)
}

// Stop cancels running jobs, drops pending retries and waits for the workers
// to exit or ctx to expire.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if q.stopCh == nil {
		q.mu.Unlock()
		return
	}
	stopCh := q.stopCh
	cancel := q.cancel
	q.stopCh = nil
	q.mu.Unlock()

	close(stopCh)
	cancel()

	done := make(chan struct{})
	go func() {
		q.workerWG.Wait()
		q.timerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("queue stopped")
	case <-ctx.Done():
		q.log.Warn("queue stop timed out", "error", ctx.Err())
	}
}

// Enqueue submits a job. It never blocks: a full queue returns ErrQueueFull.
func (q *Queue) Enqueue(job Job) error {
	if job.Run == nil {
		return errors.New("job Run is nil")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	q.mu.Lock()
	jobs := q.jobs
	stopped := q.stopCh == nil
	maxRetries := q.cfg.MaxRetries
	delay := q.cfg.RetryDelay
	q.mu.Unlock()

	if stopped {
		return ErrStopped
	}

	if job.NoRetry {
		maxRetries = 0
	}
	item := queuedJob{
		job:     job,
		attempt: 1,
		backoff: retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(delay)),
	}

	select {
	case jobs <- item:
		return nil
	default:
		q.dropped.Add(1)
		q.log.Warn("queue full; dropping job", "job", job.Name, "key", job.Key, "queue_cap", cap(jobs))
		q.emit(Event{Type: EventDropped, JobID: job.ID, Name: job.Name, Key: job.Key, Error: ErrQueueFull.Error()})
		return ErrQueueFull
	}
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	snap := Snapshot{
		Running:    q.stopCh != nil,
		Workers:    q.cfg.Workers,
		MaxRetries: q.cfg.MaxRetries,
		RetryDelay: q.cfg.RetryDelay,
	}
	if q.jobs != nil && snap.Running {
		snap.QueueLen = len(q.jobs)
		snap.QueueCap = cap(q.jobs)
	}
	q.mu.Unlock()

	snap.InFlight = q.inflight.Load() + q.delayed.Load()
	snap.Dropped = q.dropped.Load()
	snap.Succeeded = q.succeeded.Load()
	snap.Failed = q.failed.Load()

	q.hmu.Lock()
	snap.History = make([]HistoryItem, len(q.history))
	copy(snap.History, q.history)
	q.hmu.Unlock()
	return snap
}

func (q *Queue) emit(ev Event) {
	q.mu.Lock()
	fn := q.onEvent
	q.mu.Unlock()
	if fn == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	fn(ev)
}

func (q *Queue) record(item HistoryItem) {
	q.hmu.Lock()
	q.history = append(q.history, item)
	if len(q.history) > q.cfg.HistorySize {
		q.history = q.history[len(q.history)-q.cfg.HistorySize:]
	}
	q.hmu.Unlock()
}

func stack() string {
	return string(debug.Stack())
}
