package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the scan daily at 09:00.
const DefaultSchedule = "0 9 * * *"

// Trigger runs the scanner on a cron schedule.
type Trigger struct {
	scanner *Scanner
	spec    string
	now     Clock
	logger  *slog.Logger

	c       *cron.Cron
	entryID cron.EntryID
	running sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTrigger validates spec and prepares a cron scheduler in loc. Standard
// five-field specs and descriptors such as @daily are accepted.
func NewTrigger(scanner *Scanner, spec string, loc *time.Location, logger *slog.Logger) (*Trigger, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trigger{scanner: scanner, spec: spec, now: time.Now, logger: logger}
	cl := cronLogger{logger: logger}
	t.c = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := t.c.AddFunc(spec, t.tick)
	if err != nil {
		return nil, fmt.Errorf("parse scan schedule %q: %w", spec, err)
	}
	t.entryID = id
	return t, nil
}

// Start begins firing scans. Scans run under ctx until Stop is called.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.c.Start()
	t.logger.Info("reminder trigger started", "schedule", t.spec, "next", t.Next())
}

// Stop halts the schedule and waits for a running scan to finish or ctx to
// expire.
func (t *Trigger) Stop(ctx context.Context) {
	done := t.c.Stop().Done()

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		t.logger.Warn("reminder trigger stop timed out", "error", ctx.Err())
		return
	}
	if cancel != nil {
		cancel()
	}
	t.logger.Info("reminder trigger stopped")
}

// RunNow performs a scan immediately. It waits for a scheduled scan that is
// already in progress.
func (t *Trigger) RunNow(ctx context.Context) ([]int64, error) {
	t.running.Lock()
	defer t.running.Unlock()
	return t.scanner.Scan(ctx, t.now())
}

// Next returns the time of the next scheduled scan.
func (t *Trigger) Next() time.Time {
	return t.c.Entry(t.entryID).Next
}

func (t *Trigger) tick() {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	ids, err := t.RunNow(ctx)
	if err != nil {
		t.logger.Error("scheduled reminder scan failed", "enqueued", len(ids), "error", err)
		return
	}
	t.logger.Info("scheduled reminder scan finished", "enqueued", len(ids), "duration", time.Since(start))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
