package queue

import (
	"context"
	"time"
)

// Job is a unit of work executed by the queue.
type Job struct {
	ID   string
	Name string
	// Key identifies the entity the job acts on, e.g. "interview:42".
	Key string
	Run func(ctx context.Context) error
	// NoRetry disables the retry policy for this job.
	NoRetry bool
	// OnGiveUp is called once after the final failed attempt.
	OnGiveUp func(ctx context.Context, attempts int, err error)
}

// Config controls the worker pool and the retry policy.
type Config struct {
	Workers     int
	QueueSize   int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Minute
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

// Event is emitted for job lifecycle changes.
type Event struct {
	Type     string        `json:"type"`
	JobID    string        `json:"job_id"`
	Name     string        `json:"name"`
	Key      string        `json:"key,omitempty"`
	Attempt  int           `json:"attempt"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
}

// Event types.
const (
	EventRetry     = "job.retry"
	EventSucceeded = "job.succeeded"
	EventFailed    = "job.failed"
	EventDropped   = "job.dropped"
)

type HistoryItem struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Key      string        `json:"key,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Running    bool          `json:"running"`
	Workers    int           `json:"workers"`
	QueueLen   int           `json:"queue_len"`
	QueueCap   int           `json:"queue_cap"`
	InFlight   int64         `json:"in_flight"`
	Dropped    uint64        `json:"dropped"`
	Succeeded  uint64        `json:"succeeded"`
	Failed     uint64        `json:"failed"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
	History    []HistoryItem `json:"history"`
}

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the job running under ctx,
// or 1 when ctx was not created by the queue.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok && n > 0 {
		return n
	}
	return 1
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}
