package engine

import (
	"context"
	"time"
)

// Config controls the task execution engine.
// The app layer maps config.task_engine into this struct.
type Config struct {
	Enabled bool
	// Workers caps concurrently running tasks. Excess tasks wait in an unbounded queue.
	Workers int

	// DefaultTimeout is used when Task.Timeout is 0. 0 means no deadline.
	DefaultTimeout time.Duration

	HistorySize int
}

type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// TaskEvent is emitted on the event bus for task lifecycle events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Task is a unit of work executed once by the engine. Failed tasks are not retried.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Enabled bool
	Running bool
	Workers int

	Waiting  int
	InFlight int64

	Accepted uint64
	Failed   uint64
	Panics   uint64

	DefaultTimeout time.Duration

	History []HistoryItem
}
