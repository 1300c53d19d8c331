package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	ID          TaskID
	GroupID     GroupID
	Description string
	Priority    TaskPriority
	Group       bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Panicked    bool
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	Workers               int
	Queued                int // tasks waiting in the run queue
	LowPriorityHeld       int // tasks parked in the holding queue
	Active                int // tasks currently executing, on pool workers or native threads
	LowPriorityActive     int // low-priority tasks in the run queue or executing
	Delayed               int // delayed submissions not yet posted
	MaxLowPriorityThreads int
	NativeLowPriorityMode bool
	Running               bool
}
