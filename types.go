package workerpool

import "github.com/Swind/go-worker-pool/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the workerpool package for most use cases.

// TaskID identifies a single task submission
type TaskID = core.TaskID

// GroupID identifies a group task submission
type GroupID = core.GroupID

// TaskFunc is the body of a single task
type TaskFunc = core.TaskFunc

// GroupFunc is the body of a group task, invoked once per element index
type GroupFunc = core.GroupFunc

// NativeFunc is the C-style single task body taking opaque userdata
type NativeFunc = core.NativeFunc

// NativeGroupFunc is the C-style group task body taking userdata and index
type NativeGroupFunc = core.NativeGroupFunc

// WorkerPool is the scheduling engine
type WorkerPool = core.WorkerPool

// Config holds the pool's pluggable collaborators
type Config = core.Config

// TaskPriority is the scheduling class of a task
type TaskPriority = core.TaskPriority

// PoolStats is a point-in-time snapshot of the pool's scheduling state
type PoolStats = core.PoolStats

// TaskExecutionRecord captures a completed task execution event
type TaskExecutionRecord = core.TaskExecutionRecord

// Sentinel identifiers
const (
	InvalidTaskID  TaskID  = core.InvalidTaskID
	InvalidGroupID GroupID = core.InvalidGroupID
)

// Priority constants
const (
	TaskPriorityLow  TaskPriority = core.TaskPriorityLow
	TaskPriorityHigh TaskPriority = core.TaskPriorityHigh
)

// Error sentinels, matchable with errors.Is
var (
	ErrInvalidTaskID       = core.ErrInvalidTaskID
	ErrInvalidGroupID      = core.ErrInvalidGroupID
	ErrTaskAlreadyWaitedOn = core.ErrTaskAlreadyWaitedOn
	ErrAlreadyInitialized  = core.ErrAlreadyInitialized
)

// NewWorkerPool creates an unstarted pool with the given collaborators.
// This is re-exported for advanced users who want multiple pools; most
// applications use the global pool helpers instead.
func NewWorkerPool(config *Config) *WorkerPool {
	return core.NewWorkerPool(config)
}

// DefaultConfig returns a Config with default collaborators
func DefaultConfig() *Config {
	return core.DefaultConfig()
}
