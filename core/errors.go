package core

import "errors"

var (
	// ErrInvalidTaskID is returned when an operation names a task ID the
	// pool does not know, either because it was never issued or because the
	// task has already been consumed by a completed wait.
	ErrInvalidTaskID = errors.New("invalid task ID")

	// ErrInvalidGroupID is the group equivalent of ErrInvalidTaskID.
	ErrInvalidGroupID = errors.New("invalid group ID")

	// ErrTaskAlreadyWaitedOn is returned when a second caller attempts
	// WaitForTaskCompletion on a task that already has a waiter. The second
	// caller returns without consuming the task.
	ErrTaskAlreadyWaitedOn = errors.New("another thread is waiting on this task")

	// ErrAlreadyInitialized is returned by Init when the worker population
	// already exists.
	ErrAlreadyInitialized = errors.New("worker pool already initialized")

	// ErrNotRunning is logged for submissions made before Init or after
	// Finish; the submission itself returns InvalidTaskID or InvalidGroupID.
	ErrNotRunning = errors.New("worker pool is not running")

	// ErrInvalidElementCount is logged for group submissions with a
	// non-positive element count; the submission returns InvalidGroupID.
	ErrInvalidElementCount = errors.New("group task element count must be positive")
)
