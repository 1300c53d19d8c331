package workerpool

import (
	"sync"
	"time"

	"github.com/Swind/go-worker-pool/core"
)

// =============================================================================
// Global Worker Pool Helper (Singleton)
// =============================================================================

var (
	globalWorkerPool *core.WorkerPool
	globalMu         sync.Mutex
)

// InitGlobalWorkerPool initializes the global worker pool with the specified
// number of workers. Pass a negative count to size the pool to the machine's
// logical CPU count. Low-priority admission defaults to a ratio of 0.3 of
// the worker population.
func InitGlobalWorkerPool(threadCount int) error {
	return InitGlobalWorkerPoolWithConfig(threadCount, false, 0.3, nil)
}

// InitGlobalWorkerPoolWithConfig initializes the global worker pool with
// full control over the scheduling parameters and collaborators. It is an
// error to initialize twice without an intervening FinishGlobalWorkerPool.
func InitGlobalWorkerPoolWithConfig(threadCount int, useNativeLowPriorityThreads bool, lowPriorityTaskRatio float64, config *core.Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		return core.ErrAlreadyInitialized
	}

	pool := core.NewWorkerPool(config)
	if err := pool.Init(threadCount, useNativeLowPriorityThreads, lowPriorityTaskRatio); err != nil {
		return err
	}
	globalWorkerPool = pool
	return nil
}

// GetGlobalWorkerPool returns the global worker pool instance.
// It panics if InitGlobalWorkerPool has not been called.
func GetGlobalWorkerPool() *core.WorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool == nil {
		panic("GlobalWorkerPool not initialized. Call InitGlobalWorkerPool() first.")
	}
	return globalWorkerPool
}

// FinishGlobalWorkerPool stops and joins the global worker pool. Tasks still
// queued or held when it runs are not executed.
func FinishGlobalWorkerPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		globalWorkerPool.Finish()
		globalWorkerPool = nil
	}
}

// =============================================================================
// Package-level convenience wrappers over the global pool
// =============================================================================

// AddTask submits one execution of fn to the global pool.
func AddTask(fn TaskFunc, highPriority bool, description string) TaskID {
	return GetGlobalWorkerPool().AddTask(fn, highPriority, description)
}

// AddNativeTask submits a C-style task body with opaque userdata.
func AddNativeTask(fn NativeFunc, userdata any, highPriority bool, description string) TaskID {
	return GetGlobalWorkerPool().AddNativeTask(fn, userdata, highPriority, description)
}

// AddDelayedTask submits fn to run after delay has elapsed.
func AddDelayedTask(fn TaskFunc, delay time.Duration, highPriority bool, description string) TaskID {
	return GetGlobalWorkerPool().AddDelayedTask(fn, delay, highPriority, description)
}

// AddGroupTask dispatches elements indices across tasks sibling executions.
func AddGroupTask(fn GroupFunc, elements, tasks int, highPriority bool, description string) GroupID {
	return GetGlobalWorkerPool().AddGroupTask(fn, elements, tasks, highPriority, description)
}

// AddNativeGroupTask is the C-style variant of AddGroupTask.
func AddNativeGroupTask(fn NativeGroupFunc, userdata any, elements, tasks int, highPriority bool, description string) GroupID {
	return GetGlobalWorkerPool().AddNativeGroupTask(fn, userdata, elements, tasks, highPriority, description)
}

// IsTaskCompleted reports whether the task has finished executing.
func IsTaskCompleted(id TaskID) (bool, error) {
	return GetGlobalWorkerPool().IsTaskCompleted(id)
}

// IsGroupTaskCompleted reports whether the whole group has been executed.
func IsGroupTaskCompleted(id GroupID) (bool, error) {
	return GetGlobalWorkerPool().IsGroupTaskCompleted(id)
}

// WaitForTaskCompletion blocks until the task finishes and consumes its ID.
func WaitForTaskCompletion(id TaskID) error {
	return GetGlobalWorkerPool().WaitForTaskCompletion(id)
}

// WaitForGroupTaskCompletion blocks until the group finishes and consumes
// its ID.
func WaitForGroupTaskCompletion(id GroupID) error {
	return GetGlobalWorkerPool().WaitForGroupTaskCompletion(id)
}
