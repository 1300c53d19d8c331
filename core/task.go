package core

import (
	"sync"
	"sync/atomic"
)

// TaskID identifies a single task submission. Task and group identifiers are
// drawn from the same monotonically increasing sequence, so an ID is unique
// across both kinds for the lifetime of the pool.
type TaskID int64

// GroupID identifies a group task submission.
type GroupID int64

const (
	// InvalidTaskID is returned by submission operations that fail.
	InvalidTaskID TaskID = -1

	// InvalidGroupID is returned by group submission operations that fail.
	InvalidGroupID GroupID = -1
)

// TaskPriority is the scheduling class of a task.
type TaskPriority int

const (
	// TaskPriorityLow tasks are admission-controlled: at most
	// MaxLowPriorityThreads of them occupy pool workers at once, the rest
	// wait in the holding queue (or, in native mode, each gets its own
	// dedicated OS thread).
	TaskPriorityLow TaskPriority = iota

	// TaskPriorityHigh tasks go straight to the run queue without quota.
	TaskPriorityHigh
)

func (p TaskPriority) String() string {
	if p == TaskPriorityHigh {
		return "high"
	}
	return "low"
}

// task is the per-execution record. It is live from allocation inside a
// submission call until the unique point where it is recycled: the end of
// WaitForTaskCompletion for single tasks, inside processTask for pool group
// siblings, or inside WaitForGroupTaskCompletion for native-low-priority
// group siblings.
type task struct {
	callable    callable
	description string

	group       *group
	lowPriority bool

	completed atomic.Bool // write-once; read lock-free by IsTaskCompleted
	done      binarySemaphore

	// waiting rejects concurrent waits on the same task. Guarded by the
	// pool's task mutex.
	waiting bool

	// nativeThread is set when the task runs in native-low-priority mode.
	nativeThread *nativeThread
}

// group is the shared record of a dispatched batch. Sibling tasks claim
// element indices from index via atomic post-increment; the sibling that
// observes exactly max is the group completer and fires the done signal.
type group struct {
	self      GroupID
	max       int
	index     atomic.Int64
	finished  atomic.Int64
	tasksUsed int

	completed atomic.Bool
	done      binarySemaphore

	// lowPriorityNativeTasks holds the sibling tasks when the group runs in
	// native-low-priority mode; the waiter joins and recycles them.
	lowPriorityNativeTasks []*task
}

// =============================================================================
// Slab allocators
// =============================================================================

// taskAllocator recycles task records. Callers serialise access through the
// pool's task mutex; the allocator itself adds no locking beyond sync.Pool's.
type taskAllocator struct {
	pool sync.Pool
}

func newTaskAllocator() *taskAllocator {
	return &taskAllocator{pool: sync.Pool{New: func() any { return new(task) }}}
}

// alloc returns a fully reset record with a fresh done signal.
func (a *taskAllocator) alloc() *task {
	t := a.pool.Get().(*task)
	t.callable = callable{}
	t.description = ""
	t.group = nil
	t.lowPriority = false
	t.completed.Store(false)
	t.done = newBinarySemaphore()
	t.waiting = false
	t.nativeThread = nil
	return t
}

func (a *taskAllocator) free(t *task) {
	a.pool.Put(t)
}

type groupAllocator struct {
	pool sync.Pool
}

func newGroupAllocator() *groupAllocator {
	return &groupAllocator{pool: sync.Pool{New: func() any { return new(group) }}}
}

func (a *groupAllocator) alloc() *group {
	g := a.pool.Get().(*group)
	g.self = InvalidGroupID
	g.max = 0
	g.index.Store(0)
	g.finished.Store(0)
	g.tasksUsed = 0
	g.completed.Store(false)
	g.done = newBinarySemaphore()
	g.lowPriorityNativeTasks = nil
	return g
}

func (a *groupAllocator) free(g *group) {
	a.pool.Put(g)
}
