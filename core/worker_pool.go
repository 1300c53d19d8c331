package core

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

const (
	queueLabelRun             = "run"
	queueLabelLowPriorityHold = "low_priority_hold"

	// reentrantWaitBackoff is slept when a worker inside a wait finds
	// neither its done signal nor any queued work. A backoff, not a timeout.
	reentrantWaitBackoff = time.Microsecond
)

// WorkerPool schedules opaque units of work onto a fixed population of
// long-lived workers. It supports single tasks and group tasks (an element
// range drained cooperatively by sibling tasks) in two priority classes,
// where the low class is admission-controlled so long-running work cannot
// monopolise the pool.
//
// The pool is an explicit value: construct with NewWorkerPool, start with
// Init, stop with Finish. The root workerpool package layers the usual
// process-wide singleton on top.
type WorkerPool struct {
	// taskMutex guards both queues, both ID registries, the slab
	// allocators, the worker-ID map and the ID counter. It is never held
	// across a semaphore operation or a callable invocation.
	taskMutex sync.Mutex

	runQueue             taskQueue
	lowPriorityHoldQueue taskQueue

	tasks  map[TaskID]*task
	groups map[GroupID]*group
	lastID int64

	taskAlloc  *taskAllocator
	groupAlloc *groupAllocator

	taskAvailable *semaphore
	exitThreads   atomic.Bool

	workerCount int
	workerIDs   map[int64]int // goroutine ID -> worker index
	wg          sync.WaitGroup
	running     atomic.Bool

	useNativeLowPriorityThreads bool
	maxLowPriorityThreads       int
	lowPriorityThreadsUsed      atomic.Int64

	delayManager *delayManager

	metricActive atomic.Int32

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
	history      executionHistory
}

// NewWorkerPool constructs a pool with the given collaborators. The pool
// does not run until Init is called.
func NewWorkerPool(config *Config) *WorkerPool {
	if config == nil {
		config = DefaultConfig()
	}

	p := &WorkerPool{
		tasks:         make(map[TaskID]*task),
		groups:        make(map[GroupID]*group),
		lastID:        1,
		taskAlloc:     newTaskAllocator(),
		groupAlloc:    newGroupAllocator(),
		taskAvailable: newSemaphore(),
		workerIDs:     make(map[int64]int),
		logger:        config.Logger,
		panicHandler:  config.PanicHandler,
		metrics:       config.Metrics,
		history:       newExecutionHistory(config.HistoryCapacity),
	}

	if p.logger == nil {
		p.logger = NewDefaultLogger()
	}
	if p.panicHandler == nil {
		p.panicHandler = &DefaultPanicHandler{}
	}
	if p.metrics == nil {
		p.metrics = &NilMetrics{}
	}
	return p
}

// =============================================================================
// Lifecycle
// =============================================================================

// Init materialises the worker population. threadCount < 0 selects the
// machine's logical CPU count. When useNativeLowPriorityThreads is set,
// every low-priority task runs on its own dedicated OS thread and the pool
// quota is zero; otherwise the quota is threadCount*lowPriorityTaskRatio
// clamped to [1, threadCount].
//
// Calling Init on an initialised pool is an error and leaves it untouched.
func (p *WorkerPool) Init(threadCount int, useNativeLowPriorityThreads bool, lowPriorityTaskRatio float64) error {
	p.taskMutex.Lock()
	defer p.taskMutex.Unlock()

	if p.workerCount > 0 {
		return ErrAlreadyInitialized
	}

	if threadCount < 0 {
		threadCount = runtime.NumCPU()
	}

	if useNativeLowPriorityThreads {
		p.maxLowPriorityThreads = 0
	} else {
		maxLow := int(float64(threadCount) * lowPriorityTaskRatio)
		if maxLow < 1 {
			maxLow = 1
		}
		if maxLow > threadCount {
			maxLow = threadCount
		}
		p.maxLowPriorityThreads = maxLow
	}

	p.useNativeLowPriorityThreads = useNativeLowPriorityThreads
	p.workerCount = threadCount
	p.exitThreads.Store(false)
	p.delayManager = newDelayManager(p.postTask)

	for i := 0; i < threadCount; i++ {
		p.wg.Add(1)
		go p.threadFunction(i)
	}

	p.running.Store(true)
	return nil
}

// Finish signals termination, wakes every worker and joins them. Tasks
// still parked in the low-priority holding queue or the delay manager will
// never run; each is logged. Idempotent after the first call.
func (p *WorkerPool) Finish() {
	if !p.running.Swap(false) {
		return
	}

	pendingDelayed := p.delayManager.stop()
	for _, d := range pendingDelayed {
		p.logger.Warn("Delayed task dropped at shutdown", F("description", d.task.description))
		p.metrics.RecordTaskLeaked(d.task.description)
	}

	p.taskMutex.Lock()
	for i := 0; i < p.lowPriorityHoldQueue.len(); i++ {
		t := p.lowPriorityHoldQueue.at(i)
		p.logger.Error("Task waiting was never re-claimed", F("description", t.description))
		p.metrics.RecordTaskLeaked(t.description)
	}
	p.taskMutex.Unlock()

	p.exitThreads.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.taskAvailable.post()
	}

	p.wg.Wait()

	p.taskMutex.Lock()
	p.runQueue.clear()
	p.lowPriorityHoldQueue.clear()
	p.tasks = make(map[TaskID]*task)
	p.groups = make(map[GroupID]*group)
	p.workerIDs = make(map[int64]int)
	p.workerCount = 0
	p.lowPriorityThreadsUsed.Store(0)
	p.taskMutex.Unlock()
}

// IsRunning reports whether the pool is between Init and Finish.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// WorkerCount returns the size of the worker population.
func (p *WorkerPool) WorkerCount() int {
	p.taskMutex.Lock()
	defer p.taskMutex.Unlock()
	return p.workerCount
}

// MaxLowPriorityThreads returns the admission quota for low-priority tasks.
// Zero in native-low-priority mode.
func (p *WorkerPool) MaxLowPriorityThreads() int {
	p.taskMutex.Lock()
	defer p.taskMutex.Unlock()
	return p.maxLowPriorityThreads
}

// =============================================================================
// Submission
// =============================================================================

// AddTask submits one execution of fn and returns its identifier.
// Returns InvalidTaskID when the pool is not running.
func (p *WorkerPool) AddTask(fn TaskFunc, highPriority bool, description string) TaskID {
	return p.addSingleTask(callable{fn: fn}, highPriority, description)
}

// AddNativeTask submits one execution of a C-style body with opaque
// userdata.
func (p *WorkerPool) AddNativeTask(fn NativeFunc, userdata any, highPriority bool, description string) TaskID {
	return p.addSingleTask(callable{nativeFn: fn, userdata: userdata}, highPriority, description)
}

// AddDelayedTask registers a task immediately (the returned ID is valid and
// polls as not completed) but posts it to the pool only after delay has
// elapsed. Delayed tasks still pending at Finish are dropped and logged.
func (p *WorkerPool) AddDelayedTask(fn TaskFunc, delay time.Duration, highPriority bool, description string) TaskID {
	if !p.running.Load() {
		p.logger.Error("Task submitted while pool is not running", F("error", ErrNotRunning), F("description", description))
		return InvalidTaskID
	}
	if delay <= 0 {
		return p.AddTask(fn, highPriority, description)
	}

	p.taskMutex.Lock()
	t := p.taskAlloc.alloc()
	id := TaskID(p.lastID)
	p.lastID++
	t.callable = callable{fn: fn}
	t.description = description
	p.tasks[id] = t
	p.taskMutex.Unlock()

	p.delayManager.add(t, delay, highPriority)
	return id
}

func (p *WorkerPool) addSingleTask(c callable, highPriority bool, description string) TaskID {
	if !p.running.Load() {
		p.logger.Error("Task submitted while pool is not running", F("error", ErrNotRunning), F("description", description))
		return InvalidTaskID
	}

	p.taskMutex.Lock()
	t := p.taskAlloc.alloc()
	id := TaskID(p.lastID)
	p.lastID++
	t.callable = c
	t.description = description
	p.tasks[id] = t
	p.taskMutex.Unlock()

	p.postTask(t, highPriority)

	return id
}

// AddGroupTask dispatches elements indices across tasks sibling executions
// of fn and returns the group identifier. tasks < 0 selects the worker
// count. elements must be positive.
func (p *WorkerPool) AddGroupTask(fn GroupFunc, elements, tasks int, highPriority bool, description string) GroupID {
	return p.addGroup(callable{groupFn: fn}, elements, tasks, highPriority, description)
}

// AddNativeGroupTask is the C-style variant of AddGroupTask.
func (p *WorkerPool) AddNativeGroupTask(fn NativeGroupFunc, userdata any, elements, tasks int, highPriority bool, description string) GroupID {
	return p.addGroup(callable{nativeGroupFn: fn, userdata: userdata}, elements, tasks, highPriority, description)
}

func (p *WorkerPool) addGroup(c callable, elements, tasks int, highPriority bool, description string) GroupID {
	if elements <= 0 {
		p.logger.Error("Group task rejected", F("error", ErrInvalidElementCount), F("description", description))
		return InvalidGroupID
	}
	if !p.running.Load() {
		p.logger.Error("Group task submitted while pool is not running", F("error", ErrNotRunning), F("description", description))
		return InvalidGroupID
	}

	p.taskMutex.Lock()
	// A batch with no siblings could never drain, so anything below one
	// falls back to the worker count.
	if tasks < 1 {
		tasks = p.workerCount
	}

	g := p.groupAlloc.alloc()
	id := GroupID(p.lastID)
	p.lastID++
	g.self = id
	g.max = elements
	g.tasksUsed = tasks

	posted := make([]*task, tasks)
	for i := 0; i < tasks; i++ {
		t := p.taskAlloc.alloc()
		t.callable = c
		t.description = description
		t.group = g
		posted[i] = t
		// Sibling tasks carry no task ID of their own.
	}
	p.groups[id] = g
	p.taskMutex.Unlock()

	if !highPriority && p.useNativeLowPriorityThreads {
		g.lowPriorityNativeTasks = posted
	}

	for i := 0; i < tasks; i++ {
		p.postTask(posted[i], highPriority)
	}

	return id
}

// postTask routes one task: native mode low-priority work gets a dedicated
// thread, high-priority and under-quota low-priority work goes to the run
// queue, everything else parks in the holding queue without a wake-up.
func (p *WorkerPool) postTask(t *task, highPriority bool) {
	post := false

	p.taskMutex.Lock()
	t.lowPriority = !highPriority
	if !highPriority && p.useNativeLowPriorityThreads {
		p.taskMutex.Unlock()
		t.nativeThread = newNativeThread()
		t.nativeThread.start(func() { p.processTask(t, -1) })
		return
	} else if highPriority || p.lowPriorityThreadsUsed.Load() < int64(p.maxLowPriorityThreads) {
		p.runQueue.pushBack(t)
		if !highPriority {
			p.lowPriorityThreadsUsed.Add(1)
		}
		p.metrics.RecordQueueDepth(queueLabelRun, p.runQueue.len())
		post = true
	} else {
		// Low-priority quota exhausted; park until a slot frees.
		p.lowPriorityHoldQueue.pushBack(t)
		p.metrics.RecordQueueDepth(queueLabelLowPriorityHold, p.lowPriorityHoldQueue.len())
	}
	p.taskMutex.Unlock()

	if post {
		p.taskAvailable.post()
	}
}

// =============================================================================
// Execution
// =============================================================================

func (p *WorkerPool) threadFunction(index int) {
	defer p.wg.Done()

	p.taskMutex.Lock()
	p.workerIDs[goid.Get()] = index
	p.taskMutex.Unlock()

	for {
		p.taskAvailable.wait()
		if p.exitThreads.Load() {
			break
		}
		p.processTaskQueue(index)
	}
}

// processTaskQueue pops the head of the run queue and executes it. Popping
// an empty queue is a no-op so a reentrant waiter racing shutdown cannot
// fault.
func (p *WorkerPool) processTaskQueue(workerID int) {
	p.taskMutex.Lock()
	t, ok := p.runQueue.popFront()
	if ok {
		p.metrics.RecordQueueDepth(queueLabelRun, p.runQueue.len())
	}
	p.taskMutex.Unlock()
	if !ok {
		return
	}
	p.processTask(t, workerID)
}

// processTask executes one task record and performs completion signalling
// and reclamation. wid is the worker index, or -1 when the task runs on a
// dedicated native thread.
//
// The priority class is read into a local up front: the group path recycles
// the record before the low-priority promotion epilogue runs.
func (p *WorkerPool) processTask(t *task, wid int) {
	lowPriority := t.lowPriority
	priority := TaskPriorityHigh
	if lowPriority {
		priority = TaskPriorityLow
	}

	p.metricActive.Add(1)
	started := time.Now()

	if t.group != nil {
		g := t.group
		panicked := false
		doPost := false
		for {
			workIndex := g.index.Add(1) - 1
			if workIndex >= int64(g.max) {
				// The sibling that claims exactly max owns the group's
				// completion signalling.
				doPost = workIndex == int64(g.max)
				break
			}
			if !p.invoke(t, int(workIndex), wid) {
				panicked = true
			}
		}

		finished := time.Now()
		p.metricActive.Add(-1)
		p.metrics.RecordTaskDuration(priority, finished.Sub(started))
		p.history.Add(TaskExecutionRecord{
			ID:          InvalidTaskID,
			GroupID:     g.self,
			Description: t.description,
			Priority:    priority,
			Group:       true,
			StartedAt:   started,
			FinishedAt:  finished,
			Duration:    finished.Sub(started),
			Panicked:    panicked,
		})

		if lowPriority && p.useNativeLowPriorityThreads {
			t.completed.Store(true)
			t.done.post()
			if doPost {
				g.completed.Store(true)
			}
			// The waiter joins the native threads and recycles both the
			// sibling tasks and the group.
		} else {
			if doPost {
				g.done.post()
				g.completed.Store(true)
			}

			// The waiter counts as one extra user. Read the total before
			// incrementing so another sibling freeing the group cannot race
			// this read.
			maxUsers := int64(g.tasksUsed + 1)
			finishedUsers := g.finished.Add(1)

			if finishedUsers == maxUsers {
				// Nobody else is using the group anymore.
				p.taskMutex.Lock()
				p.groupAlloc.free(g)
				p.taskMutex.Unlock()
			}

			// Group siblings get rid of themselves.
			p.taskMutex.Lock()
			p.taskAlloc.free(t)
			p.taskMutex.Unlock()
		}
	} else {
		panicked := !p.invoke(t, 0, wid)

		finished := time.Now()
		p.metricActive.Add(-1)
		p.metrics.RecordTaskDuration(priority, finished.Sub(started))
		p.history.Add(TaskExecutionRecord{
			ID:          InvalidTaskID,
			GroupID:     InvalidGroupID,
			Description: t.description,
			Priority:    priority,
			StartedAt:   started,
			FinishedAt:  finished,
			Duration:    finished.Sub(started),
			Panicked:    panicked,
		})

		t.completed.Store(true)
		t.done.post()
	}

	if !p.useNativeLowPriorityThreads && lowPriority {
		// A low-priority slot freed up; promote the oldest held task if
		// any, otherwise release the slot. Single lock section, and the
		// semaphore is posted only after the mutex is released.
		post := false
		p.taskMutex.Lock()
		if held, ok := p.lowPriorityHoldQueue.popFront(); ok {
			p.runQueue.pushBack(held)
			p.metrics.RecordQueueDepth(queueLabelLowPriorityHold, p.lowPriorityHoldQueue.len())
			p.metrics.RecordQueueDepth(queueLabelRun, p.runQueue.len())
			post = true
		} else {
			p.lowPriorityThreadsUsed.Add(-1)
		}
		p.taskMutex.Unlock()
		if post {
			p.taskAvailable.post()
		}
	}
}

// invoke runs one callable invocation with panic isolation. Returns false
// when the body panicked; completion signalling proceeds regardless.
func (p *WorkerPool) invoke(t *task, index int, workerID int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			p.metrics.RecordTaskPanic(t.description)
			p.panicHandler.HandlePanic(t.description, workerID, r, debug.Stack())
		}
	}()
	t.callable.invoke(index)
	return true
}

// =============================================================================
// Completion
// =============================================================================

// IsTaskCompleted reports whether the task has finished executing. The
// completion flag is write-once, so a true result is final.
func (p *WorkerPool) IsTaskCompleted(id TaskID) (bool, error) {
	p.taskMutex.Lock()
	t, ok := p.tasks[id]
	if !ok {
		p.taskMutex.Unlock()
		return false, fmt.Errorf("%w: %d", ErrInvalidTaskID, id)
	}
	completed := t.completed.Load()
	p.taskMutex.Unlock()

	return completed, nil
}

// IsGroupTaskCompleted reports whether every element of the group has been
// executed.
func (p *WorkerPool) IsGroupTaskCompleted(id GroupID) (bool, error) {
	p.taskMutex.Lock()
	g, ok := p.groups[id]
	if !ok {
		p.taskMutex.Unlock()
		return false, fmt.Errorf("%w: %d", ErrInvalidGroupID, id)
	}
	completed := g.completed.Load()
	p.taskMutex.Unlock()

	return completed, nil
}

// WaitForTaskCompletion blocks until the task has finished, then consumes
// the identifier: the record is recycled and the ID becomes invalid.
//
// At most one caller may wait on a given task; a concurrent second wait
// fails with ErrTaskAlreadyWaitedOn and leaves the task claimable.
//
// When the caller is itself a pool worker it does not park: it keeps
// executing queued tasks while it waits, so pools with inter-task
// dependencies cannot deadlock on a saturated worker population.
func (p *WorkerPool) WaitForTaskCompletion(id TaskID) error {
	p.taskMutex.Lock()
	t, ok := p.tasks[id]
	if !ok {
		p.taskMutex.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidTaskID, id)
	}

	if t.waiting {
		description := t.description
		p.taskMutex.Unlock()
		if description == "" {
			return fmt.Errorf("%w: %d", ErrTaskAlreadyWaitedOn, id)
		}
		return fmt.Errorf("%w: %s (%d)", ErrTaskAlreadyWaitedOn, description, id)
	}

	t.waiting = true

	lowPriority := t.lowPriority
	workerIndex, isWorker := p.workerIDs[goid.Get()]
	p.taskMutex.Unlock()

	if p.useNativeLowPriorityThreads && lowPriority {
		t.nativeThread.join()
		t.nativeThread = nil
	} else if isWorker {
		// We are a pool worker; we must not block, so keep servicing the
		// run queue while the task finishes.
		for {
			if t.done.tryWait() {
				break
			}
			if p.taskAvailable.tryWait() {
				p.processTaskQueue(workerIndex)
				continue
			}
			time.Sleep(reentrantWaitBackoff)
		}
	} else {
		t.done.wait()
	}

	p.taskMutex.Lock()
	delete(p.tasks, id)
	p.taskAlloc.free(t)
	p.taskMutex.Unlock()
	return nil
}

// WaitForGroupTaskCompletion blocks until every element of the group has
// executed, then consumes the identifier and releases the group record.
func (p *WorkerPool) WaitForGroupTaskCompletion(id GroupID) error {
	p.taskMutex.Lock()
	g, ok := p.groups[id]
	p.taskMutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidGroupID, id)
	}

	if len(g.lowPriorityNativeTasks) > 0 {
		for _, t := range g.lowPriorityNativeTasks {
			t.nativeThread.join()
			t.nativeThread = nil
			p.taskMutex.Lock()
			p.taskAlloc.free(t)
			p.taskMutex.Unlock()
		}

		p.taskMutex.Lock()
		delete(p.groups, id)
		p.groupAlloc.free(g)
		p.taskMutex.Unlock()
	} else {
		g.done.wait()

		// Unregister before the final increment: once the counter can reach
		// tasksUsed+1 the record may be recycled by the last sibling, and
		// the registry must not hand it out anymore.
		p.taskMutex.Lock()
		delete(p.groups, id)
		p.taskMutex.Unlock()

		// The waiter is the +1 user; whoever of the last sibling and this
		// waiter increments finished to tasksUsed+1 releases the group.
		maxUsers := int64(g.tasksUsed + 1)
		finishedUsers := g.finished.Add(1)

		if finishedUsers == maxUsers {
			p.taskMutex.Lock()
			p.groupAlloc.free(g)
			p.taskMutex.Unlock()
		}
	}

	return nil
}

// =============================================================================
// Observability
// =============================================================================

// Stats returns a point-in-time snapshot of the pool's scheduling state.
func (p *WorkerPool) Stats() PoolStats {
	p.taskMutex.Lock()
	stats := PoolStats{
		Workers:               p.workerCount,
		Queued:                p.runQueue.len(),
		LowPriorityHeld:       p.lowPriorityHoldQueue.len(),
		MaxLowPriorityThreads: p.maxLowPriorityThreads,
		NativeLowPriorityMode: p.useNativeLowPriorityThreads,
	}
	p.taskMutex.Unlock()

	stats.Active = int(p.metricActive.Load())
	stats.LowPriorityActive = int(p.lowPriorityThreadsUsed.Load())
	if dm := p.delayManager; dm != nil {
		stats.Delayed = dm.taskCount()
	}
	stats.Running = p.running.Load()
	return stats
}

// RecentTasks returns completed task execution records in newest-first
// order.
func (p *WorkerPool) RecentTasks(limit int) []TaskExecutionRecord {
	return p.history.Recent(limit)
}
