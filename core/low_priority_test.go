package core_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-worker-pool/core"
)

// TestLowPriority_AdmissionQuota covers admission control
// Given: A pool of 4 workers with a 0.5 low-priority ratio (quota = 2)
// When: 6 long-running low-priority tasks are submitted
// Then: At most 2 occupy pool workers, the other 4 park in the holding
// queue, and everything drains once the blockers release
func TestLowPriority_AdmissionQuota(t *testing.T) {
	pool := newTestPool(t, 4, false, 0.5)

	var executing atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	ids := make([]core.TaskID, 6)
	for i := range ids {
		ids[i] = pool.AddTask(func() {
			now := executing.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			<-release
			executing.Add(-1)
		}, false, "long low priority")
	}

	if !waitUntil(t, 2*time.Second, func() bool { return executing.Load() == 2 }) {
		t.Fatalf("executing = %d, want 2", executing.Load())
	}

	stats := pool.Stats()
	if stats.LowPriorityActive != 2 {
		t.Errorf("LowPriorityActive = %d, want 2", stats.LowPriorityActive)
	}
	if stats.LowPriorityHeld != 4 {
		t.Errorf("LowPriorityHeld = %d, want 4", stats.LowPriorityHeld)
	}

	close(release)
	for _, id := range ids {
		if err := pool.WaitForTaskCompletion(id); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent low-priority executions = %d, want <= 2", got)
	}
	if got := pool.Stats().LowPriorityHeld; got != 0 {
		t.Errorf("LowPriorityHeld after drain = %d, want 0", got)
	}
}

// TestLowPriority_QuotaDoesNotBlockHighPriority verifies high-priority work
// bypasses the low-priority quota
func TestLowPriority_QuotaDoesNotBlockHighPriority(t *testing.T) {
	pool := newTestPool(t, 4, false, 0.5)

	release := make(chan struct{})
	var lowIDs []core.TaskID
	for i := 0; i < 6; i++ {
		lowIDs = append(lowIDs, pool.AddTask(func() { <-release }, false, "blocker"))
	}

	high := pool.AddTask(func() {}, true, "urgent")
	if err := pool.WaitForTaskCompletion(high); err != nil {
		t.Fatalf("high-priority wait failed: %v", err)
	}

	close(release)
	for _, id := range lowIDs {
		if err := pool.WaitForTaskCompletion(id); err != nil {
			t.Fatalf("low-priority wait failed: %v", err)
		}
	}
}

// TestNativeLowPriority_DedicatedThreads covers native-low-priority mode
// Given: A pool of 2 workers initialised with native low-priority threads
// When: 8 low-priority tasks are submitted
// Then: All 8 run concurrently on their own threads regardless of the
// worker population, and the quota reports zero
func TestNativeLowPriority_DedicatedThreads(t *testing.T) {
	pool := newTestPool(t, 2, true, 0.5)

	if got := pool.MaxLowPriorityThreads(); got != 0 {
		t.Fatalf("MaxLowPriorityThreads = %d, want 0", got)
	}

	var started atomic.Int32
	release := make(chan struct{})

	ids := make([]core.TaskID, 8)
	for i := range ids {
		ids[i] = pool.AddTask(func() {
			started.Add(1)
			<-release
		}, false, "native low priority")
	}

	// Every task owns a dedicated thread, so all of them start even though
	// the pool only has 2 workers.
	if !waitUntil(t, 2*time.Second, func() bool { return started.Load() == 8 }) {
		t.Fatalf("started = %d, want 8", started.Load())
	}

	close(release)
	for _, id := range ids {
		if err := pool.WaitForTaskCompletion(id); err != nil {
			t.Fatalf("wait (join) failed: %v", err)
		}
	}
}

// TestNativeLowPriority_GroupTask verifies group dispatch over dedicated
// threads, where the waiter joins every sibling
func TestNativeLowPriority_GroupTask(t *testing.T) {
	pool := newTestPool(t, 2, true, 0.5)

	var sum atomic.Int64
	id := pool.AddGroupTask(func(index int) {
		sum.Add(int64(index))
	}, 100, 4, false, "native group")

	if err := pool.WaitForGroupTaskCompletion(id); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if sum.Load() != 4950 {
		t.Errorf("sum = %d, want 4950", sum.Load())
	}
}

// TestNativeLowPriority_HighPriorityStillPooled verifies high-priority
// tasks keep using the worker population in native mode
func TestNativeLowPriority_HighPriorityStillPooled(t *testing.T) {
	pool := newTestPool(t, 2, true, 0.5)

	var ran atomic.Bool
	id := pool.AddTask(func() { ran.Store(true) }, true, "pooled")
	if err := pool.WaitForTaskCompletion(id); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if !ran.Load() {
		t.Error("high-priority task did not run")
	}
}

// leakRecorder captures shutdown diagnostics for assertions.
type leakRecorder struct {
	mu    sync.Mutex
	leaks []string
}

func (l *leakRecorder) record(msg string, fields ...core.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if msg == "Task waiting was never re-claimed" {
		for _, f := range fields {
			if f.Key == "description" {
				l.leaks = append(l.leaks, f.Value.(string))
			}
		}
	}
}

func (l *leakRecorder) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leaks)
}

func (l *leakRecorder) Debug(msg string, fields ...core.Field) {}
func (l *leakRecorder) Info(msg string, fields ...core.Field)  {}
func (l *leakRecorder) Warn(msg string, fields ...core.Field)  { l.record(msg, fields...) }
func (l *leakRecorder) Error(msg string, fields ...core.Field) { l.record(msg, fields...) }

// TestLowPriority_ShutdownReportsHeldTasks covers shutdown with a saturated
// holding queue
// Given: A single-worker pool whose one low-priority slot is blocked
// When: More low-priority tasks pile into the holding queue and Finish runs
// Then: Each held task is reported as never re-claimed and the join is clean
func TestLowPriority_ShutdownReportsHeldTasks(t *testing.T) {
	recorder := &leakRecorder{}
	pool := core.NewWorkerPool(&core.Config{Logger: recorder})
	if err := pool.Init(1, false, 1.0); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	pool.AddTask(func() {
		close(blockerStarted)
		<-release
	}, false, "blocker")
	<-blockerStarted

	for i := 0; i < 3; i++ {
		pool.AddTask(func() {}, false, "held")
	}

	if got := pool.Stats().LowPriorityHeld; got != 3 {
		t.Fatalf("LowPriorityHeld = %d, want 3", got)
	}

	finished := make(chan struct{})
	go func() {
		pool.Finish()
		close(finished)
	}()

	// Finish reports the held tasks before joining the blocked worker.
	if !waitUntil(t, 2*time.Second, func() bool { return recorder.count() == 3 }) {
		t.Fatalf("leak reports = %d, want 3", recorder.count())
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Finish did not join")
	}

	if pool.IsRunning() {
		t.Error("pool still running after Finish")
	}
}
