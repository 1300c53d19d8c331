// Package workerpool provides a Godot-inspired worker thread pool for Go.
//
// This library implements a process-wide scheduler that accepts opaque units
// of work from arbitrary producer goroutines and runs them on a fixed-size
// population of long-lived workers. Work comes in two shapes: single tasks
// (one callable, one execution) and group tasks (a callable plus an element
// count, dispatched as sibling executions that cooperatively drain the index
// range). Two priority classes are supported; the low class is admission
// controlled so long-running background work cannot monopolise the pool.
//
// # Quick Start
//
// Initialize the global worker pool at application startup:
//
//	workerpool.InitGlobalWorkerPool(4) // 4 workers
//	defer workerpool.FinishGlobalWorkerPool()
//
// Submit a task and wait for it:
//
//	pool := workerpool.GetGlobalWorkerPool()
//	id := pool.AddTask(func() {
//		// Your code here
//	}, true, "warm caches")
//	if err := pool.WaitForTaskCompletion(id); err != nil {
//		// Unknown ID or concurrent wait
//	}
//
// Fan work out over an index range:
//
//	gid := pool.AddGroupTask(func(index int) {
//		items[index].Process()
//	}, len(items), -1, true, "process items")
//	pool.WaitForGroupTaskCompletion(gid)
//
// # Key Concepts
//
// TaskID / GroupID: Identifiers drawn from one monotone sequence. Waiting on
// an identifier consumes it; polling with IsTaskCompleted does not.
//
// Priority: High-priority tasks go straight to the run queue. Low-priority
// tasks are admitted up to a quota derived from the low-priority ratio given
// to Init; excess tasks park in a holding queue and are promoted as slots
// free. With native-low-priority mode each low-priority task instead runs on
// its own dedicated OS thread.
//
// Reentrant waits: a task body may submit another task and wait for it. A
// worker blocked in WaitForTaskCompletion keeps executing queued tasks while
// it waits, so saturated pools with inter-task dependencies do not deadlock.
//
// # Observability
//
// The pool records execution metrics through the core.Metrics interface and
// exposes point-in-time PoolStats snapshots. The observability/prometheus
// package adapts both to Prometheus collectors.
//
// For more details, see https://github.com/Swind/go-worker-pool
package workerpool
