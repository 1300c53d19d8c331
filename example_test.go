package workerpool_test

import (
	"fmt"
	"sync/atomic"

	workerpool "github.com/Swind/go-worker-pool"
)

// Example demonstrates the basic submit/wait cycle against the global pool.
func Example() {
	workerpool.InitGlobalWorkerPool(4)
	defer workerpool.FinishGlobalWorkerPool()

	id := workerpool.AddTask(func() {
		fmt.Println("task ran")
	}, true, "hello")
	workerpool.WaitForTaskCompletion(id)

	// Output: task ran
}

// Example_groupTask fans a computation out over an index range and gathers
// the result.
func Example_groupTask() {
	workerpool.InitGlobalWorkerPool(4)
	defer workerpool.FinishGlobalWorkerPool()

	var sum atomic.Int64
	gid := workerpool.AddGroupTask(func(index int) {
		sum.Add(int64(index))
	}, 1000, -1, true, "sum indices")
	workerpool.WaitForGroupTaskCompletion(gid)

	fmt.Println(sum.Load())
	// Output: 499500
}
