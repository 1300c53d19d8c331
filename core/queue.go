package core

import "github.com/gammazero/deque"

// taskQueue is a FIFO of task records backed by a growable ring buffer.
// The pool keeps two of them: the run queue and the low-priority holding
// queue. A task is in at most one queue at a time. All access is serialised
// by the pool's task mutex.
type taskQueue struct {
	d deque.Deque[*task]
}

func (q *taskQueue) pushBack(t *task) {
	q.d.PushBack(t)
}

// popFront removes and returns the head, or reports false when empty.
func (q *taskQueue) popFront() (*task, bool) {
	if q.d.Len() == 0 {
		return nil, false
	}
	return q.d.PopFront(), true
}

func (q *taskQueue) len() int {
	return q.d.Len()
}

// at returns the i-th queued task without removing it. Used by Finish to
// report holding-queue entries that were never re-claimed.
func (q *taskQueue) at(i int) *task {
	return q.d.At(i)
}

func (q *taskQueue) clear() {
	q.d.Clear()
}
