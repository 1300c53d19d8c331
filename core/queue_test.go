package core

import "testing"

// TestTaskQueue_FIFOOrder verifies queue ordering
// Given: Three tasks pushed in order
// When: popFront is called repeatedly
// Then: Tasks come back in insertion order
func TestTaskQueue_FIFOOrder(t *testing.T) {
	var q taskQueue
	a := &task{description: "a"}
	b := &task{description: "b"}
	c := &task{description: "c"}

	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}

	for i, want := range []*task{a, b, c} {
		got, ok := q.popFront()
		if !ok {
			t.Fatalf("popFront %d reported empty", i)
		}
		if got != want {
			t.Errorf("popFront %d = %q, want %q", i, got.description, want.description)
		}
	}
}

// TestTaskQueue_PopEmpty verifies the empty-queue path is a no-op
func TestTaskQueue_PopEmpty(t *testing.T) {
	var q taskQueue
	if got, ok := q.popFront(); ok || got != nil {
		t.Errorf("popFront on empty queue = (%v, %v), want (nil, false)", got, ok)
	}
}

// TestTaskQueue_At verifies indexed peeking used by shutdown diagnostics
func TestTaskQueue_At(t *testing.T) {
	var q taskQueue
	q.pushBack(&task{description: "first"})
	q.pushBack(&task{description: "second"})

	if got := q.at(1).description; got != "second" {
		t.Errorf("at(1) = %q, want %q", got, "second")
	}
	if q.len() != 2 {
		t.Errorf("at() must not consume; len = %d, want 2", q.len())
	}
}

// TestTaskQueue_Clear verifies clear empties the queue
func TestTaskQueue_Clear(t *testing.T) {
	var q taskQueue
	q.pushBack(&task{})
	q.pushBack(&task{})
	q.clear()

	if q.len() != 0 {
		t.Errorf("len after clear = %d, want 0", q.len())
	}
}
