package core

// =============================================================================
// Callables: the four submission shapes accepted by the pool
// =============================================================================

// TaskFunc is the body of a single task.
type TaskFunc func()

// GroupFunc is the body of a group task; it is invoked once per claimed
// element index in [0, elements).
type GroupFunc func(index int)

// NativeFunc is the C-style single task body: a plain function taking opaque
// userdata supplied at submission time.
type NativeFunc func(userdata any)

// NativeGroupFunc is the C-style group task body, invoked with the userdata
// supplied at submission time plus the claimed element index.
type NativeGroupFunc func(userdata any, index int)

// callable is the discriminated union behind the four Add* entry points.
// Exactly one of the function fields is set; invoke dispatches on it.
type callable struct {
	fn            TaskFunc
	groupFn       GroupFunc
	nativeFn      NativeFunc
	nativeGroupFn NativeGroupFunc
	userdata      any
}

// invoke runs the callable. index is ignored for the non-group variants.
func (c *callable) invoke(index int) {
	switch {
	case c.fn != nil:
		c.fn()
	case c.groupFn != nil:
		c.groupFn(index)
	case c.nativeFn != nil:
		c.nativeFn(c.userdata)
	case c.nativeGroupFn != nil:
		c.nativeGroupFn(c.userdata, index)
	}
}
