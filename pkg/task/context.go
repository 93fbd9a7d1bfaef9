package task

// Context is a saved kernel execution point. It is what the switch
// primitive saves into and restores from.
//
// Every control flow (the scheduler loop, and one flow per task) runs on
// its own goroutine. A flow that is not running is parked on its context's
// permit. A context that has never run carries the entry it starts at
// instead.
type Context struct {
	// ra is the entry of a context that has not run yet.
	ra func()
	// sp is the top of the kernel stack the context runs on.
	sp uint64
	// permit wakes the flow parked on this context. A zero Context has no
	// permit and can never be resumed.
	permit chan struct{}
}

// newIdleContext returns the context the scheduler loop parks on.
func newIdleContext() Context {
	return Context{permit: make(chan struct{}, 1)}
}

// GotoTrapReturn returns a context that starts at entry on the kernel stack
// ending at kstackTop. entry is the path back to user mode.
func GotoTrapReturn(kstackTop uint64, entry func()) Context {
	return Context{
		ra:     entry,
		sp:     kstackTop,
		permit: make(chan struct{}, 1),
	}
}

// SP returns the saved kernel stack pointer.
func (c *Context) SP() uint64 {
	return c.sp
}

// Started reports whether the context has been switched to at least once.
func (c *Context) Started() bool {
	return c.ra == nil
}

// ZeroContext returns a context with nothing saved in it. Switching away
// from it ends the calling flow.
func ZeroContext() Context {
	return Context{}
}
