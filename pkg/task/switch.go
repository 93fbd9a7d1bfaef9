package task

import "runtime"

// Switch saves the running flow into current and resumes next.
//
// Control comes back out of Switch only when some later Switch names
// current as its next, possibly long after and from a different flow.
// Switching away from a zero Context ends the calling flow for good.
//
// No task lock may be held across the call: the flow that resumes will
// take the locks it needs itself.
func Switch(current, next *Context) {
	if current == nil || next == nil {
		panic("switch with a nil context")
	}

	next.resume()

	if current.permit == nil {
		runtime.Goexit()
	}
	<-current.permit
}

func (c *Context) resume() {
	if entry := c.ra; entry != nil {
		c.ra = nil
		go entry()
		return
	}
	if c.permit == nil {
		panic("switch to a context that cannot be resumed")
	}
	c.permit <- struct{}{}
}
