package task

import (
	"errors"
	"fmt"
	"log/slog"
	"weak"
)

// Child process errors.
var (
	ErrNoSuchChild  = errors.New("no such child process")
	ErrChildRunning = errors.New("child process has not exited")
)

// SuspendCurrentAndRunNext puts the running task at the back of the ready
// queue and switches to the scheduler. It returns when the task is
// dispatched again.
func (k *Kernel) SuspendCurrentAndRunNext() {
	t := k.processor.TakeCurrentTask()
	if t == nil {
		panic("no process was running")
	}

	t.mu.Lock()
	cx := &t.inner.taskCx
	t.inner.transitionTo(StatusReady)
	t.mu.Unlock()

	k.listeners.suspended(t)
	k.AddTask(t)
	k.processor.Schedule(cx)
}

// ExitCurrentAndRunNext turns the running task into a zombie with the given
// exit code, hands its children to the init process, frees its user pages
// and switches to the scheduler. It never returns.
//
// When the init process itself exits the kernel halts.
func (k *Kernel) ExitCurrentAndRunNext(exitCode int) {
	t := k.processor.TakeCurrentTask()
	if t == nil {
		panic("no process was running")
	}

	t.mu.Lock()
	t.inner.transitionTo(StatusZombie)
	t.inner.exitCode = exitCode
	children := t.inner.children
	t.inner.children = make([]*TaskControlBlock, 0)
	t.inner.memorySet.RecycleDataPages()
	t.mu.Unlock()

	slog.Debug("exit", "pid", t.Pid(), "code", exitCode, "children", len(children))

	initproc := k.InitProc()
	switch {
	case t == initproc:
		slog.Info("init process exited", "pid", t.Pid(), "code", exitCode)
		k.halt(exitCode)
	case len(children) > 0:
		if initproc == nil {
			panic("no init process to adopt orphans")
		}
		k.reparent(initproc, children)
	}

	k.listeners.exited(t, exitCode)

	// the zombie's context is never resumed
	unused := ZeroContext()
	k.processor.Schedule(&unused)
}

// reparent hands children over to initproc. Only one task lock is held at a
// time.
func (k *Kernel) reparent(initproc *TaskControlBlock, children []*TaskControlBlock) {
	for _, child := range children {
		child.mu.Lock()
		child.inner.parent = weak.Make(initproc)
		child.mu.Unlock()
	}

	initproc.mu.Lock()
	defer initproc.mu.Unlock()
	initproc.inner.children = append(initproc.inner.children, children...)
}

// SetPriority stores prio on the running task. The ready queue is FIFO and
// does not read it.
func (k *Kernel) SetPriority(prio uint8) {
	t := k.mustCurrent()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.priority = prio
}

// GetPid returns the pid of the running task.
func (k *Kernel) GetPid() int {
	return k.mustCurrent().Pid()
}

// Spawn creates a child of the running task from the named app and queues
// it. It returns the child's pid.
func (k *Kernel) Spawn(name string) (int, error) {
	parent := k.mustCurrent()

	child, err := k.NewTask(name)
	if err != nil {
		return -1, err
	}

	child.mu.Lock()
	child.inner.parent = weak.Make(parent)
	child.mu.Unlock()

	parent.mu.Lock()
	parent.inner.children = append(parent.inner.children, child)
	parent.mu.Unlock()

	k.AddTask(child)
	return child.Pid(), nil
}

// WaitPid reaps a zombie child of the running task. A pid of -1 matches any
// child. The reaped child's pid, kernel stack and page table are released.
func (k *Kernel) WaitPid(pid int) (int, int, error) {
	parent := k.mustCurrent()

	parent.mu.Lock()
	found := false
	idx := -1
	for i, child := range parent.inner.children {
		if pid != -1 && child.Pid() != pid {
			continue
		}
		found = true
		// parent before child
		child.mu.Lock()
		zombie := child.inner.status == StatusZombie
		child.mu.Unlock()
		if zombie {
			idx = i
			break
		}
	}
	if !found {
		parent.mu.Unlock()
		return -1, 0, fmt.Errorf("%w: %d", ErrNoSuchChild, pid)
	}
	if idx < 0 {
		parent.mu.Unlock()
		return -1, 0, ErrChildRunning
	}
	child := parent.inner.children[idx]
	parent.inner.children = append(parent.inner.children[:idx], parent.inner.children[idx+1:]...)
	parent.mu.Unlock()

	childPid, code := child.Pid(), child.ExitCode()
	k.tasks.Delete(childPid)
	child.release()
	slog.Debug("reaped", "pid", childPid, "code", code, "parent", parent.Pid())
	return childPid, code, nil
}

// SuspendCurrentAndRunNext suspends the running task of the default kernel.
func SuspendCurrentAndRunNext() {
	mustDefault().SuspendCurrentAndRunNext()
}

// ExitCurrentAndRunNext exits the running task of the default kernel.
func ExitCurrentAndRunNext(exitCode int) {
	mustDefault().ExitCurrentAndRunNext(exitCode)
}

// Mmap maps memory into the running task of the default kernel.
func Mmap(start, length, port uint64) error {
	return mustDefault().Mmap(start, length, port)
}

// Munmap unmaps memory from the running task of the default kernel.
func Munmap(start, length uint64) error {
	return mustDefault().Munmap(start, length)
}

// SetPriority sets the priority of the running task of the default kernel.
func SetPriority(prio uint8) {
	mustDefault().SetPriority(prio)
}

// AddTask queues a task on the default kernel.
func AddTask(t *TaskControlBlock) {
	mustDefault().AddTask(t)
}

// AddInitProc creates the init process of the default kernel.
func AddInitProc() error {
	return mustDefault().AddInitProc()
}

// CurrentTask returns the running task of the default kernel.
func CurrentTask() *TaskControlBlock {
	return mustDefault().CurrentTask()
}

// CurrentUserToken returns the satp value of the running task of the
// default kernel.
func CurrentUserToken() uint64 {
	return mustDefault().CurrentUserToken()
}
