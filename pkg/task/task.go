package task

import (
	"sync"
	"weak"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
)

// TaskControlBlock is a process.
//
// The pid and kernel stack never change. Everything else lives in inner and
// is only touched with mu held. A TCB is shared by the ready queue, the
// processor and the parent's child list; the parent link itself is weak.
type TaskControlBlock struct {
	pid    *PidHandle
	kstack *KernelStack
	name   string

	// mu protects inner.
	mu    sync.Mutex
	inner taskInner
}

type taskInner struct {
	taskCx    Context
	status    TaskStatus
	memorySet *mm.MemorySet
	// userSP is the initial user stack pointer.
	userSP  mm.VirtAddr
	program loader.Program
	// parent never keeps the parent alive.
	parent   weak.Pointer[TaskControlBlock]
	children []*TaskControlBlock
	exitCode int
	// priority is stored for a priority-aware policy; the ready queue is FIFO
	// and does not read it.
	priority uint8
}

// Pid returns the process id.
func (t *TaskControlBlock) Pid() int {
	return t.pid.Pid()
}

// Name returns the name of the image the task was created from.
func (t *TaskControlBlock) Name() string {
	return t.name
}

// KernelStack returns the task's kernel stack.
func (t *TaskControlBlock) KernelStack() *KernelStack {
	return t.kstack
}

// Status returns the current status.
func (t *TaskControlBlock) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.status
}

// ExitCode returns the exit code; meaningful once the task is a zombie.
func (t *TaskControlBlock) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.exitCode
}

// Priority returns the stored scheduling priority.
func (t *TaskControlBlock) Priority() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.priority
}

// Parent returns the parent task, or nil if there is none or it is gone.
func (t *TaskControlBlock) Parent() *TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.parent.Value()
}

// Children returns a copy of the child list.
func (t *TaskControlBlock) Children() []*TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	children := make([]*TaskControlBlock, len(t.inner.children))
	copy(children, t.inner.children)
	return children
}

// Token returns the satp value of the task's address space.
func (t *TaskControlBlock) Token() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.memorySet == nil {
		return 0
	}
	return t.inner.memorySet.Token()
}

// FindVPN reports whether vpn is mapped in the task's address space.
func (t *TaskControlBlock) FindVPN(vpn mm.VirtPageNum) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.memorySet == nil {
		return false
	}
	return t.inner.memorySet.FindVPN(vpn)
}

// MappedPages returns the number of user pages currently mapped.
func (t *TaskControlBlock) MappedPages() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.memorySet == nil {
		return 0
	}
	return t.inner.memorySet.MappedPages()
}

// ReadUser copies memory out of the task's address space.
func (t *TaskControlBlock) ReadUser(va mm.VirtAddr, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.memorySet == nil {
		return &mm.FaultError{Addr: va}
	}
	return t.inner.memorySet.Read(va, buf)
}

// WriteUser copies memory into the task's address space.
func (t *TaskControlBlock) WriteUser(va mm.VirtAddr, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner.memorySet == nil {
		return &mm.FaultError{Addr: va, Write: true}
	}
	return t.inner.memorySet.Write(va, data)
}

// release frees what a reaped task still holds: its pid, its kernel stack
// and the page table root of its address space.
func (t *TaskControlBlock) release() {
	t.mu.Lock()
	ms := t.inner.memorySet
	t.inner.memorySet = nil
	t.mu.Unlock()

	if ms != nil {
		ms.Release()
	}
	t.kstack.Release()
	t.pid.Release()
}
