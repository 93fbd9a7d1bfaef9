package task

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"kernos/pkg/mm"
)

// RecycleAllocator hands out small integer ids, reusing freed ones first.
type RecycleAllocator struct {
	current  int
	recycled []int
	mu       sync.Mutex
}

// NewRecycleAllocator creates an allocator starting at 0.
func NewRecycleAllocator() *RecycleAllocator {
	return &RecycleAllocator{
		recycled: make([]int, 0),
	}
}

// Alloc returns an id no live holder owns.
func (a *RecycleAllocator) Alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	id := a.current
	a.current++
	return id
}

// Dealloc returns id to the pool. Freeing an id that is not allocated is a
// kernel bug.
func (a *RecycleAllocator) Dealloc(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id < 0 || id >= a.current {
		panic(fmt.Sprintf("id %d was never allocated", id))
	}
	if slices.Contains(a.recycled, id) {
		panic(fmt.Sprintf("id %d has been deallocated", id))
	}
	a.recycled = append(a.recycled, id)
}

// PidHandle owns a process id until released.
type PidHandle struct {
	pid      int
	alloc    *RecycleAllocator
	released atomic.Bool
}

func allocPid(a *RecycleAllocator) *PidHandle {
	return &PidHandle{pid: a.Alloc(), alloc: a}
}

// Pid returns the id.
func (h *PidHandle) Pid() int {
	return h.pid
}

// Release returns the id to its allocator.
func (h *PidHandle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("pid %d released twice", h.pid))
	}
	h.alloc.Dealloc(h.pid)
}

// KernelStackPosition returns the bottom and top of the kernel stack of
// pid. Stacks grow down from the trampoline with one guard page each.
func KernelStackPosition(pid, pages int) (bottom, top mm.VirtAddr) {
	size := mm.VirtAddr(pages * mm.PageSize)
	top = mm.Trampoline - mm.VirtAddr(pid)*(size+mm.PageSize)
	bottom = top - size
	return bottom, top
}

// kernelSpace is the address space holding every kernel stack.
type kernelSpace struct {
	ms         *mm.MemorySet
	stackPages int
	mu         sync.Mutex
}

func newKernelSpace(frames *mm.FrameAllocator, stackPages int) (*kernelSpace, error) {
	ms, err := mm.NewBare(frames)
	if err != nil {
		return nil, err
	}
	return &kernelSpace{ms: ms, stackPages: stackPages}, nil
}

func (s *kernelSpace) mapped(vpn mm.VirtPageNum) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ms.FindVPN(vpn)
}

// KernelStack is the kernel-mode stack of one process.
type KernelStack struct {
	pid    int
	bottom mm.VirtAddr
	top    mm.VirtAddr
	space  *kernelSpace
}

func newKernelStack(pid int, space *kernelSpace) (*KernelStack, error) {
	bottom, top := KernelStackPosition(pid, space.stackPages)

	space.mu.Lock()
	defer space.mu.Unlock()
	if err := space.ms.InsertFramedArea(bottom, top, mm.PermR|mm.PermW); err != nil {
		return nil, fmt.Errorf("map kernel stack of pid %d: %w", pid, err)
	}
	return &KernelStack{pid: pid, bottom: bottom, top: top, space: space}, nil
}

// Position returns the bottom and top of the stack.
func (ks *KernelStack) Position() (bottom, top mm.VirtAddr) {
	return ks.bottom, ks.top
}

// Top returns the initial stack pointer.
func (ks *KernelStack) Top() mm.VirtAddr {
	return ks.top
}

// Release unmaps the stack and frees its frames.
func (ks *KernelStack) Release() {
	ks.space.mu.Lock()
	defer ks.space.mu.Unlock()
	ks.space.ms.RemoveAreaWithStartVPN(ks.bottom.Floor())
}
