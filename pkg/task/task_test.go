package task

import (
	"slices"
	"testing"

	"kernos/pkg/mm"
)

// TestTaskStateTransitions tests the transition table.
func TestTaskStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"Uninit to Ready", StatusUninit, StatusReady, true},
		{"Ready to Running", StatusReady, StatusRunning, true},
		{"Running to Ready", StatusRunning, StatusReady, true},
		{"Running to Zombie", StatusRunning, StatusZombie, true},
		{"Ready to Zombie", StatusReady, StatusZombie, false},
		{"Zombie to Ready", StatusZombie, StatusReady, false},
		{"Zombie to Running", StatusZombie, StatusRunning, false},
		{"Uninit to Running", StatusUninit, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestInvalidTransitionPanics tests that a lost task is a kernel bug.
func TestInvalidTransitionPanics(t *testing.T) {
	inner := &taskInner{status: StatusReady}
	defer func() {
		if r := recover(); r == nil {
			t.Error("transitionTo(zombie) from ready should panic")
		}
	}()
	inner.transitionTo(StatusZombie)
}

// TestRecycleAllocator tests id allocation and reuse.
func TestRecycleAllocator(t *testing.T) {
	a := NewRecycleAllocator()

	for want := 0; want < 3; want++ {
		if got := a.Alloc(); got != want {
			t.Errorf("Alloc() = %d, want %d", got, want)
		}
	}

	a.Dealloc(1)
	if got := a.Alloc(); got != 1 {
		t.Errorf("Alloc() after Dealloc(1) = %d, want 1", got)
	}
	if got := a.Alloc(); got != 3 {
		t.Errorf("Alloc() = %d, want 3", got)
	}
}

// TestRecycleAllocatorPanics tests freeing ids nobody holds.
func TestRecycleAllocatorPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a *RecycleAllocator)
	}{
		{"never allocated", func(a *RecycleAllocator) { a.Dealloc(5) }},
		{"double free", func(a *RecycleAllocator) {
			id := a.Alloc()
			a.Dealloc(id)
			a.Dealloc(id)
		}},
		{"pid released twice", func(a *RecycleAllocator) {
			h := allocPid(a)
			h.Release()
			h.Release()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic", tt.name)
				}
			}()
			tt.fn(NewRecycleAllocator())
		})
	}
}

// TestKernelStackPosition tests the stack layout below the trampoline.
func TestKernelStackPosition(t *testing.T) {
	size := mm.VirtAddr(2 * mm.PageSize)

	bottom, top := KernelStackPosition(0, 2)
	if top != mm.Trampoline {
		t.Errorf("top of pid 0 = %v, want %v", top, mm.VirtAddr(mm.Trampoline))
	}
	if bottom != top-size {
		t.Errorf("bottom of pid 0 = %v, want %v", bottom, top-size)
	}

	_, top1 := KernelStackPosition(1, 2)
	if want := bottom - mm.PageSize; top1 != want {
		t.Errorf("top of pid 1 = %v, want %v (one guard page below pid 0)", top1, want)
	}
}

// TestKernelStacksDoNotOverlap tests stacks of live tasks.
func TestKernelStacksDoNotOverlap(t *testing.T) {
	k := newTestKernel(t, map[string]func(*Kernel) int{
		"initproc": func(*Kernel) int { return 0 },
	})

	tasks := make([]*TaskControlBlock, 0)
	for i := 0; i < 4; i++ {
		task, err := k.NewTask("initproc")
		if err != nil {
			t.Fatalf("NewTask() error = %v", err)
		}
		tasks = append(tasks, task)
	}

	for i, a := range tasks {
		ab, at := a.KernelStack().Position()
		if !k.KernelStackMapped(ab) || !k.KernelStackMapped(at-1) {
			t.Errorf("kernel stack of pid %d is not mapped", a.Pid())
		}
		for _, b := range tasks[i+1:] {
			bb, bt := b.KernelStack().Position()
			if ab < bt && bb < at {
				t.Errorf("kernel stacks of pid %d and %d overlap", a.Pid(), b.Pid())
			}
		}
	}

	last := tasks[len(tasks)-1]
	bottom, _ := last.KernelStack().Position()
	last.release()
	if k.KernelStackMapped(bottom) {
		t.Errorf("kernel stack of pid %d still mapped after release", last.Pid())
	}

	again, err := k.NewTask("initproc")
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if again.Pid() != last.Pid() {
		t.Errorf("Pid() = %d, want recycled pid %d", again.Pid(), last.Pid())
	}
}

// TestTaskManagerFIFO tests the ready queue order.
func TestTaskManagerFIFO(t *testing.T) {
	k := newTestKernel(t, map[string]func(*Kernel) int{
		"initproc": func(*Kernel) int { return 0 },
	})
	m := NewTaskManager()

	if got := m.Fetch(); got != nil {
		t.Errorf("Fetch() on empty queue = %v, want nil", got)
	}

	want := make([]int, 0)
	for i := 0; i < 3; i++ {
		task, err := k.NewTask("initproc")
		if err != nil {
			t.Fatalf("NewTask() error = %v", err)
		}
		if task.Status() != StatusReady {
			t.Errorf("Status() = %s, want %s", task.Status(), StatusReady)
		}
		m.Add(task)
		want = append(want, task.Pid())
	}

	if got := m.Pids(); !slices.Equal(got, want) {
		t.Errorf("Pids() = %v, want %v", got, want)
	}
	for _, pid := range want {
		if got := m.Fetch(); got.Pid() != pid {
			t.Errorf("Fetch() = pid %d, want %d", got.Pid(), pid)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

// TestSwitch tests control passing between two flows.
func TestSwitch(t *testing.T) {
	main := newIdleContext()
	trace := make([]string, 0)

	var cx Context
	cx = GotoTrapReturn(0x1000, func() {
		trace = append(trace, "task 1")
		Switch(&cx, &main)
		trace = append(trace, "task 2")
		end := ZeroContext()
		Switch(&end, &main)
	})
	if cx.Started() {
		t.Error("Started() = true before the first switch")
	}
	if cx.SP() != 0x1000 {
		t.Errorf("SP() = %#x, want 0x1000", cx.SP())
	}

	Switch(&main, &cx)
	trace = append(trace, "main 1")
	Switch(&main, &cx)
	trace = append(trace, "main 2")

	want := []string{"task 1", "main 1", "task 2", "main 2"}
	if !slices.Equal(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

// TestSwitchNilPanics tests the nil context check.
func TestSwitchNilPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Switch(nil, nil) should panic")
		}
	}()
	Switch(nil, nil)
}
