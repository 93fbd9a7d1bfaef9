package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/ulib"
)

// Kernel errors.
var (
	ErrNoSuchApp     = errors.New("no such app")
	ErrInvalidOption = errors.New("invalid kernel option")
	ErrInitExists    = errors.New("init process already added")
)

// Options configures a kernel.
type Options struct {
	// InitProc is the app the init process is created from.
	InitProc string
	// Frames is the number of physical frames.
	Frames int
	// KernelStackPages is the size of every kernel stack.
	KernelStackPages int
	// UserStackPages is the size of every user stack.
	UserStackPages int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		InitProc:         "ch5b_initproc",
		Frames:           8192,
		KernelStackPages: 2,
		UserStackPages:   2,
	}
}

// Kernel ties the task core together: frames, the kernel address space, the
// pid allocator, the ready queue and the processor.
type Kernel struct {
	opts      Options
	frames    *mm.FrameAllocator
	kspace    *kernelSpace
	pids      *RecycleAllocator
	manager   *TaskManager
	processor *Processor
	registry  *loader.Registry
	listeners listenerSet

	// machine runs user programs. It must be installed before Run.
	machine ulib.Machine

	initproc *TaskControlBlock
	initMu   sync.Mutex

	// tasks maps pids to live tasks without owning them.
	tasks sync.Map

	haltOnce     sync.Once
	initExitCode atomic.Int64
}

// NewKernel creates a kernel loading apps from reg.
func NewKernel(opts Options, reg *loader.Registry) (*Kernel, error) {
	if opts.Frames <= 0 || opts.KernelStackPages <= 0 || opts.UserStackPages <= 0 || opts.InitProc == "" {
		return nil, ErrInvalidOption
	}
	if reg == nil {
		reg = loader.Default()
	}

	// frame 0 is never handed out so a zero ppn always means "none"
	frames := mm.NewFrameAllocator(1, opts.Frames)
	kspace, err := newKernelSpace(frames, opts.KernelStackPages)
	if err != nil {
		return nil, fmt.Errorf("create kernel space: %w", err)
	}

	k := &Kernel{
		opts:     opts,
		frames:   frames,
		kspace:   kspace,
		pids:     NewRecycleAllocator(),
		manager:  NewTaskManager(),
		registry: reg,
	}
	k.processor = newProcessor(k.manager, &k.listeners)
	return k, nil
}

// InstallMachine sets what user programs run on.
func (k *Kernel) InstallMachine(m ulib.Machine) {
	k.machine = m
}

// AddListener registers a scheduling event listener.
func (k *Kernel) AddListener(l Listener) {
	k.listeners.add(l)
}

// Manager returns the ready queue.
func (k *Kernel) Manager() *TaskManager {
	return k.manager
}

// Processor returns the processor.
func (k *Kernel) Processor() *Processor {
	return k.processor
}

// Frames returns the physical frame allocator.
func (k *Kernel) Frames() *mm.FrameAllocator {
	return k.frames
}

// KernelStackMapped reports whether the page at va is mapped in the kernel
// address space.
func (k *Kernel) KernelStackMapped(va mm.VirtAddr) bool {
	return k.kspace.mapped(va.Floor())
}

// NewTask creates a task from the named app. The task is Ready but not
// queued; pass it to AddTask.
func (k *Kernel) NewTask(name string) (*TaskControlBlock, error) {
	img, ok := k.registry.GetAppDataByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchApp, name)
	}
	return k.newTask(img)
}

func (k *Kernel) newTask(img *loader.Image) (*TaskControlBlock, error) {
	ms, userSP, err := mm.FromSegments(k.frames, img.Segments, k.opts.UserStackPages)
	if err != nil {
		return nil, fmt.Errorf("build address space of %s: %w", img.Name, err)
	}

	pid := allocPid(k.pids)
	kstack, err := newKernelStack(pid.Pid(), k.kspace)
	if err != nil {
		pid.Release()
		ms.Release()
		return nil, err
	}

	t := &TaskControlBlock{
		pid:    pid,
		kstack: kstack,
		name:   img.Name,
	}
	t.inner = taskInner{
		taskCx:    GotoTrapReturn(uint64(kstack.Top()), k.trapReturn),
		status:    StatusUninit,
		memorySet: ms,
		userSP:    userSP,
		program:   img.Program,
		children:  make([]*TaskControlBlock, 0),
	}
	t.inner.transitionTo(StatusReady)

	k.tasks.Store(t.Pid(), weak.Make(t))
	slog.Debug("task created", "pid", t.Pid(), "name", img.Name)
	return t, nil
}

// AddTask puts a ready task at the back of the ready queue.
func (k *Kernel) AddTask(t *TaskControlBlock) {
	k.manager.Add(t)
}

// AddInitProc creates the init process and queues it.
func (k *Kernel) AddInitProc() error {
	k.initMu.Lock()
	defer k.initMu.Unlock()

	if k.initproc != nil {
		return ErrInitExists
	}
	t, err := k.NewTask(k.opts.InitProc)
	if err != nil {
		return fmt.Errorf("create init process: %w", err)
	}
	k.initproc = t
	k.AddTask(t)
	return nil
}

// InitProc returns the init process, or nil before AddInitProc.
func (k *Kernel) InitProc() *TaskControlBlock {
	k.initMu.Lock()
	defer k.initMu.Unlock()
	return k.initproc
}

// Lookup returns the live task with the given pid.
func (k *Kernel) Lookup(pid int) *TaskControlBlock {
	v, ok := k.tasks.Load(pid)
	if !ok {
		return nil
	}
	return v.(weak.Pointer[TaskControlBlock]).Value()
}

// Tasks returns every task that has not been reaped.
func (k *Kernel) Tasks() []*TaskControlBlock {
	tasks := make([]*TaskControlBlock, 0)
	k.tasks.Range(func(key, value any) bool {
		if t := value.(weak.Pointer[TaskControlBlock]).Value(); t != nil {
			tasks = append(tasks, t)
		}
		return true
	})
	return tasks
}

// Run drives the scheduler loop until the init process exits or ctx is
// done.
func (k *Kernel) Run(ctx context.Context) error {
	if k.machine == nil {
		return errors.New("no machine installed")
	}
	return k.processor.Run(ctx)
}

// InitExitCode returns the exit code of the init process once the kernel
// has halted.
func (k *Kernel) InitExitCode() int {
	return int(k.initExitCode.Load())
}

func (k *Kernel) halt(code int) {
	k.haltOnce.Do(func() {
		k.initExitCode.Store(int64(code))
		k.processor.halt()
	})
}

// CurrentTask returns the running task, or nil.
func (k *Kernel) CurrentTask() *TaskControlBlock {
	return k.processor.CurrentTask()
}

// CurrentUserToken returns the satp value of the running task.
func (k *Kernel) CurrentUserToken() uint64 {
	return k.mustCurrent().Token()
}

func (k *Kernel) mustCurrent() *TaskControlBlock {
	t := k.processor.CurrentTask()
	if t == nil {
		panic("no process was running")
	}
	return t
}

// trapReturn is where every task starts: it enters the user program and
// turns its return into an exit.
func (k *Kernel) trapReturn() {
	t := k.mustCurrent()

	t.mu.Lock()
	program, sp := t.inner.program, t.inner.userSP
	t.mu.Unlock()

	code := program(ulib.NewEnv(k.machine, uint64(sp)))
	k.ExitCurrentAndRunNext(code)
}

var defaultKernel atomic.Pointer[Kernel]

// SetDefault installs the process-wide kernel used by the package-level
// entry points.
func SetDefault(k *Kernel) {
	defaultKernel.Store(k)
}

// Default returns the process-wide kernel, or nil.
func Default() *Kernel {
	return defaultKernel.Load()
}

func mustDefault() *Kernel {
	k := defaultKernel.Load()
	if k == nil {
		panic("kernel not initialized")
	}
	return k
}
