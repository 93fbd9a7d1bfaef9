package task

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// Processor is the state of the single logical core: the running task and
// the scheduler's own context.
type Processor struct {
	current *TaskControlBlock
	mu      sync.Mutex

	// idleCx is where the scheduler loop parks while a task runs.
	idleCx Context

	manager   *TaskManager
	listeners *listenerSet
	halted    chan struct{}
	running   atomic.Bool
}

func newProcessor(manager *TaskManager, listeners *listenerSet) *Processor {
	return &Processor{
		idleCx:    newIdleContext(),
		manager:   manager,
		listeners: listeners,
		halted:    make(chan struct{}),
	}
}

// CurrentTask returns the running task without giving it up.
func (p *Processor) CurrentTask() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// TakeCurrentTask clears the current slot and returns what it held.
func (p *Processor) TakeCurrentTask() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.current
	p.current = nil
	return t
}

func (p *Processor) setCurrent(t *TaskControlBlock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
}

// Schedule saves the calling flow into switchedCx and returns control to
// the scheduler loop.
func (p *Processor) Schedule(switchedCx *Context) {
	Switch(switchedCx, &p.idleCx)
}

// Run is the scheduler loop. It takes tasks from the ready queue in order
// and switches into them, spinning while the queue is empty. It returns
// nil once the kernel halts and ctx.Err() when ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		panic("scheduler loop is already running")
	}
	defer p.running.Store(false)

	for {
		select {
		case <-p.halted:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := p.manager.Fetch()
		if t == nil {
			runtime.Gosched()
			continue
		}

		t.mu.Lock()
		nextCx := &t.inner.taskCx
		t.inner.transitionTo(StatusRunning)
		t.mu.Unlock()

		p.setCurrent(t)
		slog.Debug("dispatch", "pid", t.Pid(), "name", t.Name())
		p.listeners.scheduled(t)
		Switch(&p.idleCx, nextCx)
	}
}

func (p *Processor) halt() {
	close(p.halted)
}
