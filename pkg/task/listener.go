package task

import "sync"

// Listener is notified of scheduling events. Callbacks run on the flow that
// caused the event with no task lock held, and must not switch.
type Listener interface {
	// TaskScheduled is called right before the scheduler switches into t.
	TaskScheduled(t *TaskControlBlock)
	// TaskSuspended is called when t gives up the processor.
	TaskSuspended(t *TaskControlBlock)
	// TaskExited is called when t becomes a zombie.
	TaskExited(t *TaskControlBlock, exitCode int)
}

type listenerSet struct {
	ls []Listener
	mu sync.RWMutex
}

func (s *listenerSet) add(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ls = append(s.ls, l)
}

func (s *listenerSet) snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ls
}

func (s *listenerSet) scheduled(t *TaskControlBlock) {
	for _, l := range s.snapshot() {
		l.TaskScheduled(t)
	}
}

func (s *listenerSet) suspended(t *TaskControlBlock) {
	for _, l := range s.snapshot() {
		l.TaskSuspended(t)
	}
}

func (s *listenerSet) exited(t *TaskControlBlock, code int) {
	for _, l := range s.snapshot() {
		l.TaskExited(t, code)
	}
}
