package task

import "sync"

// TaskManager is the ready queue. Tasks run in the order they became
// ready.
type TaskManager struct {
	ready []*TaskControlBlock
	mu    sync.Mutex
}

// NewTaskManager creates an empty ready queue.
func NewTaskManager() *TaskManager {
	return &TaskManager{
		ready: make([]*TaskControlBlock, 0),
	}
}

// Add appends a ready task. The caller guarantees the task is not queued
// already.
func (m *TaskManager) Add(t *TaskControlBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, t)
}

// Fetch removes and returns the task at the front, or nil.
func (m *TaskManager) Fetch() *TaskControlBlock {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.ready) == 0 {
		return nil
	}
	t := m.ready[0]
	m.ready[0] = nil
	m.ready = m.ready[1:]
	return t
}

// Len returns the number of queued tasks.
func (m *TaskManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready)
}

// Pids returns the pids in queue order.
func (m *TaskManager) Pids() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pids := make([]int, len(m.ready))
	for i, t := range m.ready {
		pids[i] = t.Pid()
	}
	return pids
}
