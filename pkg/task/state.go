package task

import "fmt"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// StatusUninit is a task under construction.
	StatusUninit TaskStatus = "uninit"
	// StatusReady is a task waiting in the ready queue.
	StatusReady TaskStatus = "ready"
	// StatusRunning is the task the processor is executing.
	StatusRunning TaskStatus = "running"
	// StatusZombie is a task that exited and has not been reaped.
	StatusZombie TaskStatus = "zombie"
)

// StateTransition represents a valid state transition.
type StateTransition struct {
	From TaskStatus
	To   TaskStatus
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Creation: Uninit -> Ready
	{From: StatusUninit, To: StatusReady},
	// Dispatch: Ready -> Running
	{From: StatusReady, To: StatusRunning},
	// Suspend: Running -> Ready
	{From: StatusRunning, To: StatusReady},
	// Exit: Running -> Zombie
	{From: StatusRunning, To: StatusZombie},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to TaskStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// transitionTo moves the task to a new state. The task lock must be held.
// An invalid transition means the kernel lost track of a task.
func (inner *taskInner) transitionTo(to TaskStatus) {
	if !IsValidTransition(inner.status, to) {
		panic(fmt.Sprintf("invalid task state transition %s -> %s", inner.status, to))
	}
	inner.status = to
}
