package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattn/go-tty"

	"kernos/pkg/task"
)

// stepper holds every dispatch until a key is pressed on the controlling
// terminal. Pressing q stops the kernel.
type stepper struct {
	tty    *tty.TTY
	cancel context.CancelFunc
	mu     sync.Mutex
	quit   bool
}

func newStepper(cancel context.CancelFunc) (*stepper, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return &stepper{tty: t, cancel: cancel}, nil
}

func (s *stepper) TaskScheduled(t *task.TaskControlBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return
	}

	fmt.Fprintf(s.tty.Output(), "-- dispatch pid %d (%s), any key to continue, q to quit\r\n", t.Pid(), t.Name())
	r, err := s.tty.ReadRune()
	if err != nil {
		slog.Warn("terminal read failed, stepping disabled", "error", err)
		s.quit = true
		return
	}
	if r == 'q' {
		s.quit = true
		s.cancel()
	}
}

func (s *stepper) TaskSuspended(t *task.TaskControlBlock) {
	s.print("-- pid %d suspended\r\n", t.Pid())
}

func (s *stepper) TaskExited(t *task.TaskControlBlock, exitCode int) {
	s.print("-- pid %d exited with %d\r\n", t.Pid(), exitCode)
}

func (s *stepper) print(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.quit {
		fmt.Fprintf(s.tty.Output(), format, args...)
	}
}

func (s *stepper) Close() error {
	return s.tty.Close()
}
