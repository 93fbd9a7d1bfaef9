/*
Package task provides the process management core of the kernos kernel.

It creates, schedules, suspends and tears down processes on a single
logical processor. It includes:

  - Task control blocks with a per-task lock and a weak parent link
  - A FIFO ready queue (TaskManager)
  - The processor state and the scheduler loop
  - A context switch primitive
  - PID and kernel stack allocation
  - mmap and munmap on the running task's address space

# Task States

A task moves through these states:

  - Uninit: the task is being built
  - Ready: the task waits in the ready queue
  - Running: the task is the processor's current task
  - Zombie: the task exited and waits to be reaped by its parent

# Control Flows

Every task runs on its own goroutine, and so does the scheduler loop.
Switch hands a single run permit from one flow to the next, so exactly one
flow executes kernel code at a time. A task gives the processor back only
through SuspendCurrentAndRunNext or ExitCurrentAndRunNext.

# Usage

Booting a kernel:

	k, err := task.NewKernel(task.DefaultOptions(), reg)
	if err != nil {
		return err
	}
	trap.Install(k, os.Stdout)
	if err := k.AddInitProc(); err != nil {
		return err
	}
	err = k.Run(ctx)

Run returns once the init process exits.
*/
package task
