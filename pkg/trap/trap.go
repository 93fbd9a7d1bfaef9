// Package trap connects user programs to the task core. A Dispatcher plays
// the role of the trap handler: it decodes system calls, and it performs
// user loads and stores through the running task's page table, killing the
// task on a page fault.
package trap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"kernos/pkg/mm"
	"kernos/pkg/task"
	"kernos/pkg/ulib"
)

// FaultExitCode is the exit code of a task killed by a page fault.
const FaultExitCode = -2

// Limits on buffers copied in from user memory.
const (
	maxWrite   = 1 << 16
	maxAppName = 256
)

// Dispatcher implements ulib.Machine on top of a kernel.
type Dispatcher struct {
	k   *task.Kernel
	out io.Writer
	mu  sync.Mutex
}

// New creates a dispatcher writing console output to out.
func New(k *task.Kernel, out io.Writer) *Dispatcher {
	return &Dispatcher{k: k, out: out}
}

// Install creates a dispatcher and makes it the kernel's machine.
func Install(k *task.Kernel, out io.Writer) *Dispatcher {
	d := New(k, out)
	k.InstallMachine(d)
	return d
}

// Ecall handles one system call from the running task.
func (d *Dispatcher) Ecall(id uint64, args [3]uint64) int64 {
	switch id {
	case ulib.SyscallWrite:
		return d.sysWrite(args[0], args[1], args[2])
	case ulib.SyscallExit:
		d.k.ExitCurrentAndRunNext(int(int64(args[0])))
		panic("unreachable after exit")
	case ulib.SyscallYield:
		d.k.SuspendCurrentAndRunNext()
		return 0
	case ulib.SyscallSetPriority:
		return d.sysSetPriority(int64(args[0]))
	case ulib.SyscallGetPid:
		return int64(d.k.GetPid())
	case ulib.SyscallMunmap:
		return status(d.k.Munmap(args[0], args[1]))
	case ulib.SyscallMmap:
		return status(d.k.Mmap(args[0], args[1], args[2]))
	case ulib.SyscallWaitPid:
		return d.sysWaitPid(int64(args[0]), args[1])
	case ulib.SyscallSpawn:
		return d.sysSpawn(args[0], args[1])
	default:
		panic(fmt.Sprintf("unsupported syscall id %d", id))
	}
}

// Load copies user memory of the running task into buf.
func (d *Dispatcher) Load(va uint64, buf []byte) {
	t := d.k.CurrentTask()
	if err := t.ReadUser(mm.VirtAddr(va), buf); err != nil {
		d.fault(t, err)
	}
}

// Store copies data into user memory of the running task.
func (d *Dispatcher) Store(va uint64, data []byte) {
	t := d.k.CurrentTask()
	if err := t.WriteUser(mm.VirtAddr(va), data); err != nil {
		d.fault(t, err)
	}
}

// fault kills the running task. It does not return.
func (d *Dispatcher) fault(t *task.TaskControlBlock, err error) {
	slog.Error("page fault in application, kernel killed it", "pid", t.Pid(), "name", t.Name(), "error", err)
	d.k.ExitCurrentAndRunNext(FaultExitCode)
}

func status(err error) int64 {
	if err != nil {
		slog.Debug("syscall failed", "error", err)
		return -1
	}
	return 0
}

func (d *Dispatcher) sysWrite(fd, buf, length uint64) int64 {
	if fd != ulib.Stdout || length > maxWrite {
		return -1
	}
	data := make([]byte, length)
	d.Load(buf, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.out.Write(data)
	if err != nil {
		slog.Warn("console write failed", "error", err)
		return -1
	}
	return int64(n)
}

func (d *Dispatcher) sysSetPriority(prio int64) int64 {
	if prio < 2 || prio > math.MaxUint8 {
		return -1
	}
	d.k.SetPriority(uint8(prio))
	return prio
}

func (d *Dispatcher) sysWaitPid(pid int64, exitCodePtr uint64) int64 {
	child, code, err := d.k.WaitPid(int(pid))
	switch {
	case errors.Is(err, task.ErrChildRunning):
		return -2
	case err != nil:
		return -1
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(code)))
	d.Store(exitCodePtr, b[:])
	return int64(child)
}

func (d *Dispatcher) sysSpawn(namePtr, length uint64) int64 {
	if length > maxAppName {
		return -1
	}
	name := make([]byte, length)
	d.Load(namePtr, name)
	pid, err := d.k.Spawn(string(name))
	if err != nil {
		slog.Debug("spawn failed", "name", string(name), "error", err)
		return -1
	}
	return int64(pid)
}
