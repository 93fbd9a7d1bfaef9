// Package ulib is the user-side runtime library of kernos programs.
//
// Programs never call into the kernel directly. Every request goes through
// a Machine, which stands for the ecall instruction and for loads and stores
// to the program's own address space. Buffers passed to the kernel are
// staged in a scratch area at the top of the user stack.
package ulib

import (
	"encoding/binary"
	"fmt"
)

// Syscall numbers.
const (
	SyscallWrite       = 64
	SyscallExit        = 93
	SyscallYield       = 124
	SyscallSetPriority = 140
	SyscallGetPid      = 172
	SyscallMunmap      = 215
	SyscallMmap        = 222
	SyscallWaitPid     = 260
	SyscallSpawn       = 400
)

// Standard file descriptors.
const (
	Stdout = 1
)

// Machine executes user-mode instructions that leave the program.
type Machine interface {
	// Ecall traps into the kernel.
	Ecall(id uint64, args [3]uint64) int64
	// Load reads user memory. A fault does not return.
	Load(va uint64, buf []byte)
	// Store writes user memory. A fault does not return.
	Store(va uint64, data []byte)
}

// scratchSize is the part of the user stack used for staging buffers.
const scratchSize = 512

// Env is the view a running program has of the machine.
type Env struct {
	m  Machine
	sp uint64
}

// NewEnv binds a program to a machine. sp is the initial user stack pointer.
func NewEnv(m Machine, sp uint64) *Env {
	return &Env{m: m, sp: sp}
}

func (e *Env) scratch() uint64 {
	return e.sp - scratchSize
}

// Write writes data to a file descriptor and returns the bytes written.
func (e *Env) Write(fd int, data []byte) int64 {
	var total int64
	for len(data) > 0 {
		chunk := data
		if len(chunk) > scratchSize {
			chunk = chunk[:scratchSize]
		}
		e.m.Store(e.scratch(), chunk)
		n := e.m.Ecall(SyscallWrite, [3]uint64{uint64(fd), e.scratch(), uint64(len(chunk))})
		if n < 0 {
			return n
		}
		total += n
		data = data[len(chunk):]
	}
	return total
}

// Printf formats to standard output.
func (e *Env) Printf(format string, args ...any) {
	e.Write(Stdout, []byte(fmt.Sprintf(format, args...)))
}

// Exit terminates the program. It does not return.
func (e *Env) Exit(code int) {
	e.m.Ecall(SyscallExit, [3]uint64{uint64(int64(code))})
	panic("exit returned")
}

// Yield gives up the processor.
func (e *Env) Yield() int64 {
	return e.m.Ecall(SyscallYield, [3]uint64{})
}

// GetPid returns the caller's process id.
func (e *Env) GetPid() int {
	return int(e.m.Ecall(SyscallGetPid, [3]uint64{}))
}

// SetPriority sets the caller's scheduling priority.
func (e *Env) SetPriority(prio int64) int64 {
	return e.m.Ecall(SyscallSetPriority, [3]uint64{uint64(prio)})
}

// Mmap maps [start, start+length) with the rwx bits in port.
func (e *Env) Mmap(start, length, port uint64) int64 {
	return e.m.Ecall(SyscallMmap, [3]uint64{start, length, port})
}

// Munmap unmaps [start, start+length).
func (e *Env) Munmap(start, length uint64) int64 {
	return e.m.Ecall(SyscallMunmap, [3]uint64{start, length})
}

// Spawn starts the named program as a child and returns its pid, or -1.
func (e *Env) Spawn(name string) int64 {
	if len(name) > scratchSize {
		return -1
	}
	e.m.Store(e.scratch(), []byte(name))
	return e.m.Ecall(SyscallSpawn, [3]uint64{e.scratch(), uint64(len(name))})
}

// WaitPid waits for the child pid (-1 for any) to exit. It returns the
// child's pid and exit code, or -1 when there is no such child.
func (e *Env) WaitPid(pid int) (int, int32) {
	for {
		ret := e.m.Ecall(SyscallWaitPid, [3]uint64{uint64(int64(pid)), e.scratch()})
		if ret != -2 {
			if ret < 0 {
				return int(ret), 0
			}
			return int(ret), int32(e.LoadUint32(e.scratch()))
		}
		e.Yield()
	}
}

// Wait waits for any child.
func (e *Env) Wait() (int, int32) {
	return e.WaitPid(-1)
}

// Load reads user memory.
func (e *Env) Load(va uint64, buf []byte) {
	e.m.Load(va, buf)
}

// Store writes user memory.
func (e *Env) Store(va uint64, data []byte) {
	e.m.Store(va, data)
}

// LoadUint32 reads a little-endian uint32.
func (e *Env) LoadUint32(va uint64) uint32 {
	var b [4]byte
	e.m.Load(va, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// LoadUint64 reads a little-endian uint64.
func (e *Env) LoadUint64(va uint64) uint64 {
	var b [8]byte
	e.m.Load(va, b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// StoreUint64 writes a little-endian uint64.
func (e *Env) StoreUint64(va uint64, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.m.Store(va, b[:])
}
