package task

import (
	"errors"
	"fmt"
	"log/slog"

	"kernos/pkg/mm"
)

// Memory mapping errors.
var (
	ErrUnaligned         = errors.New("start address is not page aligned")
	ErrOutOfRange        = errors.New("range exceeds the user address space")
	ErrOverlap           = errors.New("range overlaps an existing mapping")
	ErrNotMapped         = errors.New("range is not fully mapped")
	ErrInvalidPermission = errors.New("invalid permission bits")
)

// userRange converts a byte range into the pages it touches.
func userRange(start, length uint64) (mm.VPNRange, error) {
	va := mm.VirtAddr(start)
	if !va.Aligned() {
		return mm.VPNRange{}, ErrUnaligned
	}
	end := start + length
	if end < start || end > uint64(mm.Trampoline) {
		return mm.VPNRange{}, ErrOutOfRange
	}
	return mm.NewVPNRange(va.Floor(), mm.VirtAddr(end).Ceil()), nil
}

// portToPermission translates the syscall bitmask (bit 0 read, bit 1 write,
// bit 2 execute) into map permissions. U is always set.
func portToPermission(port uint64) (mm.MapPermission, error) {
	if port&^7 != 0 || port&7 == 0 {
		return 0, ErrInvalidPermission
	}
	perm, ok := mm.PermissionFromBits(uint8(port<<1) | uint8(mm.PermU))
	if !ok {
		return 0, ErrInvalidPermission
	}
	return perm, nil
}

func (t *TaskControlBlock) mmap(start, length, port uint64) error {
	rng, err := userRange(start, length)
	if err != nil {
		return err
	}
	if rng.Len() == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ms := t.inner.memorySet

	var overlap error
	rng.Each(func(vpn mm.VirtPageNum) bool {
		if ms.FindVPN(vpn) {
			overlap = fmt.Errorf("%w: %v", ErrOverlap, vpn)
			return false
		}
		return true
	})
	if overlap != nil {
		return overlap
	}

	perm, err := portToPermission(port)
	if err != nil {
		return err
	}

	slog.Debug("mmap", "pid", t.Pid(), "start", rng.Start.Addr(), "len", length, "perm", perm)
	if err := ms.InsertFramedArea(rng.Start.Addr(), rng.End.Addr(), perm); err != nil {
		return err
	}

	var missing error
	rng.Each(func(vpn mm.VirtPageNum) bool {
		if !ms.FindVPN(vpn) {
			missing = fmt.Errorf("%w: %v after insert", ErrNotMapped, vpn)
			return false
		}
		return true
	})
	return missing
}

func (t *TaskControlBlock) munmap(start, length uint64) error {
	rng, err := userRange(start, length)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ms := t.inner.memorySet

	var missing error
	rng.Each(func(vpn mm.VirtPageNum) bool {
		if !ms.FindVPN(vpn) {
			missing = fmt.Errorf("%w: %v", ErrNotMapped, vpn)
			return false
		}
		return true
	})
	if missing != nil {
		return missing
	}

	slog.Debug("munmap", "pid", t.Pid(), "start", rng.Start.Addr(), "len", length)
	rng.Each(func(vpn mm.VirtPageNum) bool {
		ms.DeletePTE(vpn)
		return true
	})
	return nil
}

// Mmap maps [start, start+length) into the running task with fresh frames.
// Nothing is mapped unless every page is free and port is valid.
func (k *Kernel) Mmap(start, length, port uint64) error {
	return k.mustCurrent().mmap(start, length, port)
}

// Munmap removes [start, start+length) from the running task. Nothing is
// unmapped unless every page is mapped.
func (k *Kernel) Munmap(start, length uint64) error {
	return k.mustCurrent().munmap(start, length)
}
