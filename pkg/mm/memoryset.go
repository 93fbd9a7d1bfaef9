package mm

import (
	"errors"
	"fmt"
)

// Memory access errors.
var (
	ErrPageFault = errors.New("page fault")
	ErrOverlap   = errors.New("area overlaps an existing mapping")
)

// FaultError describes a failed user access.
type FaultError struct {
	Addr  VirtAddr
	Write bool
}

func (e *FaultError) Error() string {
	kind := "load"
	if e.Write {
		kind = "store"
	}
	return fmt.Sprintf("%s page fault at %#x", kind, uint64(e.Addr))
}

// Unwrap lets errors.Is match ErrPageFault.
func (e *FaultError) Unwrap() error {
	return ErrPageFault
}

// Segment describes one loadable piece of a program image.
type Segment struct {
	// Start is the virtual address of the first byte.
	Start VirtAddr
	// MemSize is the size in memory; bytes past len(Data) are zero.
	MemSize uint64
	// Data is the initial contents.
	Data []byte
	// Perm is a subset of R|W|X. U is always added.
	Perm MapPermission
}

// MemorySet is an address space: a page table and the areas that own its
// frames.
type MemorySet struct {
	pt    *PageTable
	areas []*MapArea
	alloc *FrameAllocator
}

// NewBare creates an address space with an empty page table.
func NewBare(alloc *FrameAllocator) (*MemorySet, error) {
	pt, err := NewPageTable(alloc)
	if err != nil {
		return nil, err
	}
	return &MemorySet{
		pt:    pt,
		areas: make([]*MapArea, 0),
		alloc: alloc,
	}, nil
}

// FromSegments builds a user address space for a program image and returns
// it with the initial user stack pointer.
func FromSegments(alloc *FrameAllocator, segs []Segment, userStackPages int) (*MemorySet, VirtAddr, error) {
	ms, err := NewBare(alloc)
	if err != nil {
		return nil, 0, err
	}

	var maxEnd VirtPageNum
	for _, seg := range segs {
		end := seg.Start + VirtAddr(seg.MemSize)
		area := NewMapArea(seg.Start, end, MapFramed, (seg.Perm&(PermR|PermW|PermX))|PermU)
		if err := ms.Push(area, seg.Data); err != nil {
			ms.Release()
			return nil, 0, fmt.Errorf("load segment at %v: %w", seg.Start, err)
		}
		if area.Range().End > maxEnd {
			maxEnd = area.Range().End
		}
	}

	// guard page between the image and the stack
	stackBottom := (maxEnd + 1).Addr()
	stackTop := stackBottom + VirtAddr(userStackPages*PageSize)
	if err := ms.InsertFramedArea(stackBottom, stackTop, PermR|PermW|PermU); err != nil {
		ms.Release()
		return nil, 0, fmt.Errorf("map user stack: %w", err)
	}
	return ms, stackTop, nil
}

// Token returns the satp value of the address space.
func (ms *MemorySet) Token() uint64 {
	return ms.pt.Token()
}

// Push maps an area and copies data into it. An area overlapping an existing
// one is rejected before anything is mapped.
func (ms *MemorySet) Push(area *MapArea, data []byte) error {
	overlap := false
	area.Range().Each(func(vpn VirtPageNum) bool {
		overlap = ms.FindVPN(vpn)
		return !overlap
	})
	if overlap {
		return ErrOverlap
	}
	if err := area.mapAll(ms.pt); err != nil {
		return err
	}
	if data != nil {
		area.copyData(data)
	}
	ms.areas = append(ms.areas, area)
	return nil
}

// InsertFramedArea maps [start, end) with fresh frames.
func (ms *MemorySet) InsertFramedArea(start, end VirtAddr, perm MapPermission) error {
	return ms.Push(NewMapArea(start, end, MapFramed, perm), nil)
}

// FindVPN reports whether vpn has a valid mapping.
func (ms *MemorySet) FindVPN(vpn VirtPageNum) bool {
	e, ok := ms.pt.Translate(vpn)
	return ok && e.IsValid()
}

// Translate returns the leaf entry for vpn.
func (ms *MemorySet) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	return ms.pt.Translate(vpn)
}

// DeletePTE removes the mapping and frame of a single page. Areas left
// without pages are dropped. It reports whether a page was removed.
func (ms *MemorySet) DeletePTE(vpn VirtPageNum) bool {
	for i, a := range ms.areas {
		if !a.Range().Contains(vpn) {
			continue
		}
		if a.unmapOne(ms.pt, vpn) {
			if a.Pages() == 0 {
				ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			}
			return true
		}
	}
	return false
}

// RemoveAreaWithStartVPN unmaps the area beginning at vpn.
func (ms *MemorySet) RemoveAreaWithStartVPN(vpn VirtPageNum) bool {
	for i, a := range ms.areas {
		if a.Range().Start == vpn {
			a.unmapAll(ms.pt)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return true
		}
	}
	return false
}

// RecycleDataPages unmaps every area and frees its frames. The page table
// nodes stay allocated until Release.
func (ms *MemorySet) RecycleDataPages() {
	for _, a := range ms.areas {
		a.unmapAll(ms.pt)
	}
	ms.areas = ms.areas[:0]
}

// Release frees everything, page table included.
func (ms *MemorySet) Release() {
	ms.RecycleDataPages()
	ms.pt.Release()
}

// MappedPages returns the number of pages mapped by all areas.
func (ms *MemorySet) MappedPages() int {
	n := 0
	for _, a := range ms.areas {
		n += a.Pages()
	}
	return n
}

// Areas returns the page ranges of the current areas.
func (ms *MemorySet) Areas() []VPNRange {
	ranges := make([]VPNRange, 0, len(ms.areas))
	for _, a := range ms.areas {
		ranges = append(ranges, a.Range())
	}
	return ranges
}

// userPage returns the frame contents behind va if a user access of the
// given kind is allowed.
func (ms *MemorySet) userPage(va VirtAddr, write bool) ([]byte, error) {
	e, ok := ms.pt.Translate(va.Floor())
	if !ok || !e.IsValid() || !e.User() {
		return nil, &FaultError{Addr: va, Write: write}
	}
	if (write && !e.Writable()) || (!write && !e.Readable()) {
		return nil, &FaultError{Addr: va, Write: write}
	}
	return ms.alloc.Page(e.PPN()), nil
}

// Read copies user memory at va into buf.
func (ms *MemorySet) Read(va VirtAddr, buf []byte) error {
	for len(buf) > 0 {
		page, err := ms.userPage(va, false)
		if err != nil {
			return err
		}
		n := copy(buf, page[va.PageOffset():])
		buf = buf[n:]
		va += VirtAddr(n)
	}
	return nil
}

// Write copies data into user memory at va. Pages are checked before any
// byte is written.
func (ms *MemorySet) Write(va VirtAddr, data []byte) error {
	end := va + VirtAddr(len(data))
	for vpn := va.Floor(); vpn < end.Ceil(); vpn++ {
		addr := vpn.Addr()
		if addr < va {
			addr = va
		}
		if _, err := ms.userPage(addr, true); err != nil {
			return err
		}
	}
	for len(data) > 0 {
		page, _ := ms.userPage(va, true)
		n := copy(page[va.PageOffset():], data)
		data = data[n:]
		va += VirtAddr(n)
	}
	return nil
}
