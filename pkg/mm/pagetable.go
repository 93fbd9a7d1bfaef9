package mm

import (
	"encoding/binary"
	"fmt"
)

// PTEFlags are the low eight bits of a page table entry.
type PTEFlags uint8

const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExec
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

// PageTableEntry is an SV39 page table entry: ppn << 10 | flags.
type PageTableEntry uint64

// NewPTE builds an entry pointing at ppn.
func NewPTE(ppn PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<10 | uint64(flags))
}

// PPN returns the frame the entry points at.
func (e PageTableEntry) PPN() PhysPageNum {
	return PhysPageNum(uint64(e)>>10) & ((1 << 44) - 1)
}

// Flags returns the entry flags.
func (e PageTableEntry) Flags() PTEFlags {
	return PTEFlags(e)
}

// IsValid reports whether the V bit is set.
func (e PageTableEntry) IsValid() bool { return e.Flags()&PTEValid != 0 }

// Readable reports whether the R bit is set.
func (e PageTableEntry) Readable() bool { return e.Flags()&PTERead != 0 }

// Writable reports whether the W bit is set.
func (e PageTableEntry) Writable() bool { return e.Flags()&PTEWrite != 0 }

// Executable reports whether the X bit is set.
func (e PageTableEntry) Executable() bool { return e.Flags()&PTEExec != 0 }

// User reports whether the U bit is set.
func (e PageTableEntry) User() bool { return e.Flags()&PTEUser != 0 }

const pteSize = 8

// PageTable is a three-level page table stored in simulated frames.
type PageTable struct {
	root  PhysPageNum
	alloc *FrameAllocator
	// frames owns the root and every intermediate node.
	frames []*FrameTracker
}

// NewPageTable allocates an empty page table.
func NewPageTable(alloc *FrameAllocator) (*PageTable, error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{
		root:   root.PPN,
		alloc:  alloc,
		frames: []*FrameTracker{root},
	}, nil
}

// Token returns the satp value selecting this table in SV39 mode.
func (pt *PageTable) Token() uint64 {
	return 8<<60 | uint64(pt.root)
}

func (pt *PageTable) readPTE(node PhysPageNum, idx int) PageTableEntry {
	page := pt.alloc.Page(node)
	return PageTableEntry(binary.LittleEndian.Uint64(page[idx*pteSize:]))
}

func (pt *PageTable) writePTE(node PhysPageNum, idx int, e PageTableEntry) {
	page := pt.alloc.Page(node)
	binary.LittleEndian.PutUint64(page[idx*pteSize:], uint64(e))
}

// walk returns the node and index of the leaf slot for vpn. With create set,
// missing intermediate nodes are allocated.
func (pt *PageTable) walk(vpn VirtPageNum, create bool) (PhysPageNum, int, bool, error) {
	idxs := vpn.Indexes()
	node := pt.root
	for level, idx := range idxs {
		if level == len(idxs)-1 {
			return node, idx, true, nil
		}
		e := pt.readPTE(node, idx)
		if !e.IsValid() {
			if !create {
				return 0, 0, false, nil
			}
			frame, err := pt.alloc.Alloc()
			if err != nil {
				return 0, 0, false, err
			}
			pt.frames = append(pt.frames, frame)
			e = NewPTE(frame.PPN, PTEValid)
			pt.writePTE(node, idx, e)
		}
		node = e.PPN()
	}
	return 0, 0, false, nil
}

// Map installs a leaf entry for vpn. Mapping a page twice is a kernel bug.
func (pt *PageTable) Map(vpn VirtPageNum, ppn PhysPageNum, flags PTEFlags) error {
	node, idx, _, err := pt.walk(vpn, true)
	if err != nil {
		return err
	}
	if pt.readPTE(node, idx).IsValid() {
		panic(fmt.Sprintf("%v is mapped before mapping", vpn))
	}
	pt.writePTE(node, idx, NewPTE(ppn, flags|PTEValid))
	return nil
}

// Unmap clears the leaf entry for vpn. Unmapping an invalid page is a kernel bug.
func (pt *PageTable) Unmap(vpn VirtPageNum) {
	node, idx, ok, _ := pt.walk(vpn, false)
	if !ok || !pt.readPTE(node, idx).IsValid() {
		panic(fmt.Sprintf("%v is invalid before unmapping", vpn))
	}
	pt.writePTE(node, idx, 0)
}

// Translate returns the leaf entry for vpn. The boolean is false when no
// leaf slot exists; the entry itself may still be invalid.
func (pt *PageTable) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	node, idx, ok, _ := pt.walk(vpn, false)
	if !ok {
		return 0, false
	}
	return pt.readPTE(node, idx), true
}

// Release frees the root and intermediate nodes. Leaf frames belong to map
// areas and are not touched.
func (pt *PageTable) Release() {
	for _, f := range pt.frames {
		f.Release()
	}
	pt.frames = nil
}
