package mm

import (
	"errors"
	"fmt"
	"sync"
)

// Frame allocation errors.
var (
	ErrOutOfFrames = errors.New("out of physical frames")
)

// FrameAllocator hands out physical frames from a fixed pool.
// Recycled frames are reused before untouched ones.
type FrameAllocator struct {
	// current is the next never-allocated frame.
	current PhysPageNum
	// end is one past the last frame of the pool.
	end PhysPageNum
	// recycled holds freed frames, most recent last.
	recycled []PhysPageNum
	// pages holds the contents of allocated frames.
	pages map[PhysPageNum]*[PageSize]byte
	mu    sync.Mutex
}

// NewFrameAllocator creates an allocator owning n frames starting at start.
func NewFrameAllocator(start PhysPageNum, n int) *FrameAllocator {
	return &FrameAllocator{
		current:  start,
		end:      start + PhysPageNum(n),
		recycled: make([]PhysPageNum, 0),
		pages:    make(map[PhysPageNum]*[PageSize]byte),
	}
}

// Alloc allocates a zero-filled frame.
func (a *FrameAllocator) Alloc() (*FrameTracker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ppn PhysPageNum
	if n := len(a.recycled); n > 0 {
		ppn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else if a.current < a.end {
		ppn = a.current
		a.current++
	} else {
		return nil, ErrOutOfFrames
	}

	a.pages[ppn] = new([PageSize]byte)
	return &FrameTracker{PPN: ppn, alloc: a}, nil
}

func (a *FrameAllocator) dealloc(ppn PhysPageNum) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pages[ppn]; !ok {
		panic(fmt.Sprintf("frame %v has not been allocated", ppn))
	}
	delete(a.pages, ppn)
	a.recycled = append(a.recycled, ppn)
}

// Free returns the number of frames still available.
func (a *FrameAllocator) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.end-a.current) + len(a.recycled)
}

// InUse returns the number of allocated frames.
func (a *FrameAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}

// Page returns the contents of an allocated frame. It panics if the frame
// is not allocated.
func (a *FrameAllocator) Page(ppn PhysPageNum) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pages[ppn]
	if !ok {
		panic(fmt.Sprintf("access to unallocated frame %v", ppn))
	}
	return p[:]
}

// FrameTracker owns one allocated frame until Release is called.
type FrameTracker struct {
	PPN   PhysPageNum
	alloc *FrameAllocator
}

// Bytes returns the frame contents.
func (f *FrameTracker) Bytes() []byte {
	return f.alloc.Page(f.PPN)
}

// Release returns the frame to its allocator.
func (f *FrameTracker) Release() {
	f.alloc.dealloc(f.PPN)
}
