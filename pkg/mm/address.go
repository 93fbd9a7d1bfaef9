package mm

import "fmt"

// Page geometry.
const (
	// PageSizeBits is the number of offset bits in an address.
	PageSizeBits = 12
	// PageSize is the size of a page and of a physical frame in bytes.
	PageSize = 1 << PageSizeBits
	// VAWidth is the number of significant virtual address bits.
	VAWidth = 39
	// MaxVirtAddr is one past the highest virtual address.
	MaxVirtAddr VirtAddr = 1 << VAWidth
	// Trampoline is the virtual address of the highest page.
	Trampoline VirtAddr = MaxVirtAddr - PageSize
)

// VirtAddr is a virtual address.
type VirtAddr uint64

// VirtPageNum is a virtual page number.
type VirtPageNum uint64

// PhysAddr is a physical address.
type PhysAddr uint64

// PhysPageNum is a physical page number.
type PhysPageNum uint64

// Floor returns the page containing the address.
func (va VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(va / PageSize)
}

// Ceil returns the first page at or above the address.
func (va VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((va + PageSize - 1) / PageSize)
}

// PageOffset returns the offset of the address within its page.
func (va VirtAddr) PageOffset() uint64 {
	return uint64(va) & (PageSize - 1)
}

// Aligned reports whether the address is on a page boundary.
func (va VirtAddr) Aligned() bool {
	return va.PageOffset() == 0
}

func (va VirtAddr) String() string {
	return fmt.Sprintf("va:%#x", uint64(va))
}

// Addr returns the first address of the page.
func (vpn VirtPageNum) Addr() VirtAddr {
	return VirtAddr(vpn) << PageSizeBits
}

// Indexes returns the three page table indexes of the page, root first.
func (vpn VirtPageNum) Indexes() [3]int {
	v := uint64(vpn)
	var idx [3]int
	for i := 2; i >= 0; i-- {
		idx[i] = int(v & 511)
		v >>= 9
	}
	return idx
}

func (vpn VirtPageNum) String() string {
	return fmt.Sprintf("vpn:%#x", uint64(vpn))
}

// Addr returns the first address of the frame.
func (ppn PhysPageNum) Addr() PhysAddr {
	return PhysAddr(ppn) << PageSizeBits
}

func (ppn PhysPageNum) String() string {
	return fmt.Sprintf("ppn:%#x", uint64(ppn))
}

// Floor returns the frame containing the address.
func (pa PhysAddr) Floor() PhysPageNum {
	return PhysPageNum(pa / PageSize)
}

// VPNRange is a half-open range of virtual pages.
type VPNRange struct {
	Start VirtPageNum
	End   VirtPageNum
}

// NewVPNRange returns the range [start, end). An inverted range is empty.
func NewVPNRange(start, end VirtPageNum) VPNRange {
	if end < start {
		end = start
	}
	return VPNRange{Start: start, End: end}
}

// Len returns the number of pages in the range.
func (r VPNRange) Len() int {
	return int(r.End - r.Start)
}

// Contains reports whether the page lies in the range.
func (r VPNRange) Contains(vpn VirtPageNum) bool {
	return vpn >= r.Start && vpn < r.End
}

// Overlaps reports whether the two ranges share a page.
func (r VPNRange) Overlaps(o VPNRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Each calls fn for every page in order until fn returns false.
func (r VPNRange) Each(fn func(vpn VirtPageNum) bool) {
	for vpn := r.Start; vpn < r.End; vpn++ {
		if !fn(vpn) {
			return
		}
	}
}
