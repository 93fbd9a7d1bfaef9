package mm

import "strings"

// MapType selects how an area finds its frames.
type MapType int

const (
	// MapIdentical maps every page onto the frame with the same number.
	MapIdentical MapType = iota
	// MapFramed backs every page with a freshly allocated frame.
	MapFramed
)

// MapPermission is the permission set of a map area. The bits line up with
// the PTE flags.
type MapPermission uint8

const (
	PermR MapPermission = 1 << 1
	PermW MapPermission = 1 << 2
	PermX MapPermission = 1 << 3
	PermU MapPermission = 1 << 4

	permMask = PermR | PermW | PermX | PermU
)

// PermissionFromBits converts raw bits into a permission set. It fails when a
// bit outside R|W|X|U is set.
func PermissionFromBits(bits uint8) (MapPermission, bool) {
	p := MapPermission(bits)
	if p&^permMask != 0 {
		return 0, false
	}
	return p, true
}

func (p MapPermission) String() string {
	var sb strings.Builder
	for _, c := range []struct {
		bit MapPermission
		ch  byte
	}{{PermR, 'r'}, {PermW, 'w'}, {PermX, 'x'}, {PermU, 'u'}} {
		if p&c.bit != 0 {
			sb.WriteByte(c.ch)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// MapArea is a contiguous range of virtual pages with one permission set.
type MapArea struct {
	vpns    VPNRange
	mapType MapType
	perm    MapPermission
	// mapped tracks the pages currently installed. Framed pages own their
	// frame; identical pages map to nil.
	mapped map[VirtPageNum]*FrameTracker
}

// NewMapArea covers every page touched by [start, end).
func NewMapArea(start, end VirtAddr, mapType MapType, perm MapPermission) *MapArea {
	return &MapArea{
		vpns:    NewVPNRange(start.Floor(), end.Ceil()),
		mapType: mapType,
		perm:    perm,
		mapped:  make(map[VirtPageNum]*FrameTracker),
	}
}

// Range returns the pages the area was created over.
func (a *MapArea) Range() VPNRange { return a.vpns }

// Permission returns the area permission set.
func (a *MapArea) Permission() MapPermission { return a.perm }

// Pages returns the number of pages currently mapped by the area.
func (a *MapArea) Pages() int { return len(a.mapped) }

func (a *MapArea) mapOne(pt *PageTable, vpn VirtPageNum) error {
	var ppn PhysPageNum
	var frame *FrameTracker
	switch a.mapType {
	case MapIdentical:
		ppn = PhysPageNum(vpn)
	case MapFramed:
		f, err := pt.alloc.Alloc()
		if err != nil {
			return err
		}
		frame, ppn = f, f.PPN
	}
	if err := pt.Map(vpn, ppn, PTEFlags(a.perm)); err != nil {
		if frame != nil {
			frame.Release()
		}
		return err
	}
	a.mapped[vpn] = frame
	return nil
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) bool {
	frame, ok := a.mapped[vpn]
	if !ok {
		return false
	}
	pt.Unmap(vpn)
	if frame != nil {
		frame.Release()
	}
	delete(a.mapped, vpn)
	return true
}

// mapAll installs every page. On failure the pages mapped so far are removed
// again so the table is left as it was.
func (a *MapArea) mapAll(pt *PageTable) error {
	var err error
	a.vpns.Each(func(vpn VirtPageNum) bool {
		err = a.mapOne(pt, vpn)
		return err == nil
	})
	if err != nil {
		a.unmapAll(pt)
	}
	return err
}

func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := range a.mapped {
		a.unmapOne(pt, vpn)
	}
}

// copyData fills the area's frames with data, page by page from the start.
func (a *MapArea) copyData(data []byte) {
	vpn := a.vpns.Start
	for len(data) > 0 && vpn < a.vpns.End {
		frame := a.mapped[vpn]
		if frame != nil {
			n := copy(frame.Bytes(), data)
			data = data[n:]
		}
		vpn++
	}
}
