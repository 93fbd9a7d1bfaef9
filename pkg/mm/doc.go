/*
Package mm provides the simulated memory management layer used by the kernos
task core.

It models an SV39-style machine on the host:

  - Physical frames are 4 KiB pages handed out by a FrameAllocator. Their
    contents live in host memory and are zero-filled on allocation.
  - A PageTable is a three-level radix tree whose nodes are themselves
    frames. Entries are stored as little-endian uint64 values in those frames.
  - A MemorySet is an address space: one page table plus the list of map
    areas that own the data frames behind it.

# Address Layout

	MaxVirtAddr ┬───────────────┐
	            │ trampoline    │  one page
	Trampoline  ├───────────────┤
	            │ kstack pid 0  │  kernel stacks, one guard page between
	            │ guard         │
	            │ kstack pid 1  │
	            │ ...           │
	            └───────────────┘

User address spaces place their program segments at the addresses the
loader asks for. The user stack goes one guard page above the highest segment.

# Permissions

MapPermission uses the same bit layout as the page table entry flags:

	R = 1 << 1
	W = 1 << 2
	X = 1 << 3
	U = 1 << 4

A user-supplied rwx bitmask therefore translates with (port << 1) | U.
*/
package mm
