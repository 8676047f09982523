// Package pmm describes the unit of physical memory handed out by a
// PhysicalAllocator collaborator: a zero-based physical frame index. The
// Frame Table (kernel/mem/frame) and the simulated allocators under
// iface/sim use this type to talk about "which physical page" without
// committing to a particular allocator's internal representation.
package pmm

import (
	"math"

	"github.com/gopheros/vmpager/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uint64

// InvalidFrame is returned by allocators when they fail to reserve a frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f is a real, allocated frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the byte offset of this frame within its backing pool.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}
