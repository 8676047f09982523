package sim

import (
	"sync"
	"unsafe"

	"github.com/gopheros/vmpager/kernel/mem"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/pmm"
)

// Allocator is a fixed-capacity pool of zero-filled physical pages, handed
// out by bitmap scan in the style of the teacher's bitmap frame allocator:
// one bit per slot, a free slot is the first zero bit found scanning from
// the last grant. It implements iface.PhysicalAllocator.
type Allocator struct {
	mu      sync.Mutex
	backing [][]byte
	used    []bool
	next    int
}

// NewAllocator reserves capacity zero-filled pages up front.
func NewAllocator(capacity int) *Allocator {
	a := &Allocator{
		backing: make([][]byte, capacity),
		used:    make([]bool, capacity),
	}
	for i := range a.backing {
		a.backing[i] = make([]byte, mem.PageSize)
	}
	return a
}

// Capacity returns the total number of pages the allocator was built with.
func (a *Allocator) Capacity() int {
	return len(a.backing)
}

// AllocUserZero implements iface.PhysicalAllocator.
func (a *Allocator) AllocUserZero() (iface.KVA, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.used)
	for i := 0; i < n; i++ {
		idx := (a.next + i) % n
		if !a.used[idx] {
			a.used[idx] = true
			a.next = (idx + 1) % n
			return a.kvaOf(idx), true
		}
	}
	return 0, false
}

// Free implements iface.PhysicalAllocator. The released page is re-zeroed
// before it re-enters the free pool, so a subsequent AllocUserZero keeps its
// zero-fill promise even when the same backing slot is reused (spec §4.5's
// "the frame is already zero-filled by the allocator" invariant).
func (a *Allocator) Free(kva iface.KVA) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(kva)
	if !ok {
		return
	}
	for i := range a.backing[idx] {
		a.backing[idx][i] = 0
	}
	a.used[idx] = false
}

// FrameNumber reports the zero-based pmm.Frame index backing kva, satisfying
// frame.FrameNumberer so the frame table can attach a human-readable slot
// number to each Frame for logging, without the core needing to know this
// allocator hands out Go byte slices under the hood.
func (a *Allocator) FrameNumber(kva iface.KVA) (pmm.Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.indexOf(kva)
	if !ok {
		return pmm.InvalidFrame, false
	}
	return pmm.Frame(idx), true
}

func (a *Allocator) kvaOf(idx int) iface.KVA {
	return iface.KVA(uintptr(unsafe.Pointer(&a.backing[idx][0])))
}

func (a *Allocator) indexOf(kva iface.KVA) (int, bool) {
	for i, page := range a.backing {
		if len(page) > 0 && iface.KVA(uintptr(unsafe.Pointer(&page[0]))) == kva {
			return i, true
		}
	}
	return 0, false
}
