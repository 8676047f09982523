// Package frame implements the system-wide Frame Table described in spec
// §4.2: a registry of all currently allocated physical user frames, a clock
// cursor for second-chance eviction, and a mutex protecting the ring.
package frame

import (
	"sync"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/pmm"
)

// FrameNumberer is an optional capability a PhysicalAllocator can implement
// to expose the pmm.Frame index backing a KVA, purely for diagnostics: the
// core never branches on Frame.Number, it only surfaces it to logs/metrics.
type FrameNumberer interface {
	FrameNumber(kva iface.KVA) (pmm.Frame, bool)
}

// Frame describes one physical page of user memory and its current
// assignment. Per the design notes in spec §9, it holds a non-owning
// (Owner, VA) handle to the page currently using it rather than a pointer
// back into the owning address space's SPT.
type Frame struct {
	// KVA is the kernel-accessible address of the backing physical page.
	KVA iface.KVA
	// Owner and VA identify the page currently occupying this frame.
	// Meaningful only when inUse is true.
	Owner iface.SpaceID
	VA    iface.VA
	// Number is the backing pmm.Frame index, when the allocator exposes one
	// via FrameNumberer. It defaults to pmm.InvalidFrame and is never
	// consulted by eviction or claim logic; it exists so logs and metrics
	// can name a frame by slot number instead of a raw KVA.
	Number pmm.Frame

	inUse  bool
	Pinned bool
}

// Evictor lets the frame table recycle a frame by asking the owning
// address space's page to swap itself out. The frame table has no
// knowledge of pages or SPTs; it only knows (Owner, VA) pairs, and the
// caller of Obtain supplies the collaborator able to resolve that pair back
// to a Page (see kernel/mem/vmm.System).
type Evictor interface {
	SwapOut(owner iface.SpaceID, va iface.VA) error
}

// Table is the process-wide frame registry. A single instance is created at
// boot and shared by every address space, matching spec §5's "Frame Table
// is protected by a single mutex" discipline.
type Table struct {
	mu     sync.Mutex
	ring   []*Frame
	cursor int

	alloc iface.PhysicalAllocator
	mmu   iface.MMU
}

// NewTable creates an empty frame table backed by alloc for physical pages
// and mmu for accessed-bit inspection during eviction.
func NewTable(alloc iface.PhysicalAllocator, mmu iface.MMU) *Table {
	return &Table{alloc: alloc, mmu: mmu}
}

// Len returns the number of frames currently tracked by the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ring)
}

// Obtain reserves a fresh, zero-filled physical frame, pinned so the
// caller can safely install a PTE and run swap_in before anything else
// reclaims it. If the physical allocator is exhausted, Obtain drives
// eviction through evict and retries.
func (t *Table) Obtain(evict Evictor) (*Frame, error) {
	if f, ok := t.tryAlloc(); ok {
		return f, nil
	}

	victim, err := t.reserveVictim()
	if err != nil {
		return nil, err
	}

	if err := evict.SwapOut(victim.Owner, victim.VA); err != nil {
		t.mu.Lock()
		victim.Pinned = false
		t.mu.Unlock()
		return nil, kerrors.Wrap(err, "frame", kerrors.NoPhysicalFrame, "eviction failed")
	}

	t.mu.Lock()
	t.removeLocked(victim)
	t.mu.Unlock()
	t.alloc.Free(victim.KVA)

	if f, ok := t.tryAlloc(); ok {
		return f, nil
	}
	return nil, kerrors.New("frame", kerrors.NoPhysicalFrame, "no victim could be evicted")
}

// tryAlloc attempts a direct allocation from the physical allocator without
// going through eviction.
func (t *Table) tryAlloc() (*Frame, bool) {
	kva, ok := t.alloc.AllocUserZero()
	if !ok {
		return nil, false
	}

	f := &Frame{KVA: kva, Pinned: true, Number: pmm.InvalidFrame}
	if numberer, ok := t.alloc.(FrameNumberer); ok {
		if n, ok := numberer.FrameNumber(kva); ok {
			f.Number = n
		}
	}
	t.mu.Lock()
	t.ring = append(t.ring, f)
	t.mu.Unlock()
	return f, true
}

// reserveVictim picks an eviction candidate and pins it before releasing the
// table lock, so a concurrent Obtain cannot also pick it (spec §5: "the
// victim is marked pinned before the lock is released").
func (t *Table) reserveVictim() (*Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	victim, err := t.pickVictimLocked()
	if err != nil {
		return nil, err
	}
	victim.Pinned = true
	return victim, nil
}

// PickVictim runs the clock algorithm and returns a candidate frame without
// pinning it. It is exported so tests can exercise the algorithm directly
// (spec §8, testable properties 9 and 10).
func (t *Table) PickVictim() (*Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pickVictimLocked()
}

func (t *Table) pickVictimLocked() (*Frame, error) {
	n := len(t.ring)
	if n == 0 {
		return nil, kerrors.New("frame", kerrors.NoPhysicalFrame, "frame table is empty")
	}

	bound := 2 * n
	var firstUnpinned *Frame
	for i := 0; i < bound; i++ {
		if t.cursor >= len(t.ring) {
			t.cursor = 0
		}
		f := t.ring[t.cursor]
		t.cursor++

		if f.Pinned || !f.inUse {
			continue
		}
		if firstUnpinned == nil {
			firstUnpinned = f
		}

		if t.mmu.IsAccessed(f.Owner, f.VA) {
			t.mmu.SetAccessed(f.Owner, f.VA, false)
			continue
		}
		return f, nil
	}

	if firstUnpinned != nil {
		return firstUnpinned, nil
	}
	return nil, kerrors.New("frame", kerrors.NoPhysicalFrame, "no unpinned frame available")
}

// Attach records that f is now backing the page at (owner, va). Called by
// the claim path after installing the PTE and before swap_in.
func (t *Table) Attach(f *Frame, owner iface.SpaceID, va iface.VA) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f.Owner = owner
	f.VA = va
	f.inUse = true
}

// Unpin clears the pin flag set by Obtain, allowing f to be chosen as an
// eviction victim again.
func (t *Table) Unpin(f *Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f.Pinned = false
}

// Release fully retires f: the PTE is cleared (if still installed), the
// frame leaves the ring and its physical page returns to the allocator.
// Used when a page is destroyed outright (munmap, spt kill) rather than
// merely evicted for reuse.
func (t *Table) Release(f *Frame) {
	t.mu.Lock()
	if f.inUse {
		t.mmu.ClearPTE(f.Owner, f.VA)
	}
	t.removeLocked(f)
	t.mu.Unlock()
	t.alloc.Free(f.KVA)
}

// removeLocked drops f from the ring. Callers must hold t.mu.
func (t *Table) removeLocked(f *Frame) {
	for i, candidate := range t.ring {
		if candidate == f {
			t.ring = append(t.ring[:i], t.ring[i+1:]...)
			if t.cursor > i {
				t.cursor--
			}
			return
		}
	}
}
