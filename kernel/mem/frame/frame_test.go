package frame

import (
	"testing"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// fakeAlloc is a tiny bump allocator with a fixed capacity, enough to drive
// the frame table's obtain/evict/retry path without a real physical pool.
type fakeAlloc struct {
	capacity int
	next     iface.KVA
	free     map[iface.KVA]bool
	inUse    int
}

func newFakeAlloc(capacity int) *fakeAlloc {
	return &fakeAlloc{capacity: capacity, next: 1, free: map[iface.KVA]bool{}}
}

func (a *fakeAlloc) AllocUserZero() (iface.KVA, bool) {
	if a.inUse >= a.capacity {
		return 0, false
	}
	kva := a.next
	a.next++
	a.inUse++
	return kva, true
}

func (a *fakeAlloc) Free(kva iface.KVA) {
	a.inUse--
}

// fakeMMU tracks accessed bits per va (the owner is ignored) and records the
// VAs passed to ClearPTE; the frame table never needs dirty bits or PTE
// installation directly.
type fakeMMU struct {
	accessed map[iface.VA]bool
	cleared  []iface.VA
}

func newFakeMMU() *fakeMMU {
	return &fakeMMU{accessed: map[iface.VA]bool{}}
}

func (m *fakeMMU) SetPTE(iface.SpaceID, iface.VA, iface.KVA, bool) bool { return true }
func (m *fakeMMU) ClearPTE(_ iface.SpaceID, va iface.VA)                { m.cleared = append(m.cleared, va) }
func (m *fakeMMU) IsAccessed(_ iface.SpaceID, va iface.VA) bool         { return m.accessed[va] }
func (m *fakeMMU) SetAccessed(_ iface.SpaceID, va iface.VA, v bool)     { m.accessed[va] = v }
func (m *fakeMMU) IsDirty(iface.SpaceID, iface.VA) bool                 { return false }
func (m *fakeMMU) SetDirty(iface.SpaceID, iface.VA, bool)               {}
func (m *fakeMMU) Resolve(iface.SpaceID, iface.VA) (iface.KVA, bool)    { return 0, false }

// recordingEvictor always succeeds and records which (owner, va) it was
// asked to swap out.
type recordingEvictor struct {
	calls []iface.VA
	err   error
}

func (e *recordingEvictor) SwapOut(_ iface.SpaceID, va iface.VA) error {
	e.calls = append(e.calls, va)
	return e.err
}

func TestObtainWithoutEvictionUsesFreshFrames(t *testing.T) {
	table := NewTable(newFakeAlloc(4), newFakeMMU())

	var got []*Frame
	for i := 0; i < 4; i++ {
		f, err := table.Obtain(&recordingEvictor{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, f)
	}

	for i, f := range got {
		for j, other := range got {
			if i != j && f.KVA == other.KVA {
				t.Fatalf("frames %d and %d share the same KVA", i, j)
			}
		}
	}
	if table.Len() != 4 {
		t.Fatalf("expected 4 frames in the table; got %d", table.Len())
	}
}

func TestObtainEvictsWhenAllocatorExhausted(t *testing.T) {
	alloc := newFakeAlloc(2)
	mmu := newFakeMMU()
	table := NewTable(alloc, mmu)

	evictor := &recordingEvictor{}
	f1, err := table.Obtain(evictor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Attach(f1, 1, iface.VA(0x1000))
	table.Unpin(f1)

	f2, err := table.Obtain(evictor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Attach(f2, 1, iface.VA(0x2000))
	table.Unpin(f2)

	// The allocator is now exhausted; the third Obtain must evict one of
	// the two resident frames and reuse the reclaimed physical page.
	f3, err := table.Obtain(evictor)
	if err != nil {
		t.Fatalf("expected eviction to succeed, got error: %v", err)
	}
	if len(evictor.calls) != 1 {
		t.Fatalf("expected exactly one eviction; got %d", len(evictor.calls))
	}
	if f3 == nil {
		t.Fatal("expected a non-nil frame after eviction")
	}
	if table.Len() != 2 {
		t.Fatalf("expected frame table to still hold 2 frames; got %d", table.Len())
	}
}

func TestObtainFailsWhenEveryFrameIsPinned(t *testing.T) {
	alloc := newFakeAlloc(1)
	table := NewTable(alloc, newFakeMMU())

	f, err := table.Obtain(&recordingEvictor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Attach(f, 1, iface.VA(0x1000))
	// Deliberately do not Unpin: f stays pinned, simulating an in-flight claim.

	_, err = table.Obtain(&recordingEvictor{})
	if err == nil {
		t.Fatal("expected an error when no unpinned frame is available")
	}
	if !kerrors.Is(err, kerrors.NoPhysicalFrame) {
		t.Errorf("expected NoPhysicalFrame; got %v", err)
	}
}

func TestPickVictimNeverReturnsAPinnedFrame(t *testing.T) {
	alloc := newFakeAlloc(8)
	mmu := newFakeMMU()
	table := NewTable(alloc, mmu)

	var frames []*Frame
	for i := 0; i < 8; i++ {
		f, err := table.Obtain(&recordingEvictor{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		table.Attach(f, 1, iface.VA(uintptr(i+1)*0x1000))
		table.Unpin(f)
		frames = append(frames, f)
	}
	// Pin all but the last frame.
	for _, f := range frames[:len(frames)-1] {
		f.Pinned = true
	}

	victim, err := table.PickVictim()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if victim != frames[len(frames)-1] {
		t.Fatalf("expected the only unpinned frame to be picked")
	}
}

func TestPickVictimTerminatesWithinBound(t *testing.T) {
	alloc := newFakeAlloc(16)
	mmu := newFakeMMU()
	table := NewTable(alloc, mmu)

	for i := 0; i < 16; i++ {
		f, err := table.Obtain(&recordingEvictor{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		va := iface.VA(uintptr(i+1) * 0x1000)
		table.Attach(f, 1, va)
		table.Unpin(f)
		mmu.accessed[va] = true // force every frame to need a second chance
	}

	// Every frame starts "accessed"; the algorithm must still terminate
	// (clearing accessed bits as it goes) within 2*N iterations and return
	// the first frame encountered on the second pass.
	victim, err := table.PickVictim()
	if err != nil {
		t.Fatalf("expected a victim within the 2N bound, got error: %v", err)
	}
	if victim == nil {
		t.Fatal("expected a non-nil victim")
	}
}

func TestReleaseClearsPTEAndFreesPhysicalPage(t *testing.T) {
	alloc := newFakeAlloc(1)
	mmu := newFakeMMU()
	table := NewTable(alloc, mmu)

	f, err := table.Obtain(&recordingEvictor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Attach(f, 1, iface.VA(0x3000))
	table.Unpin(f)

	table.Release(f)

	if table.Len() != 0 {
		t.Fatalf("expected frame table to be empty after release; got %d", table.Len())
	}
	if len(mmu.cleared) != 1 || mmu.cleared[0] != iface.VA(0x3000) {
		t.Fatalf("expected ClearPTE to be called for the released frame's VA")
	}
	if alloc.inUse != 0 {
		t.Fatalf("expected the physical page to be freed; allocator still reports %d in use", alloc.inUse)
	}
}
