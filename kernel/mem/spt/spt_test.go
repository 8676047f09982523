package spt

import (
	"testing"

	"github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/iface/sim"
	"github.com/gopheros/vmpager/kernel/mem/page"
	"github.com/gopheros/vmpager/kernel/mem/swap"
)

type noopEvictor struct{}

func (noopEvictor) SwapOut(owner iface.SpaceID, va iface.VA) error { return nil }

func newHarness(t *testing.T, frames int) (*Table, *frame.Table, *page.Env) {
	t.Helper()
	mmu := sim.NewMMU()
	alloc := sim.NewAllocator(frames)
	ft := frame.NewTable(alloc, mmu)
	dev := sim.NewBlockDevice(4 * iface.SectorsPerPage)
	env := &page.Env{MMU: mmu, Swap: swap.New(dev)}
	return New(ft, env), ft, env
}

func claim(t *testing.T, ft *frame.Table, env *page.Env, p *page.Page) {
	t.Helper()
	f, err := ft.Obtain(noopEvictor{})
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	env.MMU.SetPTE(p.Owner, p.VA, f.KVA, p.Writable)
	ft.Attach(f, p.Owner, p.VA)
	p.Frame = f
	if err := p.SwapIn(env); err != nil {
		t.Fatalf("SwapIn: %v", err)
	}
	ft.Unpin(f)
}

func TestFindAfterInsert(t *testing.T) {
	spt, _, _ := newHarness(t, 2)
	p := page.NewLazyAnon(1, 0x1000, true)

	if _, ok := spt.Find(0x1000); ok {
		t.Fatal("expected no entry before Insert")
	}
	if err := spt.Insert(p); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok := spt.Find(0x1000)
	if !ok || got != p {
		t.Fatalf("Find = (%v, %v), want (p, true)", got, ok)
	}
	if _, ok := spt.Find(0x1004); !ok {
		t.Fatal("Find should round down to the page boundary")
	}
}

func TestInsertCollisionFails(t *testing.T) {
	spt, _, _ := newHarness(t, 2)
	p1 := page.NewLazyAnon(1, 0x2000, true)
	p2 := page.NewLazyAnon(1, 0x2000, false)

	if err := spt.Insert(p1); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := spt.Insert(p2)
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !errors.Is(err, errors.VaAlreadyMapped) {
		t.Fatalf("err kind = %v, want VaAlreadyMapped", err)
	}
}

func TestRemoveSwappedOutPageReleasesSwapSlot(t *testing.T) {
	spt, ft, env := newHarness(t, 1)
	p := page.NewLazyAnon(1, 0x3000, true)
	spt.Insert(p)
	claim(t, ft, env, p)

	env.MMU.SetDirty(p.Owner, p.VA, true)
	if err := p.SwapOut(env); err != nil {
		t.Fatalf("SwapOut: %v", err)
	}
	if env.Swap.InUseCount() != 1 {
		t.Fatalf("InUseCount = %d, want 1", env.Swap.InUseCount())
	}

	if err := spt.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if env.Swap.InUseCount() != 0 {
		t.Fatalf("InUseCount = %d after Remove, want 0", env.Swap.InUseCount())
	}
	if _, ok := spt.Find(0x3000); ok {
		t.Fatal("entry should be gone after Remove")
	}
}

func TestRemoveResidentPageReturnsFrameToTable(t *testing.T) {
	spt, ft, env := newHarness(t, 1)
	p := page.NewLazyAnon(1, 0x4000, true)
	spt.Insert(p)
	claim(t, ft, env, p)

	if ft.Len() != 1 {
		t.Fatalf("Len = %d, want 1", ft.Len())
	}
	if err := spt.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ft.Len() != 0 {
		t.Fatalf("Len = %d after Remove, want 0 (frame returned)", ft.Len())
	}

	// The freed frame must be usable again: a capacity-1 table with no live
	// frames left should satisfy a fresh allocation without eviction.
	q := page.NewLazyAnon(1, 0x5000, true)
	spt.Insert(q)
	claim(t, ft, env, q)
	if ft.Len() != 1 {
		t.Fatalf("Len = %d after re-claim, want 1", ft.Len())
	}
}

func TestKillDestroysEveryEntryInInsertionOrder(t *testing.T) {
	spt, ft, env := newHarness(t, 3)
	var pages []*page.Page
	for i := 0; i < 3; i++ {
		p := page.NewLazyAnon(1, iface.VA(0x1000*(i+1)), true)
		spt.Insert(p)
		claim(t, ft, env, p)
		pages = append(pages, p)
	}

	all := spt.All()
	if len(all) != 3 {
		t.Fatalf("All() len = %d, want 3", len(all))
	}
	for i, p := range all {
		if p != pages[i] {
			t.Fatalf("All()[%d] out of insertion order", i)
		}
	}

	if errs := spt.Kill(); len(errs) != 0 {
		t.Fatalf("Kill errs = %v, want none", errs)
	}
	if spt.Len() != 0 {
		t.Fatalf("Len = %d after Kill, want 0", spt.Len())
	}
	if ft.Len() != 0 {
		t.Fatalf("frame table Len = %d after Kill, want 0", ft.Len())
	}
}

func TestRemoveResidentAnonPageReturnsFrameEvenWhenSwapIsFull(t *testing.T) {
	mmu := sim.NewMMU()
	alloc := sim.NewAllocator(1)
	ft := frame.NewTable(alloc, mmu)
	dev := sim.NewBlockDevice(0) // zero swap slots: Allocate always fails
	env := &page.Env{MMU: mmu, Swap: swap.New(dev)}
	spt := New(ft, env)

	p := page.NewLazyAnon(1, 0x6000, true)
	spt.Insert(p)
	claim(t, ft, env, p)

	// A resident anon page's teardown must never need a swap slot: if
	// Remove tried to swap it out first, this would fail with NoSwapSpace
	// and leak the frame.
	if err := spt.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ft.Len() != 0 {
		t.Fatalf("Len = %d after Remove, want 0 (frame returned despite full swap)", ft.Len())
	}
}

func TestRemoveVAIsNoopWhenAbsent(t *testing.T) {
	spt, _, _ := newHarness(t, 1)
	if err := spt.RemoveVA(0x9000); err != nil {
		t.Fatalf("RemoveVA on missing entry: %v", err)
	}
}
