package page

import "github.com/gopheros/vmpager/kernel/mem/swap"

// anonOps is a swap-backed page (spec §4.5). slot is meaningful only when
// hasSlot is true, matching the invariant "present iff the page is
// currently swapped out".
type anonOps struct {
	slot    swap.Slot
	hasSlot bool
}

func (a *anonOps) Type() Kind { return Anon }

// SwapIn reads the page back from its swap slot if it holds one; a
// first-touch anon page (no slot yet) relies on the frame already being
// zero-filled by the allocator and is a no-op.
func (a *anonOps) SwapIn(p *Page, env *Env) error {
	if !a.hasSlot {
		return nil
	}

	if err := env.Swap.ReadPage(a.slot, p.Frame.KVA); err != nil {
		return err
	}
	env.Swap.Release(a.slot)
	a.hasSlot = false
	return nil
}

// SwapOut allocates a swap slot, writes the frame out, clears the PTE and
// detaches the frame from the page (spec §4.5).
func (a *anonOps) SwapOut(p *Page, env *Env) error {
	if p.Frame == nil {
		return nil
	}

	slot, err := env.Swap.Allocate()
	if err != nil {
		return err
	}
	if err := env.Swap.WritePage(slot, p.Frame.KVA); err != nil {
		env.Swap.Release(slot)
		return err
	}

	env.MMU.ClearPTE(p.Owner, p.VA)
	a.slot = slot
	a.hasSlot = true
	p.Frame = nil
	return nil
}

// Destroy releases a held swap slot, if any.
func (a *anonOps) Destroy(p *Page, env *Env) error {
	if a.hasSlot {
		env.Swap.Release(a.slot)
		a.hasSlot = false
	}
	return nil
}

// anonZeroInit is the Initializer for freshly-morphed anon pages: nothing
// to do, the frame is already zero-filled.
func anonZeroInit(p *Page, aux interface{}) error {
	return nil
}
