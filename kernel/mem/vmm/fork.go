package vmm

import (
	"github.com/gopheros/vmpager/kernel/mem"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/page"
	"github.com/gopheros/vmpager/kernel/mem/spt"
)

// ForkSPT implements spec §4.10's SPT copy: it walks parent's entries in
// insertion order and populates child (owned by childOwner) accordingly.
// File-backed mappings (uninit or resident) are never inherited; uninit
// Anon pages are re-registered lazily; resident Anon pages are eagerly
// claimed in the child and their contents copied byte for byte from the
// parent's frame. It returns false, with child left partially populated
// for the caller to discard, on the first allocation, registration or
// claim failure — spec §4.10: "does not attempt rollback; the caller
// discards the child's SPT".
func (s *System) ForkSPT(childOwner iface.SpaceID, parent, child *spt.Table) bool {
	for _, p := range parent.All() {
		if page.IsUninit(p) {
			kind, _ := page.UninitTarget(p)
			if kind == page.File {
				continue
			}
			np := page.NewLazyAnon(childOwner, p.VA, p.Writable)
			if err := child.Insert(np); err != nil {
				return false
			}
			continue
		}

		if !p.Resident() {
			// Already-swapped-out Anon pages and any other non-resident,
			// non-uninit state fall outside spec §4.10's two listed cases;
			// treated as not inherited (see DESIGN.md).
			continue
		}
		if p.Type() != page.Anon {
			continue
		}

		np := page.NewLazyAnon(childOwner, p.VA, p.Writable)
		if err := child.Insert(np); err != nil {
			return false
		}
		if !s.claim(childOwner, np) {
			return false
		}
		mem.Memcopy(uintptr(np.Frame.KVA), uintptr(p.Frame.KVA), mem.PageSize)
	}
	return true
}
