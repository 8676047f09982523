package vmm

import (
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/page"
)

const (
	// PhysBase is the boundary between user and kernel virtual addresses;
	// any VA at or above it is never a valid user fault address.
	PhysBase iface.VA = 0xc0000000
	// UserStackTop is the fixed top of the user stack region, matching the
	// teaching OS's USER_STACK convention.
	UserStackTop iface.VA = 0x47480000
	// stackGrowthLimit bounds how far below UserStackTop a fault may still
	// be treated as legitimate stack growth (spec §4.8: "within 1 MiB").
	stackGrowthLimit = 1 << 20
	// stackProximity bounds how far below the saved RSP a fault may be and
	// still count as a push-style stack access (spec §4.8: "not more than
	// 32 bytes below the saved user RSP").
	stackProximity = 32
)

// Flags carries the three trap-frame bits the fault handler needs, per
// spec §4.8's inputs list.
type Flags struct {
	User       bool
	Write      bool
	NotPresent bool
}

// IsUserAddress reports whether va could possibly belong to user space.
func IsUserAddress(va iface.VA) bool {
	return va != 0 && va < PhysBase
}

// isStackGrowthCandidate implements spec §4.8 step 4's predicate exactly:
// faultAddr (not page-aligned) must be below UserStackTop, within
// stackProximity bytes below rsp, and within stackGrowthLimit of
// UserStackTop.
func isStackGrowthCandidate(faultAddr, rsp iface.VA) bool {
	if faultAddr >= UserStackTop {
		return false
	}
	if faultAddr+stackProximity < rsp {
		return false
	}
	lowerBound := UserStackTop - stackGrowthLimit
	if faultAddr < lowerBound {
		return false
	}
	return true
}

// HandleFault implements spec §4.8 end to end. owner identifies the
// faulting process's address space, faultAddr is the raw (not page-aligned)
// faulting address, rsp is the saved user stack pointer at trap entry, and
// flags carries the trap-frame bits. It returns true if the fault was
// resolved and the faulting instruction can be retried; a fault on a page
// that is already resident is rejected.
func (s *System) HandleFault(owner iface.SpaceID, faultAddr, rsp iface.VA, flags Flags) bool {
	if !flags.NotPresent {
		return false
	}

	va := faultAddr.Align()
	if !IsUserAddress(va) {
		return false
	}

	t, ok := s.Space(owner)
	if !ok {
		return false
	}

	if p, found := t.Find(va); found {
		// A page that already holds a frame is not claimed again: that would
		// replace p.Frame and leave the current frame in the frame table.
		if p.Resident() {
			return false
		}
		if flags.Write && !p.Writable {
			return false
		}
		return s.claim(owner, p)
	}

	if !isStackGrowthCandidate(faultAddr, rsp) {
		return false
	}

	p := page.NewLazyAnon(owner, va, true)
	if err := t.Insert(p); err != nil {
		return false
	}
	return s.claim(owner, p)
}
