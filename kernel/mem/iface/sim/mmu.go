// Package sim provides small, fully in-process reference implementations of
// the collaborator interfaces declared in kernel/mem/iface: an MMU, a
// physical page allocator and a block device. They exist for tests and for
// the cmd/vmpagerd demo harness — production embedders of kernel/mem supply
// their own, backed by real hardware page tables and a real disk.
package sim

import (
	"sync"

	"github.com/gopheros/vmpager/kernel/mem/iface"
)

type pte struct {
	kva      iface.KVA
	writable bool
	accessed bool
	dirty    bool
}

// MMU is a software page table keyed by (SpaceID, VA). It implements
// iface.MMU without any actual hardware paging; accessed/dirty bits are
// maintained explicitly by whoever simulates memory access (see
// sim.MMU.Touch) instead of being set by a CPU.
type MMU struct {
	mu     sync.Mutex
	spaces map[iface.SpaceID]map[iface.VA]*pte
}

// NewMMU returns an empty software MMU.
func NewMMU() *MMU {
	return &MMU{spaces: map[iface.SpaceID]map[iface.VA]*pte{}}
}

func (m *MMU) tableFor(space iface.SpaceID) map[iface.VA]*pte {
	t, ok := m.spaces[space]
	if !ok {
		t = map[iface.VA]*pte{}
		m.spaces[space] = t
	}
	return t
}

// SetPTE installs (va -> kva) for space.
func (m *MMU) SetPTE(space iface.SpaceID, va iface.VA, kva iface.KVA, writable bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableFor(space)[va] = &pte{kva: kva, writable: writable}
	return true
}

// ClearPTE removes any mapping for va in space.
func (m *MMU) ClearPTE(space iface.SpaceID, va iface.VA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tableFor(space), va)
}

// IsAccessed reports the accessed bit for va in space.
func (m *MMU) IsAccessed(space iface.SpaceID, va iface.VA) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tableFor(space)[va]; ok {
		return e.accessed
	}
	return false
}

// SetAccessed sets or clears the accessed bit for va in space.
func (m *MMU) SetAccessed(space iface.SpaceID, va iface.VA, accessed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tableFor(space)[va]; ok {
		e.accessed = accessed
	}
}

// IsDirty reports the dirty bit for va in space.
func (m *MMU) IsDirty(space iface.SpaceID, va iface.VA) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tableFor(space)[va]; ok {
		return e.dirty
	}
	return false
}

// SetDirty sets or clears the dirty bit for va in space.
func (m *MMU) SetDirty(space iface.SpaceID, va iface.VA, dirty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tableFor(space)[va]; ok {
		e.dirty = dirty
	}
}

// Resolve returns the KVA mapped for va in space, if any.
func (m *MMU) Resolve(space iface.SpaceID, va iface.VA) (iface.KVA, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tableFor(space)[va]
	if !ok {
		return 0, false
	}
	return e.kva, true
}

// Touch simulates a CPU memory access to va in space: it sets the accessed
// bit, and the dirty bit too when write is true. Tests and the demo harness
// call this in place of an actual trap, since there is no real CPU behind
// this MMU. Touch requires the page to already be resident; it does not
// raise a fault.
func (m *MMU) Touch(space iface.SpaceID, va iface.VA, write bool) (iface.KVA, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tableFor(space)[va]
	if !ok {
		return 0, false
	}
	e.accessed = true
	if write {
		e.dirty = true
	}
	return e.kva, true
}
