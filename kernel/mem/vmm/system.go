// Package vmm is the orchestrator spec.md §9's design notes call for: it
// owns the system-wide Frame Table and the registry of per-process
// Supplemental Page Tables, and bridges frame eviction back to the owning
// page through the small frame.Evictor interface so that kernel/mem/frame
// never needs to import kernel/mem/page or kernel/mem/spt.
package vmm

import (
	"sync"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/page"
	"github.com/gopheros/vmpager/kernel/mem/spt"
)

// System is one running instance of the demand pager: one Frame Table, one
// Swap Store (reached through env), and the address spaces currently alive.
type System struct {
	Frames *frame.Table
	Env    *page.Env

	mu      sync.Mutex
	spaces  map[iface.SpaceID]*spt.Table
	regions map[iface.SpaceID][]*Region
}

// New creates an empty System. frames and env are shared by every address
// space created on it.
func New(frames *frame.Table, env *page.Env) *System {
	return &System{
		Frames:  frames,
		Env:     env,
		spaces:  map[iface.SpaceID]*spt.Table{},
		regions: map[iface.SpaceID][]*Region{},
	}
}

// CreateSpace registers a new, empty address space under id.
func (s *System) CreateSpace(id iface.SpaceID) (*spt.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.spaces[id]; exists {
		return nil, kerrors.New("vmm", kerrors.VaAlreadyMapped, "space id already registered")
	}
	t := spt.New(s.Frames, s.Env)
	s.spaces[id] = t
	return t, nil
}

// Space returns the SPT registered for id.
func (s *System) Space(id iface.SpaceID) (*spt.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.spaces[id]
	return t, ok
}

// DestroySpace tears down id's address space: every page is destroyed
// (writeback happens transitively, per spec §4.7's kill()), every mmap
// region's file handle is closed, and the space is forgotten.
func (s *System) DestroySpace(id iface.SpaceID) []error {
	s.mu.Lock()
	t, ok := s.spaces[id]
	regions := s.regions[id]
	delete(s.spaces, id)
	delete(s.regions, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	errs := t.Kill()
	for _, r := range regions {
		if err := r.File.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SwapOut implements frame.Evictor: it resolves (owner, va) back to the
// owning page through that address space's SPT and asks the page to evict
// itself. This is the one place kernel/mem/frame's abstract (SpaceID, VA)
// handle is turned back into a concrete Page.
func (s *System) SwapOut(owner iface.SpaceID, va iface.VA) error {
	t, ok := s.Space(owner)
	if !ok {
		return kerrors.New("vmm", kerrors.NoPhysicalFrame, "eviction victim's address space no longer exists")
	}
	p, ok := t.Find(va)
	if !ok {
		return kerrors.New("vmm", kerrors.NoPhysicalFrame, "eviction victim missing from its own SPT")
	}
	return p.SwapOut(s.Env)
}

// claim implements spec §4.8's "claiming a page" procedure: obtain a frame
// (may evict), install the PTE, attach, swap_in, unpin. Any failure unwinds
// fully and returns false.
func (s *System) claim(owner iface.SpaceID, p *page.Page) bool {
	f, err := s.Frames.Obtain(s)
	if err != nil {
		return false
	}
	if !s.Env.MMU.SetPTE(owner, p.VA, f.KVA, p.Writable) {
		s.Frames.Release(f)
		return false
	}
	s.Frames.Attach(f, owner, p.VA)
	p.Frame = f

	if err := p.SwapIn(s.Env); err != nil {
		s.Env.MMU.ClearPTE(owner, p.VA)
		p.Frame = nil
		s.Frames.Release(f)
		return false
	}
	s.Frames.Unpin(f)
	return true
}

func (s *System) addRegion(owner iface.SpaceID, r *Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[owner] = append(s.regions[owner], r)
}

func (s *System) findRegion(owner iface.SpaceID, addr iface.VA) (*Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions[owner] {
		if r.Addr == addr {
			return r, true
		}
	}
	return nil, false
}

func (s *System) removeRegion(owner iface.SpaceID, r *Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.regions[owner]
	for i, candidate := range list {
		if candidate == r {
			s.regions[owner] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
