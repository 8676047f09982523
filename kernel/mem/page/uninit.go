package page

import "github.com/gopheros/vmpager/kernel/mem/iface"

// Initializer runs once, the first time an uninit page is claimed. For file
// pages it reads the backing bytes into the frame; for zero-filled anon
// pages it has nothing to do, since the frame arrives already zeroed by the
// physical allocator (spec §4.4).
type Initializer func(p *Page, aux interface{}) error

// uninitOps is the latent state of a page that has been registered but
// never touched: spec §4.4's "target kind, initializer closure, and
// auxiliary payload".
type uninitOps struct {
	target Kind
	init   Initializer
	aux    interface{}
}

func (u *uninitOps) Type() Kind { return Uninit }

// SwapIn morphs the page in place: the ops pointer is overwritten with the
// target kind's ops before the initializer runs, and reverted on failure so
// the page remains uninit (spec §4.4: "If either step fails, the page
// remains uninit and the fault fails").
func (u *uninitOps) SwapIn(p *Page, env *Env) error {
	var target Ops
	switch u.target {
	case Anon:
		target = &anonOps{}
	case File:
		a := u.aux.(*fileAux)
		target = &fileOps{file: a.file, offset: a.offset, readBytes: a.readBytes}
	}

	p.ops = target
	if err := u.init(p, u.aux); err != nil {
		p.ops = u
		return err
	}
	return nil
}

// SwapOut is never called on an uninit page: it has no frame to evict.
func (u *uninitOps) SwapOut(p *Page, env *Env) error { return nil }

// Destroy releases the aux payload. Nothing else to do: an uninit page was
// never claimed, so it holds no frame and no backing-store resources.
func (u *uninitOps) Destroy(p *Page, env *Env) error {
	u.aux = nil
	return nil
}

// NewLazyAnon registers a lazy, swap-backed page: first touch produces a
// zero-filled page (spec §4.4, target == Anon).
func NewLazyAnon(owner iface.SpaceID, va iface.VA, writable bool) *Page {
	return &Page{
		VA:       va,
		Writable: writable,
		Owner:    owner,
		ops:      &uninitOps{target: Anon, init: anonZeroInit},
	}
}

// NewLazyFile registers a lazy file-backed page for the mmap path (spec
// §4.9): first touch reads readBytes from file at offset and zero-fills the
// remainder.
func NewLazyFile(owner iface.SpaceID, va iface.VA, writable bool, file iface.FileHandle, offset int64, readBytes int) *Page {
	return &Page{
		VA:       va,
		Writable: writable,
		Owner:    owner,
		ops: &uninitOps{
			target: File,
			init:   fileReadInit,
			aux:    &fileAux{file: file, offset: offset, readBytes: readBytes},
		},
	}
}

// IsUninit reports whether p has not yet been claimed for the first time.
func IsUninit(p *Page) bool {
	_, ok := p.ops.(*uninitOps)
	return ok
}

// UninitTarget returns the target kind recorded on an uninit page, and
// false if p is no longer uninit.
func UninitTarget(p *Page) (Kind, bool) {
	u, ok := p.ops.(*uninitOps)
	if !ok {
		return 0, false
	}
	return u.target, true
}
