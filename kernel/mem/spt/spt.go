// Package spt implements the per-process Supplemental Page Table of spec
// §4.7: a VA-keyed table of Pages plus the find/insert/remove/kill
// operations the fault handler, mmap/munmap and process teardown build on.
package spt

import (
	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/page"
)

// Table is one process's Supplemental Page Table. It is single-owner (spec
// §5: "only the owning thread mutates it, so no locking is needed") and
// therefore carries no mutex.
type Table struct {
	entries map[iface.VA]*page.Page
	order   []iface.VA

	frames *frame.Table
	env    *page.Env
}

// New creates an empty SPT backed by frames for physical memory and env for
// the collaborators Page operations need.
func New(frames *frame.Table, env *page.Env) *Table {
	return &Table{
		entries: map[iface.VA]*page.Page{},
		frames:  frames,
		env:     env,
	}
}

// Find rounds va down to its page boundary and looks it up.
func (t *Table) Find(va iface.VA) (*page.Page, bool) {
	p, ok := t.entries[va.Align()]
	return p, ok
}

// Insert adds p, keyed by its own (already page-aligned) VA. It fails with
// VaAlreadyMapped if that VA is already present.
func (t *Table) Insert(p *page.Page) error {
	if _, exists := t.entries[p.VA]; exists {
		return kerrors.New("spt", kerrors.VaAlreadyMapped, "va already mapped")
	}
	t.entries[p.VA] = p
	t.order = append(t.order, p.VA)
	return nil
}

// Remove deletes p's entry from the table, writes back and releases its
// backing store resources, and returns its frame (if any) to the frame
// table, per spec §4.7's "call destroy + free on the Page".
func (t *Table) Remove(p *page.Page) error {
	t.deleteEntry(p.VA)
	return t.destroyAndFree(p)
}

// RemoveVA is Remove by address, used by munmap which only has the region's
// base VA in hand.
func (t *Table) RemoveVA(va iface.VA) error {
	p, ok := t.Find(va)
	if !ok {
		return nil
	}
	return t.Remove(p)
}

// Kill destroys every entry in the table; writeback for File pages happens
// transitively through each one's destroy (spec §4.7). Errors from
// individual pages are collected but do not stop the sweep, since a
// teardown must make forward progress.
func (t *Table) Kill() []error {
	var errs []error
	for _, va := range append([]iface.VA(nil), t.order...) {
		p := t.entries[va]
		if p == nil {
			continue
		}
		if err := t.destroyAndFree(p); err != nil {
			errs = append(errs, err)
		}
	}
	t.entries = map[iface.VA]*page.Page{}
	t.order = nil
	return errs
}

// All returns every page currently in the table in insertion order, the
// iteration order spec §4.10's fork copy relies on.
func (t *Table) All() []*page.Page {
	out := make([]*page.Page, 0, len(t.order))
	for _, va := range t.order {
		if p, ok := t.entries[va]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Len reports how many pages the table currently holds.
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) deleteEntry(va iface.VA) {
	delete(t.entries, va)
	for i, v := range t.order {
		if v == va {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// destroyAndFree tears down p. Only File pages need their pre-Destroy
// SwapOut: that's what flushes a dirty mapped range back to the backing
// file. Anon pages never need a writeback on teardown — Destroy already
// releases a held swap slot on its own — and skipping SwapOut here avoids
// allocating a fresh slot just to immediately discard it (and the resulting
// NoSwapSpace leak: frame.Release never ran because SwapOut had returned
// early). The frame itself, if resident, is always returned via
// frame.Release, which also clears the PTE.
func (t *Table) destroyAndFree(p *page.Page) error {
	f := p.Frame
	if p.Resident() && p.Type() == page.File {
		if err := p.SwapOut(t.env); err != nil {
			return err
		}
	}
	if err := p.Destroy(t.env); err != nil {
		return err
	}
	if f != nil {
		t.frames.Release(f)
	}
	return nil
}
