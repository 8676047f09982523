// Package page implements the polymorphic page abstraction of spec §4.3:
// a small operations dispatch attached to every Page, with three concrete
// kinds — uninit, anon and file — each implementing SwapIn, SwapOut,
// Destroy and Type.
package page

import (
	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/swap"
)

// Kind tags which concrete page variant is currently active.
type Kind uint8

const (
	// Uninit pages are latent: registered but never touched.
	Uninit Kind = iota
	// Anon pages are swap-backed.
	Anon
	// File pages are backed by a memory-mapped file.
	File
)

func (k Kind) String() string {
	switch k {
	case Uninit:
		return "uninit"
	case Anon:
		return "anon"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

// Env bundles the collaborators a page's operations need. It is passed
// explicitly rather than stashed on the Page so that ops implementations
// stay pure data plus behavior, per the spec §9 guidance to replace the
// vtable with per-arm methods rather than hidden global state.
type Env struct {
	MMU  iface.MMU
	Swap *swap.Store
}

// Ops is the page-operations dispatch of spec §4.3: three methods plus a
// type tag, attached immutably... except for the one transition uninit
// pages make on first claim, where the Page's ops pointer itself is
// swapped out for the target kind's ops (spec §4.4).
type Ops interface {
	// Type reports which kind this Ops implementation represents.
	Type() Kind
	// SwapIn loads page contents into p.Frame.KVA. Called once a Frame has
	// been attached to p and pinned.
	SwapIn(p *Page, env *Env) error
	// SwapOut evicts p's resident frame: writes back to the backing store
	// if needed, clears the owner's PTE for p.VA, and detaches p.Frame.
	SwapOut(p *Page, env *Env) error
	// Destroy releases any kind-specific resources (e.g. a held swap
	// slot). A resident File page also writes back if dirty, clears its
	// PTE and detaches p.Frame; an Anon page leaves residency untouched.
	// Destroy never returns the frame to the frame table.
	Destroy(p *Page, env *Env) error
}

// Page is one entry of a Supplemental Page Table: a page-aligned VA, its
// writability, the address space that owns it, and whichever concrete
// state its current Ops implementation carries.
type Page struct {
	VA       iface.VA
	Writable bool
	Owner    iface.SpaceID

	// Frame is the physical frame currently backing this page, or nil if
	// the page is non-resident (swapped out, or never touched).
	Frame *frame.Frame

	ops Ops
}

// Type reports the page's current kind.
func (p *Page) Type() Kind {
	return p.ops.Type()
}

// Resident reports whether the page currently occupies a frame.
func (p *Page) Resident() bool {
	return p.Frame != nil
}

// SwapIn loads contents into the page's (already attached) frame.
func (p *Page) SwapIn(env *Env) error {
	return p.ops.SwapIn(p, env)
}

// SwapOut evicts the page's resident frame.
func (p *Page) SwapOut(env *Env) error {
	return p.ops.SwapOut(p, env)
}

// Destroy releases kind-specific resources held by the page.
func (p *Page) Destroy(env *Env) error {
	return p.ops.Destroy(p, env)
}
