package page

import (
	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// fileAux carries the registration-time parameters for a lazy file page
// through to the uninit -> file transition (spec §4.4/§4.6).
type fileAux struct {
	file      iface.FileHandle
	offset    int64
	readBytes int
}

// fileOps is a file-backed page using private-mapping semantics: dirty
// pages are written back to the file on eviction or destruction, but the
// file handle itself is owned by the mmap region, not the page (spec
// §4.6).
type fileOps struct {
	file      iface.FileHandle
	offset    int64
	readBytes int
}

func (f *fileOps) Type() Kind { return File }

// SwapIn is only reached on a re-claim after swap-out; private file pages
// are never evicted to a swap slot in this design (they write back to the
// file instead), so SwapIn simply re-runs the same read used at first
// touch.
func (f *fileOps) SwapIn(p *Page, env *Env) error {
	return fileReadInto(p, f.file, f.offset, f.readBytes)
}

// SwapOut writes the page back to the file if dirty, clears the PTE and
// detaches the frame (spec §4.6).
func (f *fileOps) SwapOut(p *Page, env *Env) error {
	if p.Frame == nil {
		return nil
	}

	if env.MMU.IsDirty(p.Owner, p.VA) {
		if err := f.writeback(p); err != nil {
			return err
		}
		env.MMU.SetDirty(p.Owner, p.VA, false)
	}

	env.MMU.ClearPTE(p.Owner, p.VA)
	p.Frame = nil
	return nil
}

// Destroy applies the same writeback policy as SwapOut (spec §4.6: "same
// writeback policy as swap-out"), then clears residency. The file handle
// itself is not closed here — it is owned by the mmap region.
func (f *fileOps) Destroy(p *Page, env *Env) error {
	if p.Frame == nil {
		return nil
	}
	if env.MMU.IsDirty(p.Owner, p.VA) {
		if err := f.writeback(p); err != nil {
			return err
		}
		env.MMU.SetDirty(p.Owner, p.VA, false)
	}
	env.MMU.ClearPTE(p.Owner, p.VA)
	p.Frame = nil
	return nil
}

func (f *fileOps) writeback(p *Page) error {
	buf := p.Frame.KVA.Bytes()
	n, err := f.file.WriteAt(buf, f.readBytes, f.offset)
	if err != nil {
		return kerrors.Wrap(err, "page", kerrors.LazyLoadFailed, "file writeback failed")
	}
	if n < f.readBytes {
		return kerrors.New("page", kerrors.LazyLoadFailed, "short file writeback")
	}
	return nil
}

// fileReadInit is the Initializer installed on lazy file pages: it reads
// readBytes from file at offset into the fresh frame and zero-fills the
// trailing remainder (spec §4.6).
func fileReadInit(p *Page, aux interface{}) error {
	a := aux.(*fileAux)
	return fileReadInto(p, a.file, a.offset, a.readBytes)
}

func fileReadInto(p *Page, file iface.FileHandle, offset int64, readBytes int) error {
	buf := p.Frame.KVA.Bytes()
	n, err := file.ReadAt(buf, readBytes, offset)
	if err != nil {
		return kerrors.Wrap(err, "page", kerrors.LazyLoadFailed, "file read failed")
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}
