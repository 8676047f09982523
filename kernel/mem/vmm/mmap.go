package vmm

import (
	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/page"
)

// Region is one live mmap mapping: the pages it covers and the file handle
// it privately owns (spec §4.9: "the file handle installed on the region
// must be a fresh reopen so its lifetime is independent").
type Region struct {
	Addr      iface.VA
	PageCount int
	File      iface.FileHandle
}

// Mmap implements spec §4.9. It validates arguments, registers one lazy
// File page per page of the mapping, and on success records a region so
// Munmap can later tear it down.
func (s *System) Mmap(owner iface.SpaceID, addr iface.VA, length int, writable bool, file iface.FileHandle, offset int64) (*Region, error) {
	if err := validateMmapArgs(addr, length, offset, file); err != nil {
		return nil, err
	}

	t, ok := s.Space(owner)
	if !ok {
		return nil, kerrors.New("vmm", kerrors.MmapArgsInvalid, "unknown address space")
	}

	pageCount := (length + int(mem.PageSize) - 1) / int(mem.PageSize)
	end := addr.Add(uintptr(length))
	if end < addr || end > PhysBase {
		return nil, kerrors.New("vmm", kerrors.MmapArgsInvalid, "mapping range wraps or exceeds user space")
	}
	for i := 0; i < pageCount; i++ {
		va := addr.Add(uintptr(i) * uintptr(mem.PageSize))
		if _, found := t.Find(va); found {
			return nil, kerrors.New("vmm", kerrors.VaAlreadyMapped, "va range already mapped")
		}
	}

	handle, err := file.Reopen()
	if err != nil {
		return nil, kerrors.Wrap(err, "vmm", kerrors.MmapArgsInvalid, "reopen failed")
	}

	fileLen := handle.Length()
	registered := make([]*page.Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		va := addr.Add(uintptr(i) * uintptr(mem.PageSize))
		pageOffset := int64(i) * int64(mem.PageSize)

		remainingLength := length - i*int(mem.PageSize)
		remainingFile := fileLen - (offset + pageOffset)
		readBytes := minInt64(int64(remainingLength), remainingFile)
		readBytes = minInt64(readBytes, int64(mem.PageSize))
		if readBytes < 0 {
			readBytes = 0
		}

		p := page.NewLazyFile(owner, va, writable, handle, offset+pageOffset, int(readBytes))
		if err := t.Insert(p); err != nil {
			rollbackMmap(t, registered)
			handle.Close()
			return nil, err
		}
		registered = append(registered, p)
	}

	r := &Region{Addr: addr, PageCount: pageCount, File: handle}
	s.addRegion(owner, r)
	return r, nil
}

// Munmap implements spec §4.9: it locates the region by exact start
// address, destroys and unmaps every page it covers, closes the file
// handle, and forgets the region. An address that is not a region start is
// a no-op.
func (s *System) Munmap(owner iface.SpaceID, addr iface.VA) error {
	r, ok := s.findRegion(owner, addr)
	if !ok {
		return nil
	}
	t, ok := s.Space(owner)
	if !ok {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "unknown address space")
	}

	for i := 0; i < r.PageCount; i++ {
		va := r.Addr.Add(uintptr(i) * uintptr(mem.PageSize))
		if err := t.RemoveVA(va); err != nil {
			return err
		}
	}
	if err := r.File.Close(); err != nil {
		return kerrors.Wrap(err, "vmm", kerrors.MmapArgsInvalid, "close failed")
	}
	s.removeRegion(owner, r)
	return nil
}

func rollbackMmap(t interface{ Remove(*page.Page) error }, registered []*page.Page) {
	for _, p := range registered {
		t.Remove(p)
	}
}

func validateMmapArgs(addr iface.VA, length int, offset int64, file iface.FileHandle) error {
	if addr == 0 {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "addr is null")
	}
	if !addr.IsAligned() {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "addr is not page-aligned")
	}
	if length <= 0 {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "length must be positive")
	}
	if offset%int64(mem.PageSize) != 0 {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "offset is not page-aligned")
	}
	if file.Length() == 0 {
		return kerrors.New("vmm", kerrors.MmapArgsInvalid, "file has zero length")
	}
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
