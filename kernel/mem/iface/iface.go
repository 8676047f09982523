// Package iface declares the external collaborators the vm core consumes:
// the MMU, the physical page allocator, the swap block device and a file
// handle. The core never talks to hardware or a filesystem directly; it is
// handed implementations of these interfaces at boot and treats them as
// opaque collaborators, matching spec §6 ("Interfaces the core consumes").
package iface

import (
	"reflect"
	"unsafe"

	"github.com/gopheros/vmpager/kernel/mem"
)

// VA is a page-aligned-or-not virtual address within some address space.
type VA uintptr

// Align rounds v down to the nearest page boundary.
func (v VA) Align() VA {
	return v &^ VA(mem.PageSize-1)
}

// IsAligned reports whether v already sits on a page boundary.
func (v VA) IsAligned() bool {
	return v&VA(mem.PageSize-1) == 0
}

// Add returns v advanced by n bytes.
func (v VA) Add(n uintptr) VA {
	return v + VA(n)
}

// KVA is a kernel-accessible address backing one physical frame. For the
// simulated collaborators in iface/sim this is simply the address of a
// Go-allocated byte slice; a real embedder would hand back the kernel
// virtual address of an actual physical page.
type KVA uintptr

// IsValid reports whether k is a populated address.
func (k KVA) IsValid() bool {
	return k != 0
}

// Bytes overlays a [mem.PageSize]byte slice on top of the frame addressed by
// k, the same reflect.SliceHeader-over-uintptr trick mem.Memcopy uses to
// treat a raw address as a Go slice.
func (k KVA) Bytes() []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(mem.PageSize),
		Cap:  int(mem.PageSize),
		Data: uintptr(k),
	}))
}

// SpaceID identifies an address space to the MMU collaborator. The core
// never interprets this value; it only threads it between SPT, Page and MMU
// calls the way Page.Owner is threaded in spec §3.
type SpaceID uint64

// MMU is the page-table collaborator. Every method corresponds 1:1 to
// spec §6's "MMU" interface list.
type MMU interface {
	// SetPTE installs (va -> kva) in space with the given writability.
	// Returns false if the mapping could not be installed.
	SetPTE(space SpaceID, va VA, kva KVA, writable bool) bool
	// ClearPTE removes any mapping for va in space. A no-op if none exists.
	ClearPTE(space SpaceID, va VA)
	// IsAccessed reports the accessed bit for va in space.
	IsAccessed(space SpaceID, va VA) bool
	// SetAccessed sets or clears the accessed bit for va in space.
	SetAccessed(space SpaceID, va VA, accessed bool)
	// IsDirty reports the dirty bit for va in space.
	IsDirty(space SpaceID, va VA) bool
	// SetDirty sets or clears the dirty bit for va in space.
	SetDirty(space SpaceID, va VA, dirty bool)
	// Resolve returns the KVA currently mapped for va in space, or
	// ok == false if va is not present.
	Resolve(space SpaceID, va VA) (kva KVA, ok bool)
}

// PhysicalAllocator hands out zero-filled physical user pages.
type PhysicalAllocator interface {
	// AllocUserZero reserves a fresh, zero-filled physical page and
	// returns its kernel virtual address, or ok == false if none is
	// available.
	AllocUserZero() (kva KVA, ok bool)
	// Free releases a page previously returned by AllocUserZero.
	Free(kva KVA)
}

// BlockDevice is the swap device collaborator: a flat array of fixed-size
// sectors. Sector size is fixed at 512 bytes per spec §6.
type BlockDevice interface {
	// SectorRead synchronously reads one 512-byte sector into buf.
	SectorRead(sector uint64, buf []byte) error
	// SectorWrite synchronously writes one 512-byte sector from buf.
	SectorWrite(sector uint64, buf []byte) error
	// SizeInSectors returns the device's total capacity.
	SizeInSectors() uint64
}

// FileHandle is the backing-file collaborator used by mmap and file pages.
type FileHandle interface {
	// Length returns the file's size in bytes.
	Length() int64
	// ReadAt reads up to nbytes into buf starting at offset. It returns
	// the number of bytes actually read; short reads are not an error.
	ReadAt(buf []byte, nbytes int, offset int64) (int, error)
	// WriteAt writes nbytes from buf at offset and returns the number of
	// bytes actually written.
	WriteAt(buf []byte, nbytes int, offset int64) (int, error)
	// Reopen returns a new handle to the same underlying file whose
	// lifetime is independent of the receiver, per spec §4.9's mmap
	// contract ("a fresh reopen so its lifetime is independent").
	Reopen() (FileHandle, error)
	// Close releases the handle.
	Close() error
}

const (
	// SectorSize is the fixed block-device sector size.
	SectorSize = 512
	// SectorsPerPage is the number of sectors needed to hold one page.
	SectorsPerPage = uint64(mem.PageSize) / SectorSize
)
