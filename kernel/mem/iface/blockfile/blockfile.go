// Package blockfile implements iface.BlockDevice on top of a regular file,
// using golang.org/x/sys/unix Pread/Pwrite for sector-granularity,
// offset-based I/O without disturbing a shared file offset — the same
// syscall pair the corpus's Orizon block-device code uses for its disk
// backend.
package blockfile

import (
	"os"

	"golang.org/x/sys/unix"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// Device is a fixed-size swap device backed by a single file.
type Device struct {
	f       *os.File
	sectors uint64
}

// Open opens (or creates) path and truncates it to hold sectorCount sectors.
func Open(path string, sectorCount uint64) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, kerrors.Wrap(err, "blockfile", kerrors.NoSwapSpace, "open failed")
	}
	size := int64(sectorCount) * iface.SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, kerrors.Wrap(err, "blockfile", kerrors.NoSwapSpace, "truncate failed")
	}
	return &Device{f: f, sectors: sectorCount}, nil
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return d.f.Close()
}

// SizeInSectors implements iface.BlockDevice.
func (d *Device) SizeInSectors() uint64 {
	return d.sectors
}

// SectorRead implements iface.BlockDevice via pread(2), so concurrent
// callers on different sectors need no external locking.
func (d *Device) SectorRead(sector uint64, buf []byte) error {
	if sector >= d.sectors {
		return kerrors.New("blockfile", kerrors.NoSwapSpace, "sector out of range")
	}
	n, err := unix.Pread(int(d.f.Fd()), buf[:iface.SectorSize], int64(sector)*iface.SectorSize)
	if err != nil {
		return kerrors.Wrap(err, "blockfile", kerrors.NoSwapSpace, "pread failed")
	}
	if n < iface.SectorSize {
		return kerrors.New("blockfile", kerrors.NoSwapSpace, "short sector read")
	}
	return nil
}

// SectorWrite implements iface.BlockDevice via pwrite(2).
func (d *Device) SectorWrite(sector uint64, buf []byte) error {
	if sector >= d.sectors {
		return kerrors.New("blockfile", kerrors.NoSwapSpace, "sector out of range")
	}
	n, err := unix.Pwrite(int(d.f.Fd()), buf[:iface.SectorSize], int64(sector)*iface.SectorSize)
	if err != nil {
		return kerrors.Wrap(err, "blockfile", kerrors.NoSwapSpace, "pwrite failed")
	}
	if n < iface.SectorSize {
		return kerrors.New("blockfile", kerrors.NoSwapSpace, "short sector write")
	}
	return nil
}
