package sim

import (
	"sync"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// BlockDevice is an in-memory flat array of fixed-size sectors, used as the
// swap device in tests and in the cmd/vmpagerd demo harness in place of a
// real disk.
type BlockDevice struct {
	mu      sync.Mutex
	sectors [][iface.SectorSize]byte
}

// NewBlockDevice allocates a device of the given sector capacity.
func NewBlockDevice(sectorCount uint64) *BlockDevice {
	return &BlockDevice{sectors: make([][iface.SectorSize]byte, sectorCount)}
}

// SizeInSectors implements iface.BlockDevice.
func (d *BlockDevice) SizeInSectors() uint64 {
	return uint64(len(d.sectors))
}

// SectorRead implements iface.BlockDevice.
func (d *BlockDevice) SectorRead(sector uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sector >= uint64(len(d.sectors)) {
		return kerrors.New("sim", kerrors.NoSwapSpace, "sector out of range")
	}
	copy(buf, d.sectors[sector][:])
	return nil
}

// SectorWrite implements iface.BlockDevice.
func (d *BlockDevice) SectorWrite(sector uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sector >= uint64(len(d.sectors)) {
		return kerrors.New("sim", kerrors.NoSwapSpace, "sector out of range")
	}
	copy(d.sectors[sector][:], buf)
	return nil
}
