// Package swap implements the Swap Store described in spec §4.1: a
// fixed-capacity pool of page-sized slots on a dedicated swap device.
package swap

import (
	"sync"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// Slot identifies one page-sized region of the swap device.
type Slot uint64

// Store manages slot allocation over a BlockDevice partitioned into
// PGSIZE-sized slots (8 sectors of 512 bytes each, per spec §4.1/§6).
type Store struct {
	mu       sync.Mutex
	device   iface.BlockDevice
	inUse    []bool
	freeHint int
}

// New binds store to device and partitions it into equal-size slots. This
// is the Store's init() contract from spec §4.1.
func New(device iface.BlockDevice) *Store {
	slots := device.SizeInSectors() / iface.SectorsPerPage
	return &Store{
		device: device,
		inUse:  make([]bool, slots),
	}
}

// Capacity returns the total number of slots the device can hold.
func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inUse)
}

// InUseCount returns the number of currently allocated slots — used by
// tests to check the invariant in spec §3 ("the swap bitmap's count of
// in-use slots equals the number of non-resident Anon Pages").
func (s *Store) InUseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, used := range s.inUse {
		if used {
			n++
		}
	}
	return n
}

// Allocate reserves a free slot, scanning linearly from the last known free
// hint (spec §4.1: "allocation scans for the first free slot"). The scan and
// reservation happen under the store's mutex so two concurrent swap-outs
// never select the same slot.
func (s *Store) Allocate() (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(s.inUse); i++ {
		idx := (s.freeHint + i) % len(s.inUse)
		if !s.inUse[idx] {
			s.inUse[idx] = true
			s.freeHint = idx + 1
			return Slot(idx), nil
		}
	}
	return 0, kerrors.New("swap", kerrors.NoSwapSpace, "no free swap slot")
}

// Release marks slot as free again.
func (s *Store) Release(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(slot) < len(s.inUse) {
		s.inUse[slot] = false
	}
}

// WritePage writes exactly one page's worth of bytes from kva to slot. Slot
// I/O needs no lock once the slot is reserved (spec §5).
func (s *Store) WritePage(slot Slot, kva iface.KVA) error {
	buf := kva.Bytes()
	base := uint64(slot) * iface.SectorsPerPage
	for sector := uint64(0); sector < iface.SectorsPerPage; sector++ {
		off := sector * iface.SectorSize
		if err := s.device.SectorWrite(base+sector, buf[off:off+iface.SectorSize]); err != nil {
			return kerrors.Wrap(err, "swap", kerrors.NoSwapSpace, "sector write failed")
		}
	}
	return nil
}

// ReadPage reads one page's worth of bytes from slot into kva.
func (s *Store) ReadPage(slot Slot, kva iface.KVA) error {
	buf := kva.Bytes()
	base := uint64(slot) * iface.SectorsPerPage
	for sector := uint64(0); sector < iface.SectorsPerPage; sector++ {
		off := sector * iface.SectorSize
		if err := s.device.SectorRead(base+sector, buf[off:off+iface.SectorSize]); err != nil {
			return kerrors.Wrap(err, "swap", kerrors.NoSwapSpace, "sector read failed")
		}
	}
	return nil
}
