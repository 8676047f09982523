package swap

import (
	"testing"
	"unsafe"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

func kvaOf(buf []byte) iface.KVA {
	return iface.KVA(uintptr(unsafe.Pointer(&buf[0])))
}

// memDevice is an in-memory BlockDevice used only by this package's own
// tests; the shared simulated collaborator used by the rest of the module
// lives in kernel/mem/iface/sim.
type memDevice struct {
	sectors [][iface.SectorSize]byte
}

func newMemDevice(sectors int) *memDevice {
	return &memDevice{sectors: make([][iface.SectorSize]byte, sectors)}
}

func (d *memDevice) SectorRead(sector uint64, buf []byte) error {
	copy(buf, d.sectors[sector][:])
	return nil
}

func (d *memDevice) SectorWrite(sector uint64, buf []byte) error {
	copy(d.sectors[sector][:], buf)
	return nil
}

func (d *memDevice) SizeInSectors() uint64 {
	return uint64(len(d.sectors))
}

func TestAllocateReleaseRoundTrip(t *testing.T) {
	store := New(newMemDevice(int(iface.SectorsPerPage) * 2))

	if got := store.Capacity(); got != 2 {
		t.Fatalf("expected capacity 2; got %d", got)
	}

	s1, err := store.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := store.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1 == s2 {
		t.Fatal("expected distinct slots")
	}
	if got := store.InUseCount(); got != 2 {
		t.Fatalf("expected 2 slots in use; got %d", got)
	}

	if _, err := store.Allocate(); !kerrors.Is(err, kerrors.NoSwapSpace) {
		t.Fatalf("expected NoSwapSpace once the pool is exhausted; got %v", err)
	}

	store.Release(s1)
	if got := store.InUseCount(); got != 1 {
		t.Fatalf("expected 1 slot in use after release; got %d", got)
	}

	if _, err := store.Allocate(); err != nil {
		t.Fatalf("expected the released slot to be reusable: %v", err)
	}
}

func TestWriteReadPageRoundTrip(t *testing.T) {
	store := New(newMemDevice(int(iface.SectorsPerPage)))
	slot, err := store.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 4096)

	if err := store.WritePage(slot, kvaOf(src)); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := store.ReadPage(slot, kvaOf(dst)); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("byte %d: expected %d; got %d", i, src[i], dst[i])
		}
	}
}
