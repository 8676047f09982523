package blockfile

import (
	"path/filepath"
	"testing"
)

func TestOpenReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")
	d, err := Open(path, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.SizeInSectors() != 8 {
		t.Fatalf("SizeInSectors = %d, want 8", d.SizeInSectors())
	}

	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(i * 3)
	}
	if err := d.SectorWrite(5, want); err != nil {
		t.Fatalf("SectorWrite: %v", err)
	}

	got := make([]byte, 512)
	if err := d.SectorRead(5, got); err != nil {
		t.Fatalf("SectorRead: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSectorOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")
	d, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	buf := make([]byte, 512)
	if err := d.SectorRead(4, buf); err == nil {
		t.Fatal("expected out-of-range read to fail")
	}
	if err := d.SectorWrite(100, buf); err == nil {
		t.Fatal("expected out-of-range write to fail")
	}
}

func TestReopenSurvivesAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")
	d1, err := Open(path, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := []byte("persisted-sector-data-0123456789")
	full := make([]byte, 512)
	copy(full, buf)
	if err := d1.SectorWrite(0, full); err != nil {
		t.Fatalf("SectorWrite: %v", err)
	}
	d1.Close()

	d2, err := Open(path, 2)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer d2.Close()

	got := make([]byte, 512)
	if err := d2.SectorRead(0, got); err != nil {
		t.Fatalf("SectorRead: %v", err)
	}
	if string(got[:len(buf)]) != string(buf) {
		t.Fatalf("data did not survive reopen: got %q", got[:len(buf)])
	}
}
