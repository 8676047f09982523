package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmpager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "swap_device_path: /tmp/swap.img\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.FrameCapacity)
	require.Equal(t, 8, cfg.SwapSlots)
	require.Equal(t, "/tmp/swap.img", cfg.SwapDevicePath)
}

func TestLoadParsesRegions(t *testing.T) {
	path := writeConfig(t, `
frame_capacity: 4
swap_slots: 2
regions:
  - addr: "0x40000"
    file: testdata.bin
    writable: false
    offset: 0
    length: 6000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.FrameCapacity)
	require.Len(t, cfg.Regions, 1)
	require.Equal(t, "0x40000", cfg.Regions[0].Addr)
	require.Equal(t, 6000, cfg.Regions[0].Length)
}

func TestLoadRejectsNonPositiveCapacity(t *testing.T) {
	path := writeConfig(t, "frame_capacity: 0\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
