// Package config loads the YAML document that drives cmd/vmpagerd's demo
// address space, grounded in the same gopkg.in/yaml.v2-based loader style
// the wider example corpus's daemons use for their own config files.
package config

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Region describes one file-backed mapping to set up at startup.
type Region struct {
	// Addr is the page-aligned virtual address to map at, e.g. "0x40000".
	Addr string `yaml:"addr"`
	// File is the path of the backing file on the host filesystem.
	File string `yaml:"file"`
	// Writable controls whether the mapping is private-writable.
	Writable bool `yaml:"writable"`
	// Offset is the byte offset into File the mapping starts at.
	Offset int64 `yaml:"offset"`
	// Length is the number of bytes to map; 0 means the whole file.
	Length int `yaml:"length"`
}

// Config is the top-level demo/test configuration document.
type Config struct {
	// FrameCapacity is the number of physical user frames the simulated
	// allocator hands out.
	FrameCapacity int `yaml:"frame_capacity"`
	// SwapSlots is the number of page-sized slots the simulated swap
	// device is partitioned into.
	SwapSlots int `yaml:"swap_slots"`
	// SwapDevicePath, if set, backs the swap device with a real file via
	// kernel/mem/iface/blockfile instead of the in-memory sim device.
	SwapDevicePath string `yaml:"swap_device_path"`
	// Regions lists the file-backed mappings to establish at startup.
	Regions []Region `yaml:"regions"`
}

// defaults mirror a small, quick-to-run demo: enough frames and slots to
// exercise eviction without a large heap.
func defaults() Config {
	return Config{
		FrameCapacity: 8,
		SwapSlots:     8,
	}
}

// Load reads and parses the YAML document at path, filling in defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read config")
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "parse config")
	}
	if cfg.FrameCapacity <= 0 {
		return nil, pkgerrors.New("frame_capacity must be positive")
	}
	if cfg.SwapSlots <= 0 {
		return nil, pkgerrors.New("swap_slots must be positive")
	}
	return &cfg, nil
}
