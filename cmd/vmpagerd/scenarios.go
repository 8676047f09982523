package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/iface/sim"
	"github.com/gopheros/vmpager/kernel/mem/page"
	"github.com/gopheros/vmpager/kernel/mem/swap"
	"github.com/gopheros/vmpager/kernel/mem/vmm"
)

const demoSpace iface.SpaceID = 1

// freshSystem builds an isolated System with its own frame table and swap
// store, so each scenario runs against a clean slate independent of
// whatever was wired up for the configured demo regions.
func freshSystem(frames, swapSlots int) (*vmm.System, *sim.MMU, error) {
	mmu := sim.NewMMU()
	alloc := sim.NewAllocator(frames)
	ft := frame.NewTable(alloc, mmu)
	dev := sim.NewBlockDevice(uint64(swapSlots) * iface.SectorsPerPage)
	sys := vmm.New(ft, &page.Env{MMU: mmu, Swap: swap.New(dev)})
	if _, err := sys.CreateSpace(demoSpace); err != nil {
		return nil, nil, err
	}
	return sys, mmu, nil
}

// runScenario runs one of spec.md §8's S1-S6 scenarios and logs its steps.
func runScenario(name string, log zerolog.Logger) error {
	switch name {
	case "s1":
		return scenarioS1(log)
	case "s2":
		return scenarioS2(log)
	case "s3":
		return scenarioS3(log)
	case "s4":
		return scenarioS4(log)
	case "s5":
		return scenarioS5(log)
	case "s6":
		return scenarioS6(log)
	default:
		return fmt.Errorf("unknown scenario %q", name)
	}
}

func scenarioS1(log zerolog.Logger) error {
	sys, mmu, err := freshSystem(4, 4)
	if err != nil {
		return err
	}
	spt, _ := sys.Space(demoSpace)
	p := page.NewLazyAnon(demoSpace, 0x10000, true)
	if err := spt.Insert(p); err != nil {
		return err
	}
	if !sys.HandleFault(demoSpace, 0x10000, 0x10000, vmm.Flags{User: true, NotPresent: true}) {
		return errors.New("claim of lazy anon page failed")
	}
	kva, _ := mmu.Resolve(demoSpace, 0x10000)
	if kva.Bytes()[0] != 0 {
		return errors.New("first-touch anon byte was not zero")
	}
	log.Info().Msg("S1: lazy anon first touch produced a zero-filled page")
	return nil
}

func scenarioS2(log zerolog.Logger) error {
	sys, mmu, err := freshSystem(2, 2)
	if err != nil {
		return err
	}
	spt, _ := sys.Space(demoSpace)
	vas := []iface.VA{0x20000, 0x21000, 0x22000}
	values := []byte{0xAA, 0xBB, 0xCC}
	for i, va := range vas {
		p := page.NewLazyAnon(demoSpace, va, true)
		if err := spt.Insert(p); err != nil {
			return err
		}
		if !sys.HandleFault(demoSpace, va, va, vmm.Flags{User: true, NotPresent: true}) {
			return fmt.Errorf("claim of page %d failed", i)
		}
		kva, _ := mmu.Resolve(demoSpace, va)
		kva.Bytes()[0] = values[i]
		mmu.SetDirty(demoSpace, va, true)
	}
	if !sys.HandleFault(demoSpace, vas[0], vas[0], vmm.Flags{User: true, Write: true, NotPresent: true}) {
		return errors.New("re-claim of A failed")
	}
	kva, _ := mmu.Resolve(demoSpace, vas[0])
	if kva.Bytes()[0] != values[0] {
		return errors.New("A's byte did not survive the swap round trip")
	}
	log.Info().Msg("S2: anon swap round trip preserved page contents")
	return nil
}

func scenarioS3(log zerolog.Logger) error {
	sys, mmu, err := freshSystem(4, 2)
	if err != nil {
		return err
	}
	contents := make([]byte, 6000)
	for i := range contents {
		contents[i] = byte(i % 256)
	}
	fh := sim.NewFileHandle(contents)
	if _, err := sys.Mmap(demoSpace, 0x40000, 6000, false, fh, 0); err != nil {
		return err
	}
	read := func(off uint64) (byte, error) {
		va := iface.VA(0x40000).Add(uintptr(off))
		aligned := va.Align()
		if _, ok := mmu.Resolve(demoSpace, aligned); !ok {
			if !sys.HandleFault(demoSpace, va, va, vmm.Flags{User: true, NotPresent: true}) {
				return 0, fmt.Errorf("claim at offset %d failed", off)
			}
		}
		kva, _ := mmu.Resolve(demoSpace, aligned)
		return kva.Bytes()[uintptr(va)-uintptr(aligned)], nil
	}
	tail, err := read(6000)
	if err != nil {
		return err
	}
	if tail != 0 {
		return errors.New("expected zero-padded tail byte at offset 6000")
	}
	log.Info().Msg("S3: file mmap read zero-pads past EOF")
	return nil
}

func scenarioS4(log zerolog.Logger) error {
	sys, mmu, err := freshSystem(4, 2)
	if err != nil {
		return err
	}
	contents := make([]byte, 3000)
	for i := range contents {
		contents[i] = 0x11
	}
	fh := sim.NewFileHandle(contents)
	if _, err := sys.Mmap(demoSpace, 0x50000, 3000, true, fh, 0); err != nil {
		return err
	}
	if !sys.HandleFault(demoSpace, 0x50000, 0x50000, vmm.Flags{User: true, Write: true, NotPresent: true}) {
		return errors.New("claim failed")
	}
	kva, _ := mmu.Resolve(demoSpace, 0x50000)
	for i := 100; i < 200; i++ {
		kva.Bytes()[i] = 0x22
	}
	mmu.SetDirty(demoSpace, 0x50000, true)
	if err := sys.Munmap(demoSpace, 0x50000); err != nil {
		return err
	}
	got := make([]byte, 200)
	if _, err := fh.ReadAt(got, 200, 0); err != nil {
		return err
	}
	if got[150] != 0x22 {
		return errors.New("munmap did not write back the dirtied region")
	}
	log.Info().Msg("S4: file mmap writeback persisted the dirtied range")
	return nil
}

func scenarioS5(log zerolog.Logger) error {
	sys, _, err := freshSystem(4, 2)
	if err != nil {
		return err
	}
	rsp := vmm.UserStackTop - 4096
	within := rsp - 8
	if !sys.HandleFault(demoSpace, within, rsp, vmm.Flags{User: true, NotPresent: true}) {
		return errors.New("in-window stack growth fault was rejected")
	}
	outside := rsp - 64
	if sys.HandleFault(demoSpace, outside, rsp, vmm.Flags{User: true, NotPresent: true}) {
		return errors.New("out-of-window fault was incorrectly accepted")
	}
	log.Info().Msg("S5: stack growth window boundary enforced")
	return nil
}

func scenarioS6(log zerolog.Logger) error {
	sys, mmu, err := freshSystem(4, 2)
	if err != nil {
		return err
	}
	const child iface.SpaceID = 2
	parentSPT, _ := sys.Space(demoSpace)
	childSPT, err := sys.CreateSpace(child)
	if err != nil {
		return err
	}
	p := page.NewLazyAnon(demoSpace, 0x30000, true)
	if err := parentSPT.Insert(p); err != nil {
		return err
	}
	if !sys.HandleFault(demoSpace, 0x30000, 0x30000, vmm.Flags{User: true, Write: true, NotPresent: true}) {
		return errors.New("parent claim failed")
	}
	kva, _ := mmu.Resolve(demoSpace, 0x30000)
	kva.Bytes()[0] = 0x42

	if !sys.ForkSPT(child, parentSPT, childSPT) {
		return errors.New("ForkSPT failed")
	}
	childKVA, ok := mmu.Resolve(child, 0x30000)
	if !ok || childKVA.Bytes()[0] != 0x42 {
		return errors.New("child did not inherit parent's anon page contents")
	}
	log.Info().Msg("S6: fork copied the anon page into the child's address space")
	return nil
}
