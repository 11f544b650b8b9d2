package ioformat

import (
	"fmt"

	"github.com/sarchlab/mesisim4/emu"
)

// LoadIMem fills im from a hex-per-line instruction image at path. A
// missing file leaves im zeroed, matching the reference loader's warning-
// and-continue behavior rather than aborting the run.
func LoadIMem(path string, im *emu.IMem) error {
	words, err := readHexFile(path, emu.IMemDepth)
	if err != nil {
		return fmt.Errorf("loading imem %s: %w", path, err)
	}
	im.Load(words)
	return nil
}

// LoadMemIn fills mem from a hex-per-line main memory image at path,
// starting at word 0.
func LoadMemIn(path string, mem *emu.Memory) error {
	words, err := readHexFile(path, emu.MemWords)
	if err != nil {
		return fmt.Errorf("loading memin %s: %w", path, err)
	}
	for i, w := range words {
		mem.Write(uint32(i), int32(w))
	}
	return nil
}

// WriteMemOut writes mem's contents from word 0 up to and including the
// highest non-zero word, one %08X line per word.
func WriteMemOut(path string, mem *emu.Memory) error {
	last := mem.HighestNonZero()
	values := make([]int32, last+1)
	for i := range values {
		values[i] = mem.Read(uint32(i))
	}
	if err := writeHexFile(path, values); err != nil {
		return fmt.Errorf("writing memout %s: %w", path, err)
	}
	return nil
}

// WriteRegOut writes rf's R2..R15 (never R0 or R1), one %08X line each.
func WriteRegOut(path string, rf *emu.RegFile) error {
	values := make([]int32, 0, emu.NumRegisters-2)
	for r := 2; r < emu.NumRegisters; r++ {
		values = append(values, rf.Read(uint8(r)))
	}
	if err := writeHexFile(path, values); err != nil {
		return fmt.Errorf("writing regout %s: %w", path, err)
	}
	return nil
}
