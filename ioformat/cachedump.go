package ioformat

import (
	"fmt"

	"github.com/sarchlab/mesisim4/timing/cache"
)

// WriteDSRAM writes a cache's 512-word data image, one %08X line per word,
// in line-major/offset-minor order.
func WriteDSRAM(path string, c *cache.Cache) error {
	values := make([]int32, cache.NumLines*cache.BlockWords)
	for i := range values {
		values[i] = c.DataWord(i)
	}
	if err := writeHexFile(path, values); err != nil {
		return fmt.Errorf("writing dsram %s: %w", path, err)
	}
	return nil
}

// WriteTSRAM writes a cache's 64-line tag/state image: each line's 12-bit
// tag shifted left 2 bits, ORed with its 2-bit MESI encoding.
func WriteTSRAM(path string, c *cache.Cache) error {
	values := make([]int32, cache.NumLines)
	for i := range values {
		tag, state := c.LineState(i)
		values[i] = int32((tag&0xFFF)<<2 | uint32(state)&0x3)
	}
	if err := writeHexFile(path, values); err != nil {
		return fmt.Errorf("writing tsram %s: %w", path, err)
	}
	return nil
}
