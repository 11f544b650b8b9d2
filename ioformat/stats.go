package ioformat

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sarchlab/mesisim4/timing/core"
)

// WriteStats writes a core's eight-line statistics file, one "name value"
// pair per line in a fixed order.
func WriteStats(path string, st core.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	lines := []struct {
		name  string
		value uint64
	}{
		{"cycles", st.Cycles},
		{"instructions", st.Instructions},
		{"read_hit", st.ReadHits},
		{"write_hit", st.WriteHits},
		{"read_miss", st.ReadMisses},
		{"write_miss", st.WriteMisses},
		{"decode_stall", st.DecodeStalls},
		{"mem_stall", st.MemStalls},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s %d\n", line.name, line.value); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return w.Flush()
}
