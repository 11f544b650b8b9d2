package ioformat

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/sim"
	"github.com/sarchlab/mesisim4/timing/bus"
)

// CoreTraceWriter writes one line per cycle in which a core has at least
// one non-empty pipeline stage: the cycle number, the five stage PCs
// (fetch/decode/exec/mem/writeback, "---" where a latch is empty), and the
// visible register file R2..R15.
type CoreTraceWriter struct {
	w   *bufio.Writer
	f   *os.File
	err error
}

// NewCoreTraceWriter creates path and returns a writer for it.
func NewCoreTraceWriter(path string) (*CoreTraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &CoreTraceWriter{w: bufio.NewWriter(f), f: f}, nil
}

// WriteCycle appends snap's trace line for the given cycle. A cycle with no
// active pipeline stage produces no line at all.
func (t *CoreTraceWriter) WriteCycle(cycle uint64, snap sim.CoreSnapshot) {
	if t.err != nil {
		return
	}
	if !snap.IFIDOK && !snap.IDEXOK && !snap.EXMEMOK && !snap.MEMWBOK && !snap.WBOK {
		return
	}

	t.printf("%d ", cycle)
	t.writeStage(snap.IFID, snap.IFIDOK)
	t.writeStage(snap.IDEX, snap.IDEXOK)
	t.writeStage(snap.EXMEM, snap.EXMEMOK)
	t.writeStage(snap.MEMWB, snap.MEMWBOK)
	t.writeStage(snap.WB, snap.WBOK)

	for i, v := range snap.Regs {
		sep := " "
		if i == len(snap.Regs)-1 {
			sep = "\n"
		}
		t.printf("%08X%s", uint32(v), sep)
	}
}

func (t *CoreTraceWriter) writeStage(pc uint32, valid bool) {
	if !valid {
		t.printf("--- ")
		return
	}
	t.printf("%03X ", pc&emu.PCMask)
}

func (t *CoreTraceWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	if _, err := fmt.Fprintf(t.w, format, args...); err != nil {
		t.err = err
	}
}

// Close flushes buffered output and closes the underlying file.
func (t *CoreTraceWriter) Close() error {
	if t.err != nil {
		_ = t.f.Close()
		return fmt.Errorf("writing core trace: %w", t.err)
	}
	if err := t.w.Flush(); err != nil {
		_ = t.f.Close()
		return fmt.Errorf("flushing core trace: %w", err)
	}
	return t.f.Close()
}

// BusTraceWriter writes one line per cycle in which the bus is doing
// something (its command is not CmdNone).
type BusTraceWriter struct {
	w   *bufio.Writer
	f   *os.File
	err error
}

// NewBusTraceWriter creates path and returns a writer for it.
func NewBusTraceWriter(path string) (*BusTraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &BusTraceWriter{w: bufio.NewWriter(f), f: f}, nil
}

// WriteCycle appends state's trace line for the given cycle, unless the bus
// was idle this cycle.
func (t *BusTraceWriter) WriteCycle(cycle uint64, state bus.State) {
	if t.err != nil || !state.Active {
		return
	}
	shared := 0
	if state.Shared {
		shared = 1
	}
	_, err := fmt.Fprintf(t.w, "%d %X %X %06X %08X %X\n",
		cycle, state.OrigID, state.Cmd, state.Addr&emu.MemAddrMask, uint32(state.Data), shared)
	if err != nil {
		t.err = err
	}
}

// Close flushes buffered output and closes the underlying file.
func (t *BusTraceWriter) Close() error {
	if t.err == nil {
		if err := t.w.Flush(); err != nil {
			t.err = err
		}
	}
	if t.err != nil {
		_ = t.f.Close()
		return fmt.Errorf("writing bus trace: %w", t.err)
	}
	return t.f.Close()
}
