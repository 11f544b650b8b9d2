// Package sim wires four cores, a shared bus, and main memory together into
// the top-level simulator and drives its per-cycle loop.
package sim

import (
	"fmt"
	"os"

	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/timing/bus"
	"github.com/sarchlab/mesisim4/timing/cache"
	"github.com/sarchlab/mesisim4/timing/core"
)

// MaxCycles bounds a run that never terminates on its own (a program stuck
// in an infinite loop without HALT), matching the reference run's watchdog.
const MaxCycles = 1_000_000

// Simulator owns the four cores, the shared bus, and main memory, and
// drives them one cycle at a time.
type Simulator struct {
	Cores  [bus.NumCores]*core.Core
	Bus    *bus.Bus
	Memory *emu.Memory

	cycle uint64
}

// New creates a simulator with four fresh cores sharing one main memory and
// one bus.
func New() *Simulator {
	memory := emu.NewMemory()
	caches := make([]*cache.Cache, bus.NumCores)

	s := &Simulator{Memory: memory}
	for i := 0; i < bus.NumCores; i++ {
		s.Cores[i] = core.New(i)
		caches[i] = s.Cores[i].Cache
	}
	s.Bus = bus.New(caches, memory)
	return s
}

// Cycle returns the number of cycles executed so far.
func (s *Simulator) Cycle() uint64 { return s.cycle }

// Active reports whether any core still has work in flight.
func (s *Simulator) Active() bool {
	for _, c := range s.Cores {
		if c.Active() {
			return true
		}
	}
	return s.Bus.TransactionInProgress()
}

// Tick advances the bus and every active core by one cycle. A core that has
// already fully drained is left untouched; re-ticking it would needlessly
// replay a no-op Fetch against a halted PC.
func (s *Simulator) Tick() {
	s.Bus.Tick()
	for _, c := range s.Cores {
		if c.Active() {
			c.Tick()
		}
	}
	s.cycle++
}

// Run advances the simulator until every core has halted and drained and
// the bus has no transaction in flight, or MaxCycles is reached. It returns
// the number of cycles actually executed.
func (s *Simulator) Run() uint64 {
	for s.Active() && s.cycle < MaxCycles {
		s.Tick()
	}
	s.reportWatchdog()
	return s.cycle
}

// reportWatchdog warns on stderr when the run stopped because it hit
// MaxCycles rather than because every core drained, matching the reference
// simulator's watchdog diagnostic.
func (s *Simulator) reportWatchdog() {
	if s.cycle >= MaxCycles && s.Active() {
		fmt.Fprintf(os.Stderr, "Exceeded %d cycles\n", MaxCycles)
	}
}

// CoreSnapshot is one core's trace-line contents for a single cycle: the
// five stage PCs plus the visible register file (R2..R15). Regs[0] holds
// R2, Regs[13] holds R15.
type CoreSnapshot struct {
	IFID, IDEX, EXMEM, MEMWB, WB           uint32
	IFIDOK, IDEXOK, EXMEMOK, MEMWBOK, WBOK bool
	Regs                                   [14]int32
}

func (s *Simulator) coreSnapshot(i int) CoreSnapshot {
	c := s.Cores[i]
	var snap CoreSnapshot
	snap.IFID, snap.IDEX, snap.EXMEM, snap.MEMWB, snap.WB,
		snap.IFIDOK, snap.IDEXOK, snap.EXMEMOK, snap.MEMWBOK, snap.WBOK = c.Pipeline.LatchPCs()
	for r := 2; r <= 15; r++ {
		snap.Regs[r-2] = c.RegisterFile().Read(uint8(r))
	}
	return snap
}

// RunTraced behaves like Run, but calls onCycle once per executed cycle with
// every core's pre-tick snapshot (the state trace lines report: latches and
// registers as committed at the end of the *previous* cycle) and the bus's
// state resulting from this cycle's arbitration or in-progress transfer.
// Centralizing this here keeps the trace-vs-tick interleaving exactly what
// the reference run produces, regardless of who is consuming it.
func (s *Simulator) RunTraced(onCycle func(snapshots [bus.NumCores]CoreSnapshot, busState bus.State)) uint64 {
	for s.Active() && s.cycle < MaxCycles {
		var snaps [bus.NumCores]CoreSnapshot
		for i := range s.Cores {
			snaps[i] = s.coreSnapshot(i)
		}

		s.Bus.Tick()
		busState := s.Bus.State()

		for _, c := range s.Cores {
			if c.Active() {
				c.Tick()
			}
		}
		s.cycle++

		if onCycle != nil {
			onCycle(snaps, busState)
		}
	}
	s.reportWatchdog()
	return s.cycle
}
