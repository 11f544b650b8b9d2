// Package core wraps one core's pipeline, register file, instruction
// memory, and private cache into the unit the simulator drives each cycle
// and the bus arbitrates against.
package core

import (
	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/timing/cache"
	"github.com/sarchlab/mesisim4/timing/pipeline"
)

// Stats is the eight-line per-core statistics file of §6, assembled from
// the pipeline's cycle/stall counters and the cache's hit/miss counters.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	ReadHits     uint64
	WriteHits    uint64
	ReadMisses   uint64
	WriteMisses  uint64
	DecodeStalls uint64
	MemStalls    uint64
}

// Core is one of the four identical processors sharing the bus and main
// memory.
type Core struct {
	ID       int
	Pipeline *pipeline.Pipeline
	Cache    *cache.Cache

	regFile *emu.RegFile
	imem    *emu.IMem
}

// New creates a core with its own register file, instruction memory, and
// cache, wired to a fresh pipeline.
func New(id int) *Core {
	regFile := &emu.RegFile{}
	imem := emu.NewIMem()
	c := cache.New()
	return &Core{
		ID:       id,
		Pipeline: pipeline.New(imem, regFile, c),
		Cache:    c,
		regFile:  regFile,
		imem:     imem,
	}
}

// LoadProgram fills this core's instruction memory and bootstraps its
// pipeline so the first instruction is already in flight before cycle 1.
func (c *Core) LoadProgram(words []uint32) {
	c.imem.Load(words)
	c.Pipeline.Bootstrap()
}

// Tick advances this core's pipeline by one cycle. The caller is
// responsible for calling it only while the core is Active.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Active reports whether this core still has work to do: its pipeline
// hasn't fully drained, or it is waiting on an outstanding bus transaction
// that the pipeline's own latches don't capture (the request may be
// granted and mid-flush with MEM/WB already empty of the stalled
// instruction's neighbors).
func (c *Core) Active() bool {
	return c.Pipeline.Active() || c.Cache.Waiting()
}

// Halted reports whether this core's HALT has retired.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// RegisterFile exposes the register file for dumping (R2..R15, per §6).
func (c *Core) RegisterFile() *emu.RegFile {
	return c.regFile
}

// IMem exposes this core's private instruction memory, so a loader can fill
// it before the pipeline is bootstrapped.
func (c *Core) IMem() *emu.IMem {
	return c.imem
}

// Stats returns this core's combined pipeline and cache statistics.
func (c *Core) Stats() Stats {
	ps := c.Pipeline.Stats()
	cs := c.Cache.Stats()
	return Stats{
		Cycles:       ps.Cycles,
		Instructions: ps.Instructions,
		ReadHits:     cs.ReadHits,
		WriteHits:    cs.WriteHits,
		ReadMisses:   cs.ReadMisses,
		WriteMisses:  cs.WriteMisses,
		DecodeStalls: ps.DecodeStalls,
		MemStalls:    ps.MemStalls,
	}
}
