package pipeline

import (
	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/insts"
	"github.com/sarchlab/mesisim4/timing/cache"
)

// Stats holds the pipeline's cycle and stall counters; the cache-specific
// half of the per-core statistics file lives on the cache itself.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	DecodeStalls uint64
	MemStalls    uint64
}

// Pipeline is one core's 5-stage pipeline, register file, and private
// instruction memory. It does not own the data cache — that is shared with
// the rest of the core so the bus can snoop it directly — but it drives all
// memory accesses through it.
type Pipeline struct {
	imem    *emu.IMem
	regFile *emu.RegFile
	cache   *cache.Cache

	hazard *HazardUnit

	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	nextIfid  IFIDRegister
	nextIdex  IDEXRegister
	nextExmem EXMEMRegister
	nextMemwb MEMWBRegister

	pc uint32

	cycles       uint64
	instructions uint64
	decodeStalls uint64
	memStalls    uint64

	memStalled bool
	halted     bool

	// wbCompleted tracks the instruction that retired last cycle, for the
	// trace's fifth column (the WB stage reports one cycle behind the other
	// four because by the time a cycle is traced, MEM/WB has not yet run).
	wbCompleted      MEMWBRegister
	wbCompletedValid bool
}

// New creates a pipeline wired to the given instruction memory, register
// file, and cache, with PC at zero.
func New(imem *emu.IMem, regFile *emu.RegFile, c *cache.Cache) *Pipeline {
	return &Pipeline{
		imem:    imem,
		regFile: regFile,
		cache:   c,
		hazard:  NewHazardUnit(),
	}
}

// Bootstrap prefetches the first instruction into IF/ID and advances PC, so
// that the very first traced cycle already shows an instruction in flight.
func (p *Pipeline) Bootstrap() {
	p.ifid = IFIDRegister{Valid: true, PC: p.pc, Word: p.imem.Fetch(p.pc)}
	p.pc = (p.pc + 1) & emu.PCMask
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 { return p.pc }

// Halted reports whether this pipeline's HALT has retired.
func (p *Pipeline) Halted() bool { return p.halted }

// Active reports whether the pipeline still has work to do: either it has
// not yet halted, or some latch has not finished draining.
func (p *Pipeline) Active() bool {
	return !p.halted || p.ifid.Valid || p.idex.Valid || p.exmem.Valid || p.memwb.Valid
}

// Stats returns the pipeline's cycle and stall counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Cycles:       p.cycles,
		Instructions: p.instructions,
		DecodeStalls: p.decodeStalls,
		MemStalls:    p.memStalls,
	}
}

// LatchPCs returns the five trace columns for the cycle about to run: the
// PCs currently in IF/ID, ID/EX, EX/MEM, MEM/WB, and the instruction that
// completed writeback the previous cycle, each paired with its validity.
func (p *Pipeline) LatchPCs() (ifid, idex, exmem, memwb, wb uint32, ifidOK, idexOK, exmemOK, memwbOK, wbOK bool) {
	return p.ifid.PC, p.idex.PC, p.exmem.PC, p.memwb.PC, p.wbCompleted.PC,
		p.ifid.Valid, p.idex.Valid, p.exmem.Valid, p.memwb.Valid, p.wbCompletedValid
}

// Tick advances the pipeline by one cycle.
func (p *Pipeline) Tick() {
	p.cycles++

	wbCompleting := p.memwb
	wbCompletingValid := p.memwb.Valid

	p.doWriteback()

	if p.halted {
		// HALT has retired: every younger instruction is squashed and
		// never reaches Memory or Writeback.
		p.nextMemwb.Clear()
		p.nextExmem.Clear()
		p.nextIdex.Clear()
		p.nextIfid.Clear()
		p.commitLatches(wbCompleting, wbCompletingValid)
		return
	}

	memOK := p.doMemory()
	if !memOK {
		p.memStalled = true
		p.memStalls++
	} else {
		p.memStalled = false
	}

	if p.memStalled {
		// Freeze the front of the pipeline; MEM retries next cycle.
		p.nextExmem = p.exmem
		p.nextIdex = p.idex
		p.nextIfid = p.ifid
		p.commitLatches(wbCompleting, wbCompletingValid)
		return
	}

	p.doExecute()
	decodeStall, branchTaken, branchTarget := p.doDecode()

	if decodeStall {
		p.nextIfid = p.ifid
	} else {
		p.doFetch()
		if branchTaken {
			p.pc = branchTarget
		} else {
			p.pc = (p.pc + 1) & emu.PCMask
		}
	}

	p.commitLatches(wbCompleting, wbCompletingValid)
}

func (p *Pipeline) commitLatches(wbCompleting MEMWBRegister, wbCompletingValid bool) {
	p.wbCompleted = wbCompleting
	p.wbCompletedValid = wbCompletingValid
	p.memwb = p.nextMemwb
	p.exmem = p.nextExmem
	p.idex = p.nextIdex
	p.ifid = p.nextIfid
}

// doWriteback commits MEM/WB to the register file.
func (p *Pipeline) doWriteback() {
	if !p.memwb.Valid {
		return
	}
	inst := p.memwb.Inst

	if inst.Op.IsHalt() {
		p.halted = true
		p.instructions++
		return
	}

	if reg, writes := inst.Op.WritesRegister(inst.Rd); writes {
		value := p.memwb.Result
		if inst.Op.IsLoad() {
			value = p.memwb.MemData
		}
		p.regFile.Write(reg, value)
	}
	p.instructions++
}

// doMemory runs the Memory stage, returning false (stall) on a cache miss.
func (p *Pipeline) doMemory() bool {
	if !p.exmem.Valid {
		p.nextMemwb.Clear()
		return true
	}

	next := MEMWBRegister{
		Valid:  true,
		PC:     p.exmem.PC,
		Inst:   p.exmem.Inst,
		Result: p.exmem.Result,
	}
	inst := p.exmem.Inst
	addr := uint32(p.exmem.Result) & emu.MemAddrMask

	switch {
	case inst.Op.IsLoad():
		data, ok := p.cache.Read(addr)
		if !ok {
			p.nextMemwb.Clear()
			return false
		}
		next.MemData = data
	case inst.Op.IsStore():
		if ok := p.cache.Write(addr, p.exmem.StoreValue); !ok {
			p.nextMemwb.Clear()
			return false
		}
	}

	p.nextMemwb = next
	return true
}

// doExecute runs the Execute stage.
func (p *Pipeline) doExecute() {
	if !p.idex.Valid {
		p.nextExmem.Clear()
		return
	}

	inst := p.idex.Inst
	next := EXMEMRegister{Valid: true, PC: p.idex.PC, Inst: inst}

	switch {
	case inst.Op.IsALU():
		next.Result = aluCompute(inst.Op, p.idex.RsValue, p.idex.RtValue)
	case inst.Op.IsLoad() || inst.Op.IsStore():
		next.Result = p.idex.RsValue + p.idex.RtValue
		next.StoreValue = p.idex.RdValue
	case inst.Op.IsJAL():
		next.Result = p.idex.ReturnAddr
	}

	p.nextExmem = next
}

// doDecode runs the Decode stage, including branch resolution. It returns
// true if a hazard forces a decode stall this cycle, and, if not, whether a
// branch or JAL was resolved taken and its target. The redirect is applied
// by Tick only after this same cycle's Fetch runs, so the delay-slot
// instruction — already in IF/ID — still completes.
func (p *Pipeline) doDecode() (stall, branchTaken bool, branchTarget uint32) {
	if !p.ifid.Valid {
		p.nextIdex.Clear()
		return false, false, 0
	}

	inst := insts.Decode(p.ifid.Word)

	// Written every decode attempt, even one that then stalls.
	p.regFile.WriteImmediate(inst.Imm)

	if p.hazard.Stall(inst, &p.idex, &p.exmem, &p.memwb) {
		p.decodeStalls++
		p.nextIdex.Clear()
		return true, false, 0
	}

	rs := p.regFile.Read(inst.Rs)
	rt := p.regFile.Read(inst.Rt)
	rd := p.regFile.Read(inst.Rd)

	next := IDEXRegister{
		Valid:   true,
		PC:      p.ifid.PC,
		Inst:    inst,
		RsValue: rs,
		RtValue: rt,
		RdValue: rd,
	}

	switch {
	case inst.Op.IsBranch():
		branchTaken = evalBranch(inst.Op, rs, rt)
		branchTarget = uint32(rd) & emu.PCMask
	case inst.Op.IsJAL():
		branchTaken = true
		branchTarget = uint32(rd) & emu.PCMask
		next.ReturnAddr = int32((p.ifid.PC + 1) & emu.PCMask)
	}

	p.nextIdex = next
	return false, branchTaken, branchTarget
}

// doFetch runs the Fetch stage, reading the instruction at the
// not-yet-redirected PC — the delay-slot instruction when this cycle's
// Decode resolved a taken branch.
func (p *Pipeline) doFetch() {
	if p.halted {
		p.nextIfid.Clear()
		return
	}
	p.nextIfid = IFIDRegister{Valid: true, PC: p.pc, Word: p.imem.Fetch(p.pc)}
}
