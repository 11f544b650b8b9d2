// Package pipeline implements the per-core 5-stage in-order pipeline:
// Fetch, Decode, Execute, Memory, Writeback. Branches resolve in Decode
// with one-instruction delay-slot semantics; there is no forwarding, so a
// data hazard stalls Decode until the producing instruction has drained
// past Writeback.
package pipeline

import "github.com/sarchlab/mesisim4/insts"

// IFIDRegister holds state latched between Fetch and Decode.
type IFIDRegister struct {
	Valid bool
	PC    uint32
	Word  uint32
}

// Clear invalidates the latch.
func (r *IFIDRegister) Clear() { *r = IFIDRegister{} }

// IDEXRegister holds state latched between Decode and Execute.
type IDEXRegister struct {
	Valid bool
	PC    uint32
	Inst  insts.Instruction

	RsValue int32
	RtValue int32
	RdValue int32

	// ReturnAddr carries JAL's precomputed return address through Execute
	// unchanged, mirroring how Execute passes an ALU result through.
	ReturnAddr int32
}

// Clear invalidates the latch.
func (r *IDEXRegister) Clear() { *r = IDEXRegister{} }

// EXMEMRegister holds state latched between Execute and Memory.
type EXMEMRegister struct {
	Valid bool
	PC    uint32
	Inst  insts.Instruction

	// Result is the ALU result for ALU ops, the effective word address for
	// LW/SW, or the return address for JAL.
	Result int32

	// StoreValue is the word SW writes, taken from rd.
	StoreValue int32
}

// Clear invalidates the latch.
func (r *EXMEMRegister) Clear() { *r = EXMEMRegister{} }

// MEMWBRegister holds state latched between Memory and Writeback.
type MEMWBRegister struct {
	Valid bool
	PC    uint32
	Inst  insts.Instruction

	Result  int32
	MemData int32
}

// Clear invalidates the latch.
func (r *MEMWBRegister) Clear() { *r = MEMWBRegister{} }

// destReg reports the register this latch's instruction will write, if any
// (JAL's destination is the link register, not its decoded rd field), for
// hazard detection.
func destReg(valid bool, inst insts.Instruction) (reg uint8, ok bool) {
	if !valid {
		return 0, false
	}
	return inst.Op.WritesRegister(inst.Rd)
}
