package pipeline

import "github.com/sarchlab/mesisim4/insts"

// HazardUnit detects the single hazard this pipeline can suffer: a decode
// whose source registers collide with a destination still in flight in
// ID/EX, EX/MEM, or MEM/WB. There is no forwarding, so any collision stalls
// decode until the producer has committed and aged out of MEM/WB.
type HazardUnit struct{}

// NewHazardUnit creates a hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// Stall reports whether decoding inst this cycle must stall.
func (h *HazardUnit) Stall(inst insts.Instruction, idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) bool {
	var dests [3]uint8
	var ndests int
	if d, ok := destReg(idex.Valid, idex.Inst); ok {
		dests[ndests] = d
		ndests++
	}
	if d, ok := destReg(exmem.Valid, exmem.Inst); ok {
		dests[ndests] = d
		ndests++
	}
	if d, ok := destReg(memwb.Valid, memwb.Inst); ok {
		dests[ndests] = d
		ndests++
	}
	if ndests == 0 {
		return false
	}

	collides := func(src uint8) bool {
		if src <= 1 {
			return false
		}
		for i := 0; i < ndests; i++ {
			if dests[i] == src {
				return true
			}
		}
		return false
	}

	if collides(inst.Rs) || collides(inst.Rt) {
		return true
	}
	if inst.Op.UsesRdAsSource() && collides(inst.Rd) {
		return true
	}
	return false
}
