package pipeline

import "github.com/sarchlab/mesisim4/insts"

func evalBranch(op insts.Op, rs, rt int32) bool {
	switch op {
	case insts.OpBEQ:
		return rs == rt
	case insts.OpBNE:
		return rs != rt
	case insts.OpBLT:
		return rs < rt
	case insts.OpBGT:
		return rs > rt
	case insts.OpBLE:
		return rs <= rt
	case insts.OpBGE:
		return rs >= rt
	default:
		return false
	}
}

func aluCompute(op insts.Op, rs, rt int32) int32 {
	switch op {
	case insts.OpADD:
		return rs + rt
	case insts.OpSUB:
		return rs - rt
	case insts.OpAND:
		return rs & rt
	case insts.OpOR:
		return rs | rt
	case insts.OpXOR:
		return rs ^ rt
	case insts.OpMUL:
		return rs * rt
	case insts.OpSLL:
		return int32(uint32(rs) << (uint32(rt) & 0x1F))
	case insts.OpSRA:
		return rs >> (uint32(rt) & 0x1F)
	case insts.OpSRL:
		return int32(uint32(rs) >> (uint32(rt) & 0x1F))
	default:
		return 0
	}
}
