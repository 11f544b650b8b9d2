package emu

// MemWords is the size of main memory in words (2^21).
const MemWords = 1 << 21

// MemAddrMask masks a word address to the 21-bit main memory range.
const MemAddrMask = MemWords - 1

// Memory is the single shared main memory array, word-addressed.
type Memory struct {
	words [MemWords]int32
}

// NewMemory returns a zero-filled main memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns the word at addr (masked to the 21-bit address space).
func (m *Memory) Read(addr uint32) int32 {
	return m.words[addr&MemAddrMask]
}

// Write stores value at addr (masked to the 21-bit address space).
func (m *Memory) Write(addr uint32, value int32) {
	m.words[addr&MemAddrMask] = value
}

// HighestNonZero returns the index of the highest non-zero word, or -1 if
// every word is zero. Used when dumping memout: the output contains words
// 0..HighestNonZero inclusive.
func (m *Memory) HighestNonZero() int {
	for i := MemWords - 1; i >= 0; i-- {
		if m.words[i] != 0 {
			return i
		}
	}
	return -1
}
