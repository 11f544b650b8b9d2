// Package bus implements the single shared bus that arbitrates cache-miss
// requests across the four cores, snoops them against the other three
// caches, and drives the memory controller's response: a 16-cycle
// round-trip delay followed by 8 one-word-per-cycle Flush transfers.
package bus

import (
	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/timing/cache"
)

// NumCores is the number of cores sharing this bus.
const NumCores = 4

// MemResponseDelay is the number of idle cycles between a transaction being
// granted and the first Flush word being sent.
const MemResponseDelay = 16

// OrigMemory is the bus origid value meaning "data supplied by main memory"
// rather than by a snooping cache.
const OrigMemory = 4

// noDataSource marks a memory response with no supplying cache.
const noDataSource = -1

// Command is the command field of a bus transaction.
type Command uint8

// Bus commands.
const (
	CmdNone Command = iota
	CmdBusRd
	CmdBusRdX
	CmdFlush
)

// State is the bus's externally visible signals for the current cycle,
// matching the bus trace line format of §6.
type State struct {
	Active bool
	Cmd    Command
	OrigID int
	Addr   uint32
	Data   int32
	Shared bool
}

type memResponse struct {
	valid           bool
	requestingCore  int
	blockAddr       uint32
	isRdX           bool
	dataSource      int
	sourceWords     [cache.BlockWords]int32
	wordsSent       int
	shared          bool
	cyclesRemaining int
	handle          cache.FillHandle
	handleSet       bool
}

// Bus is the shared bus and memory controller for one simulation's four
// cores.
type Bus struct {
	caches []*cache.Cache
	memory *emu.Memory

	lastGranted           int
	transactionInProgress bool

	state State
	resp  memResponse
}

// New creates a bus wired to the given per-core caches (indexed by core ID)
// and the shared main memory.
func New(caches []*cache.Cache, memory *emu.Memory) *Bus {
	return &Bus{
		caches:      caches,
		memory:      memory,
		lastGranted: NumCores - 1, // core 0 has highest priority first
	}
}

// State returns the bus signals driven during the cycle just ticked.
func (b *Bus) State() State {
	return b.state
}

// TransactionInProgress reports whether a granted request is still being
// serviced (delay countdown or Flush in progress).
func (b *Bus) TransactionInProgress() bool {
	return b.transactionInProgress
}

// arbitrate returns the core ID to grant the bus to this cycle, or -1 if
// none is eligible. Round-robin, starting just after the last core granted;
// no new grant is made while a transaction is already in progress.
func (b *Bus) arbitrate() int {
	if b.transactionInProgress {
		return -1
	}
	for i := 0; i < NumCores; i++ {
		coreID := (b.lastGranted + 1 + i) % NumCores
		if _, _, pending := b.caches[coreID].PendingRequest(); pending {
			return coreID
		}
	}
	return -1
}

// snoop runs the MESI snoop handlers of every cache but the requester's and
// reports whether the block is held elsewhere and, if some peer holds it
// Modified, which core and its data.
func (b *Bus) snoop(cmd Command, blockAddr uint32, requester int) (shared bool, modifiedCore int, words [cache.BlockWords]int32) {
	modifiedCore = noDataSource
	isRdX := cmd == CmdBusRdX
	for i := 0; i < NumCores; i++ {
		if i == requester {
			continue
		}
		s, suppliedModified, w := b.caches[i].Snoop(blockAddr, isRdX)
		if s {
			shared = true
		}
		if suppliedModified {
			modifiedCore = i
			words = w
		}
	}
	return shared, modifiedCore, words
}

// Tick advances the bus and memory controller by one cycle: it either
// services an in-flight memory response or arbitrates and issues a new
// transaction.
func (b *Bus) Tick() {
	b.state = State{}

	if b.transactionInProgress {
		b.tickMemoryResponse()
		return
	}

	granted := b.arbitrate()
	if granted < 0 {
		return
	}

	kind, blockAddr, _ := b.caches[granted].PendingRequest()
	cmd := CmdBusRd
	if kind == cache.ReqBusRdX {
		cmd = CmdBusRdX
	}

	// An eviction writeback to main memory happens synchronously, before the
	// new transaction is issued or snooped.
	if oldAddr, oldWords, needed := b.caches[granted].CheckEviction(blockAddr); needed {
		for i := 0; i < cache.BlockWords; i++ {
			b.memory.Write(oldAddr+uint32(i), oldWords[i])
		}
	}

	shared, modifiedCore, modifiedWords := b.snoop(cmd, blockAddr, granted)

	b.state = State{
		Active: true,
		Cmd:    cmd,
		OrigID: granted,
		Addr:   blockAddr,
		Shared: shared,
	}

	b.lastGranted = granted
	b.transactionInProgress = true
	b.caches[granted].ClearPendingRequest()

	b.resp = memResponse{
		valid:           true,
		requestingCore:  granted,
		blockAddr:       blockAddr,
		isRdX:           cmd == CmdBusRdX,
		dataSource:      modifiedCore,
		sourceWords:     modifiedWords,
		shared:          shared,
		cyclesRemaining: MemResponseDelay,
	}
}

func (b *Bus) tickMemoryResponse() {
	resp := &b.resp
	if !resp.valid {
		return
	}

	if resp.cyclesRemaining > 0 {
		resp.cyclesRemaining--
		return
	}

	b.sendFlushWord()
}

func (b *Bus) sendFlushWord() {
	resp := &b.resp
	if resp.wordsSent >= cache.BlockWords {
		return
	}

	wordAddr := resp.blockAddr + uint32(resp.wordsSent)

	var data int32
	var origID int
	if resp.dataSource != noDataSource {
		data = resp.sourceWords[resp.wordsSent]
		origID = resp.dataSource
		b.memory.Write(wordAddr, data)
	} else {
		data = b.memory.Read(wordAddr)
		origID = OrigMemory
	}

	b.state = State{
		Active: true,
		Cmd:    CmdFlush,
		OrigID: origID,
		Addr:   wordAddr,
		Data:   data,
		Shared: resp.shared,
	}

	h := b.fillHandle(resp)
	b.caches[resp.requestingCore].FillWord(h, resp.wordsSent, data)
	resp.wordsSent++

	if resp.wordsSent >= cache.BlockWords {
		b.caches[resp.requestingCore].CompleteFill(h, resp.isRdX, resp.shared)
		resp.valid = false
		b.transactionInProgress = false
	}
}

// fillHandle returns the fill handle for the in-flight response's block.
// BeginFill is called once, on the first Flush word, and its handle is
// reused for the remaining words of the same fill.
func (b *Bus) fillHandle(resp *memResponse) cache.FillHandle {
	if !resp.handleSet {
		resp.handle = b.caches[resp.requestingCore].BeginFill(resp.blockAddr)
		resp.handleSet = true
	}
	return resp.handle
}
