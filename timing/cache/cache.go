// Package cache implements the per-core direct-mapped, write-back,
// write-allocate MESI cache: 64 lines of 8 words, coherence maintained by
// snooping a shared bus. Tag/validity bookkeeping is delegated to Akita's
// cache directory (the same component the reference timing model uses for
// its own, simpler valid/dirty cache); the four MESI states it doesn't
// natively track are layered on top in a side array.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/mesisim4/emu"
)

// NumLines is the number of direct-mapped cache lines (TSRAM entries).
const NumLines = 64

// BlockWords is the number of words per cache line (DSRAM block size).
const BlockWords = 8

// address field widths, in bits, over a 21-bit word address.
const (
	offsetBits = 3
	indexBits  = 6
)

const offsetMask = (1 << offsetBits) - 1

// State is a cache line's MESI state.
type State uint8

// MESI states, in the encoding the tag-cache dump format uses (0=I, 1=S,
// 2=E, 3=M).
const (
	Invalid State = iota
	Shared
	Exclusive
	Modified
)

// ReqKind distinguishes the two kinds of bus request a cache can raise.
type ReqKind uint8

// Request kinds.
const (
	ReqBusRd ReqKind = iota
	ReqBusRdX
)

// Statistics holds the four cache-specific counters of the eight-line
// per-core stats file (the cycle/instruction/stall counters live on the
// pipeline).
type Statistics struct {
	ReadHits   uint64
	WriteHits  uint64
	ReadMisses uint64
	WriteMisses uint64
}

// FillHandle identifies the cache line a multi-cycle fill (flush) is
// writing into. It is obtained from BeginFill and threaded through each
// FillWord call and the final CompleteFill call, so that all of them
// address the same line even though Akita's victim selection is only
// consulted once.
type FillHandle struct {
	block     *akitacache.Block
	index     int
	blockAddr uint32
}

// Cache is one core's private L1 data/instruction-agnostic cache (the ISA
// has no separate I-cache; IMEM is modeled as a flat per-core array with no
// caching, per §3).
type Cache struct {
	directory *akitacache.DirectoryImpl
	dataStore [][BlockWords]int32
	mesi      []State
	stats     Statistics

	waitingForBus  bool
	requestPending bool
	reqKind        ReqKind
	reqBlockAddr   uint32

	pendingIsWrite   bool
	pendingStoreAddr uint32
	pendingStoreData int32
}

// New creates an empty, all-Invalid cache.
func New() *Cache {
	dataStore := make([][BlockWords]int32, NumLines)
	return &Cache{
		directory: akitacache.NewDirectory(
			NumLines,
			1, // direct-mapped: one way per set
			BlockWords,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		mesi:      make([]State, NumLines),
	}
}

// Stats returns the cache's hit/miss counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func blockAddrOf(addr uint32) uint32 {
	return addr &^ offsetMask
}

func offsetOf(addr uint32) int {
	return int(addr & offsetMask)
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID // associativity 1: WayID is always 0
}

// Waiting reports whether this cache has an outstanding bus transaction
// (request issued, fill not yet complete).
func (c *Cache) Waiting() bool {
	return c.waitingForBus
}

// PendingRequest returns the bus request this cache wants serviced, if any.
// ok is false once the arbiter has granted it (ClearPendingRequest), even
// though the cache keeps waiting for the fill to complete.
func (c *Cache) PendingRequest() (kind ReqKind, blockAddr uint32, ok bool) {
	return c.reqKind, c.reqBlockAddr, c.requestPending
}

// ClearPendingRequest is called by the arbiter once it grants this cache's
// request. The cache keeps waiting for the fill (Waiting() stays true)
// until CompleteFill runs.
func (c *Cache) ClearPendingRequest() {
	c.requestPending = false
}

func (c *Cache) raiseRequest(kind ReqKind, blockAddr uint32) {
	c.waitingForBus = true
	c.requestPending = true
	c.reqKind = kind
	c.reqBlockAddr = blockAddr
}

// Read performs a load. ok is false (stall) on a miss; a BusRd is raised on
// the first detection of the miss and not reissued on subsequent polls
// while the transaction is outstanding.
func (c *Cache) Read(addr uint32) (data int32, ok bool) {
	block := c.directory.Lookup(0, uint64(blockAddrOf(addr)))
	if block != nil && block.IsValid {
		idx := c.blockIndex(block)
		c.stats.ReadHits++
		c.directory.Visit(block)
		return c.dataStore[idx][offsetOf(addr)], true
	}

	if !c.waitingForBus && !c.requestPending {
		c.stats.ReadMisses++
		c.raiseRequest(ReqBusRd, blockAddrOf(addr))
	}
	return 0, false
}

// Write performs a store (write-allocate, write-back). ok is false (stall)
// on a miss or a Shared-state upgrade; both raise a BusRdX and are counted
// as one write miss, consistent with the reference model treating an
// upgrade as a write miss.
func (c *Cache) Write(addr uint32, data int32) (ok bool) {
	block := c.directory.Lookup(0, uint64(blockAddrOf(addr)))
	if block != nil && block.IsValid {
		idx := c.blockIndex(block)
		if c.mesi[idx] == Modified || c.mesi[idx] == Exclusive {
			c.dataStore[idx][offsetOf(addr)] = data
			c.mesi[idx] = Modified
			block.IsDirty = true
			c.stats.WriteHits++
			c.directory.Visit(block)
			return true
		}
		// Shared: upgrade miss, falls through to the miss path below.
	}

	if !c.waitingForBus && !c.requestPending {
		c.stats.WriteMisses++
		c.pendingIsWrite = true
		c.pendingStoreAddr = addr
		c.pendingStoreData = data
		c.raiseRequest(ReqBusRdX, blockAddrOf(addr))
	}
	return false
}

// CheckEviction reports whether the line that blockAddr will be installed
// into currently holds a Modified block with a different tag, and if so
// returns that block's address and its 8 words so the bus can write them
// back before the new fill begins.
func (c *Cache) CheckEviction(blockAddr uint32) (oldBlockAddr uint32, words [BlockWords]int32, needed bool) {
	block := c.directory.FindVictim(uint64(blockAddr))
	idx := c.blockIndex(block)
	if block.IsValid && c.mesi[idx] == Modified && uint32(block.Tag) != blockAddr {
		return uint32(block.Tag), c.dataStore[idx], true
	}
	return 0, [BlockWords]int32{}, false
}

// BeginFill selects the line a fill will write into and returns a handle
// that FillWord/CompleteFill use for the remainder of the transaction.
func (c *Cache) BeginFill(blockAddr uint32) FillHandle {
	block := c.directory.FindVictim(uint64(blockAddr))
	return FillHandle{block: block, index: c.blockIndex(block), blockAddr: blockAddr}
}

// FillWord writes one flushed word into the line at the given block offset
// (0..7).
func (c *Cache) FillWord(h FillHandle, offset int, data int32) {
	c.dataStore[h.index][offset] = data
}

// Snoop observes a BusRd or BusRdX issued by another core and applies the
// MESI transition rules of §4.3. suppliedModified reports whether this
// cache must supply the data (it held the block in Modified state); words
// is a snapshot of the block taken before any invalidation, for the bus to
// send as the transaction's 8 Flush words once the response delay ends.
func (c *Cache) Snoop(blockAddr uint32, isRdX bool) (shared bool, suppliedModified bool, words [BlockWords]int32) {
	block := c.directory.Lookup(0, uint64(blockAddr))
	if block == nil || !block.IsValid {
		return false, false, words
	}
	idx := c.blockIndex(block)

	if !isRdX {
		shared = true
		switch c.mesi[idx] {
		case Modified:
			suppliedModified = true
			words = c.dataStore[idx]
			c.mesi[idx] = Shared
			block.IsDirty = false
		case Exclusive:
			c.mesi[idx] = Shared
		case Shared:
			// stays Shared
		}
		return shared, suppliedModified, words
	}

	if c.mesi[idx] == Modified {
		suppliedModified = true
		words = c.dataStore[idx]
	}
	c.mesi[idx] = Invalid
	block.IsValid = false
	block.IsDirty = false
	return false, suppliedModified, words
}

// CompleteFill applies the fill-completion rules of §4.2 on the 8th flush
// word: sets the final MESI state, overlays a pending store word for a
// write miss, and clears this cache's waiting/pending flags.
func (c *Cache) CompleteFill(h FillHandle, isRdX bool, sharedAtGrant bool) {
	h.block.Tag = uint64(h.blockAddr)
	h.block.IsValid = true

	if isRdX {
		c.mesi[h.index] = Modified
		h.block.IsDirty = true
		if c.pendingIsWrite && blockAddrOf(c.pendingStoreAddr) == h.blockAddr {
			c.dataStore[h.index][offsetOf(c.pendingStoreAddr)] = c.pendingStoreData
			c.pendingIsWrite = false
		}
	} else {
		if sharedAtGrant {
			c.mesi[h.index] = Shared
		} else {
			c.mesi[h.index] = Exclusive
		}
		h.block.IsDirty = false
	}

	c.directory.Visit(h.block)
	c.waitingForBus = false
	c.requestPending = false
}

// LineState returns the MESI state and 12-bit tag of line idx, for the
// tsram dump (§6).
func (c *Cache) LineState(idx int) (tag uint32, state State) {
	block := c.directory.GetSets()[idx].Blocks[0]
	if !block.IsValid {
		return 0, Invalid
	}
	return uint32(block.Tag) >> (offsetBits + indexBits), c.mesi[idx]
}

// DataWord returns word i (0..511) of the cache's linear data image, for
// the dsram dump (§6).
func (c *Cache) DataWord(i int) int32 {
	line := i / BlockWords
	word := i % BlockWords
	return c.dataStore[line][word]
}

// FlushModified writes every line still held Modified back to mem. Run at
// the end of a simulation, before memout is dumped, since a core can retire
// HALT while still holding the only up-to-date copy of a block.
func (c *Cache) FlushModified(mem *emu.Memory) {
	for idx := 0; idx < NumLines; idx++ {
		if c.mesi[idx] != Modified {
			continue
		}
		block := c.directory.GetSets()[idx].Blocks[0]
		if !block.IsValid {
			continue
		}
		blockAddr := uint32(block.Tag)
		for i := 0; i < BlockWords; i++ {
			mem.Write(blockAddr+uint32(i), c.dataStore[idx][i])
		}
	}
}
