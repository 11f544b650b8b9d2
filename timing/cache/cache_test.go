package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		c = cache.New()
	})

	Describe("Read", func() {
		It("misses on an empty line and raises a BusRd", func() {
			_, ok := c.Read(0x100)
			Expect(ok).To(BeFalse())

			kind, blockAddr, pending := c.PendingRequest()
			Expect(pending).To(BeTrue())
			Expect(kind).To(Equal(cache.ReqBusRd))
			Expect(blockAddr).To(Equal(uint32(0x100) &^ 0x7))
			Expect(c.Stats().ReadMisses).To(Equal(uint64(1)))
		})

		It("does not re-raise a request while already waiting", func() {
			c.Read(0x100)
			c.ClearPendingRequest()
			c.Read(0x100)
			Expect(c.Stats().ReadMisses).To(Equal(uint64(1)))
		})

		It("hits after a fill completes", func() {
			c.Read(0x100)
			h := c.BeginFill(0x100)
			for i := 0; i < cache.BlockWords; i++ {
				c.FillWord(h, i, int32(i*10))
			}
			c.CompleteFill(h, false, false)

			data, ok := c.Read(0x102)
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(int32(20)))
			Expect(c.Stats().ReadHits).To(Equal(uint64(1)))
		})

		It("ends up Exclusive on a BusRd fill with shared=false", func() {
			c.Read(0x100)
			h := c.BeginFill(0x100)
			c.CompleteFill(h, false, false)
			_, state := c.LineState(32)
			Expect(state).To(Equal(cache.Exclusive))
		})

		It("ends up Shared on a BusRd fill with shared=true", func() {
			c.Read(0x100)
			h := c.BeginFill(0x100)
			c.CompleteFill(h, false, true)
			_, state := c.LineState(32)
			Expect(state).To(Equal(cache.Shared))
		})
	})

	Describe("Write", func() {
		It("misses on an empty line and raises a BusRdX", func() {
			ok := c.Write(0x100, 42)
			Expect(ok).To(BeFalse())

			kind, _, pending := c.PendingRequest()
			Expect(pending).To(BeTrue())
			Expect(kind).To(Equal(cache.ReqBusRdX))
			Expect(c.Stats().WriteMisses).To(Equal(uint64(1)))
		})

		It("completes a write-allocate fill by overlaying the store word", func() {
			c.Write(0x102, 99)
			h := c.BeginFill(0x100)
			for i := 0; i < cache.BlockWords; i++ {
				c.FillWord(h, i, 0)
			}
			c.CompleteFill(h, true, false)

			data, ok := c.Read(0x102)
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(int32(99)))

			_, state := c.LineState(32)
			Expect(state).To(Equal(cache.Modified))
		})

		It("hits directly on Exclusive/Modified without a new request", func() {
			c.Write(0x100, 1)
			h := c.BeginFill(0x100)
			c.CompleteFill(h, true, false)

			ok := c.Write(0x100, 2)
			Expect(ok).To(BeTrue())
			Expect(c.Stats().WriteHits).To(Equal(uint64(1)))
		})

		It("treats a write to a Shared line as an upgrade miss", func() {
			c.Read(0x100)
			h := c.BeginFill(0x100)
			c.CompleteFill(h, false, true) // ends Shared

			ok := c.Write(0x100, 5)
			Expect(ok).To(BeFalse())
			Expect(c.Stats().WriteMisses).To(Equal(uint64(1)))

			kind, _, _ := c.PendingRequest()
			Expect(kind).To(Equal(cache.ReqBusRdX))
		})
	})

	Describe("Snoop", func() {
		It("transitions Modified to Shared on an observed BusRd and supplies data", func() {
			c.Write(0x100, 7)
			h := c.BeginFill(0x100)
			c.FillWord(h, 0, 7)
			c.CompleteFill(h, true, false)

			shared, suppliedModified, words := c.Snoop(0x100, false)
			Expect(shared).To(BeTrue())
			Expect(suppliedModified).To(BeTrue())
			Expect(words[0]).To(Equal(int32(7)))

			_, state := c.LineState(32)
			Expect(state).To(Equal(cache.Shared))
		})

		It("invalidates on an observed BusRdX", func() {
			c.Read(0x100)
			h := c.BeginFill(0x100)
			c.CompleteFill(h, false, false) // Exclusive

			shared, suppliedModified, _ := c.Snoop(0x100, true)
			Expect(shared).To(BeFalse())
			Expect(suppliedModified).To(BeFalse())

			_, state := c.LineState(32)
			Expect(state).To(Equal(cache.Invalid))
		})

		It("ignores snoops for blocks it does not hold", func() {
			shared, suppliedModified, _ := c.Snoop(0x500, false)
			Expect(shared).To(BeFalse())
			Expect(suppliedModified).To(BeFalse())
		})
	})

	Describe("CheckEviction", func() {
		It("reports no eviction needed for an Invalid line", func() {
			_, _, needed := c.CheckEviction(0x100)
			Expect(needed).To(BeFalse())
		})

		It("reports the old block and data when overwriting a Modified line with a different tag", func() {
			c.Write(0x000, 11)
			h := c.BeginFill(0x000)
			c.FillWord(h, 0, 11)
			c.CompleteFill(h, true, false)

			// Same index (bits 8-3), different tag: index 0, new tag.
			otherBlockAddr := uint32(1) << 9
			oldAddr, words, needed := c.CheckEviction(otherBlockAddr)
			Expect(needed).To(BeTrue())
			Expect(oldAddr).To(Equal(uint32(0)))
			Expect(words[0]).To(Equal(int32(11)))
		})

		It("needs no writeback for a non-Modified line", func() {
			c.Read(0x000)
			h := c.BeginFill(0x000)
			c.CompleteFill(h, false, false) // Exclusive, not Modified

			otherBlockAddr := uint32(1) << 9
			_, _, needed := c.CheckEviction(otherBlockAddr)
			Expect(needed).To(BeFalse())
		})
	})

	Describe("FlushModified", func() {
		It("writes every Modified line back to memory", func() {
			c.Write(0x000, 55) // miss, write-allocate
			h := c.BeginFill(0x000)
			for i := 0; i < cache.BlockWords; i++ {
				c.FillWord(h, i, 0)
			}
			c.CompleteFill(h, true, false) // Modified, overlays word 0 with 55

			mem := emu.NewMemory()
			c.FlushModified(mem)

			Expect(mem.Read(0x000)).To(Equal(int32(55)))
		})

		It("leaves non-Modified lines untouched", func() {
			c.Read(0x000)
			h := c.BeginFill(0x000)
			for i := 0; i < cache.BlockWords; i++ {
				c.FillWord(h, i, int32(i+1))
			}
			c.CompleteFill(h, false, false) // Exclusive

			mem := emu.NewMemory()
			mem.Write(0x000, 999)
			c.FlushModified(mem)

			Expect(mem.Read(0x000)).To(Equal(int32(999)))
		})
	})
})
