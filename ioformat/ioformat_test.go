package ioformat_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim4/emu"
	"github.com/sarchlab/mesisim4/ioformat"
	"github.com/sarchlab/mesisim4/timing/cache"
	"github.com/sarchlab/mesisim4/timing/core"
)

var _ = Describe("IOFormat", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "ioformat-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	Describe("LoadIMem", func() {
		It("parses hex lines, skipping blanks", func() {
			path := filepath.Join(dir, "imem0.txt")
			Expect(os.WriteFile(path, []byte("0100000A\n\n  \n0200000B\n"), 0o644)).To(Succeed())

			im := emu.NewIMem()
			Expect(ioformat.LoadIMem(path, im)).To(Succeed())

			Expect(im.Fetch(0)).To(Equal(uint32(0x0100000A)))
			Expect(im.Fetch(1)).To(Equal(uint32(0x0200000B)))
		})

		It("leaves a zeroed image when the file doesn't exist", func() {
			im := emu.NewIMem()
			Expect(ioformat.LoadIMem(filepath.Join(dir, "missing.txt"), im)).To(Succeed())
			Expect(im.Fetch(0)).To(Equal(uint32(0)))
		})
	})

	Describe("memin/memout round trip", func() {
		It("loads a memory image and writes back only up to the highest non-zero word", func() {
			inPath := filepath.Join(dir, "memin.txt")
			Expect(os.WriteFile(inPath, []byte("00000001\n00000002\n00000000\n"), 0o644)).To(Succeed())

			mem := emu.NewMemory()
			Expect(ioformat.LoadMemIn(inPath, mem)).To(Succeed())
			Expect(mem.Read(0)).To(Equal(int32(1)))
			Expect(mem.Read(1)).To(Equal(int32(2)))

			outPath := filepath.Join(dir, "memout.txt")
			Expect(ioformat.WriteMemOut(outPath, mem)).To(Succeed())

			data, err := os.ReadFile(outPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("00000001\n00000002\n"))
		})
	})

	Describe("WriteRegOut", func() {
		It("writes R2..R15 only", func() {
			rf := &emu.RegFile{}
			rf.Write(2, 10)
			rf.Write(15, 99)
			rf.WriteImmediate(777) // must not leak into regout

			path := filepath.Join(dir, "regout0.txt")
			Expect(ioformat.WriteRegOut(path, rf)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := splitLines(string(data))
			Expect(lines).To(HaveLen(14))
			Expect(lines[0]).To(Equal("0000000A"))
			Expect(lines[13]).To(Equal("00000063"))
		})
	})

	Describe("WriteDSRAM and WriteTSRAM", func() {
		It("dumps the cache's data and tag/state images", func() {
			c := cache.New()
			h := c.BeginFill(0)
			for i := 0; i < cache.BlockWords; i++ {
				c.FillWord(h, i, int32(i+1))
			}
			c.CompleteFill(h, false, false)

			dsramPath := filepath.Join(dir, "dsram0.txt")
			Expect(ioformat.WriteDSRAM(dsramPath, c)).To(Succeed())
			data, err := os.ReadFile(dsramPath)
			Expect(err).NotTo(HaveOccurred())
			lines := splitLines(string(data))
			Expect(lines).To(HaveLen(cache.NumLines * cache.BlockWords))
			Expect(lines[0]).To(Equal("00000001"))
			Expect(lines[7]).To(Equal("00000008"))

			tsramPath := filepath.Join(dir, "tsram0.txt")
			Expect(ioformat.WriteTSRAM(tsramPath, c)).To(Succeed())
			tdata, err := os.ReadFile(tsramPath)
			Expect(err).NotTo(HaveOccurred())
			tlines := splitLines(string(tdata))
			Expect(tlines).To(HaveLen(cache.NumLines))
			// Exclusive (state 2), tag 0: encoded as (0<<2)|2 = 2.
			Expect(tlines[0]).To(Equal("00000002"))
		})
	})

	Describe("WriteStats", func() {
		It("writes the eight-line stats file in the fixed field order", func() {
			st := core.Stats{
				Cycles: 10, Instructions: 5, ReadHits: 1, WriteHits: 2,
				ReadMisses: 3, WriteMisses: 4, DecodeStalls: 6, MemStalls: 7,
			}
			path := filepath.Join(dir, "stats0.txt")
			Expect(ioformat.WriteStats(path, st)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(
				"cycles 10\ninstructions 5\nread_hit 1\nwrite_hit 2\n" +
					"read_miss 3\nwrite_miss 4\ndecode_stall 6\nmem_stall 7\n"))
		})
	})
})

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
