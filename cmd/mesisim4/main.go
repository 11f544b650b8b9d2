// Package main provides the entry point for mesisim4, a cycle-accurate
// 4-core MESI cache-coherent CPU simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/mesisim4/ioformat"
	"github.com/sarchlab/mesisim4/sim"
	"github.com/sarchlab/mesisim4/timing/bus"
)

var verbose = flag.Bool("v", false, "Verbose output")

// fileSet holds the 27 input/output file paths the simulator reads and
// writes, in the fixed positional order the reference tool accepts them.
type fileSet struct {
	imem      [4]string
	memin     string
	memout    string
	regout    [4]string
	coreTrace [4]string
	busTrace  string
	dsram     [4]string
	tsram     [4]string
	stats     [4]string
}

func defaultFileSet() fileSet {
	var fs fileSet
	for i := 0; i < 4; i++ {
		fs.imem[i] = fmt.Sprintf("imem%d.txt", i)
		fs.regout[i] = fmt.Sprintf("regout%d.txt", i)
		fs.coreTrace[i] = fmt.Sprintf("core%dtrace.txt", i)
		fs.dsram[i] = fmt.Sprintf("dsram%d.txt", i)
		fs.tsram[i] = fmt.Sprintf("tsram%d.txt", i)
		fs.stats[i] = fmt.Sprintf("stats%d.txt", i)
	}
	fs.memin = "memin.txt"
	fs.memout = "memout.txt"
	fs.busTrace = "bustrace.txt"
	return fs
}

// parsePositional fills fs from 27 positional arguments, in the order:
// imem0-3 memin memout regout0-3 core0trace-3 bustrace dsram0-3 tsram0-3
// stats0-3.
func parsePositional(args []string) (fileSet, error) {
	if len(args) != 27 {
		return fileSet{}, fmt.Errorf("expected 0 or 27 positional arguments, got %d", len(args))
	}
	var fs fileSet
	idx := 0
	next := func() string {
		v := args[idx]
		idx++
		return v
	}
	for i := 0; i < 4; i++ {
		fs.imem[i] = next()
	}
	fs.memin = next()
	fs.memout = next()
	for i := 0; i < 4; i++ {
		fs.regout[i] = next()
	}
	for i := 0; i < 4; i++ {
		fs.coreTrace[i] = next()
	}
	fs.busTrace = next()
	for i := 0; i < 4; i++ {
		fs.dsram[i] = next()
	}
	for i := 0; i < 4; i++ {
		fs.tsram[i] = next()
	}
	for i := 0; i < 4; i++ {
		fs.stats[i] = next()
	}
	return fs, nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mesisim4 [options] [imem0 imem1 imem2 imem3 memin memout "+
			"regout0-3 core0trace-3trace bustrace dsram0-3 tsram0-3 stats0-3]\n")
		fmt.Fprintf(os.Stderr, "       (27 positional arguments, or none for the default filenames)\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	fs := defaultFileSet()
	if flag.NArg() > 0 {
		parsed, err := parsePositional(flag.Args())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(1)
		}
		fs = parsed
	}

	if err := run(fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fs fileSet) error {
	if *verbose {
		fmt.Println("Multi-Core MESI Simulator")
		fmt.Println("=========================")
	}

	s := sim.New()

	for i := range s.Cores {
		if err := ioformat.LoadIMem(fs.imem[i], s.Cores[i].IMem()); err != nil {
			return fmt.Errorf("core %d: %w", i, err)
		}
		s.Cores[i].Pipeline.Bootstrap()
	}
	if err := ioformat.LoadMemIn(fs.memin, s.Memory); err != nil {
		return fmt.Errorf("loading memin: %w", err)
	}

	var coreTraces [4]*ioformat.CoreTraceWriter
	for i := 0; i < 4; i++ {
		w, err := ioformat.NewCoreTraceWriter(fs.coreTrace[i])
		if err != nil {
			return fmt.Errorf("opening core trace %d: %w", i, err)
		}
		coreTraces[i] = w
	}
	busTrace, err := ioformat.NewBusTraceWriter(fs.busTrace)
	if err != nil {
		return fmt.Errorf("opening bus trace: %w", err)
	}

	if *verbose {
		fmt.Println("Starting simulation...")
	}

	s.RunTraced(func(snapshots [4]sim.CoreSnapshot, busState bus.State) {
		cycle := s.Cycle()
		for i := 0; i < 4; i++ {
			coreTraces[i].WriteCycle(cycle, snapshots[i])
		}
		busTrace.WriteCycle(cycle, busState)
	})

	for i := 0; i < 4; i++ {
		if err := coreTraces[i].Close(); err != nil {
			return fmt.Errorf("closing core trace %d: %w", i, err)
		}
	}
	if err := busTrace.Close(); err != nil {
		return fmt.Errorf("closing bus trace: %w", err)
	}

	if *verbose {
		fmt.Printf("Simulation complete. Total cycles: %d\n", s.Cycle())
	}

	// Dirty Modified lines may still hold the only up-to-date copy of a
	// block when a core halts; flush them before dumping memout.
	for _, c := range s.Cores {
		c.Cache.FlushModified(s.Memory)
	}

	if err := ioformat.WriteMemOut(fs.memout, s.Memory); err != nil {
		return fmt.Errorf("writing memout: %w", err)
	}
	for i, c := range s.Cores {
		if err := ioformat.WriteRegOut(fs.regout[i], c.RegisterFile()); err != nil {
			return fmt.Errorf("writing regout %d: %w", i, err)
		}
		if err := ioformat.WriteDSRAM(fs.dsram[i], c.Cache); err != nil {
			return fmt.Errorf("writing dsram %d: %w", i, err)
		}
		if err := ioformat.WriteTSRAM(fs.tsram[i], c.Cache); err != nil {
			return fmt.Errorf("writing tsram %d: %w", i, err)
		}
		if err := ioformat.WriteStats(fs.stats[i], c.Stats()); err != nil {
			return fmt.Errorf("writing stats %d: %w", i, err)
		}
	}

	return nil
}
