// Package ioformat reads and writes the flat hex-text files the simulator
// is driven by and reports through: instruction and data memory images,
// per-core register/cache dumps, statistics files, and the core and bus
// execution traces.
package ioformat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// readHexWords reads up to max hex words from r, one per non-blank line,
// matching the reference reader: lines are trimmed, blank lines skipped,
// and each surviving line is parsed as a hex integer. A line that doesn't
// parse (the reference reader's sscanf("%x") would fail to match) is
// skipped rather than treated as an error.
func readHexWords(r io.Reader, max int) ([]uint32, error) {
	var words []uint32
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && len(words) < max {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			continue
		}
		words = append(words, uint32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hex lines: %w", err)
	}
	return words, nil
}

// readHexFile opens path and reads up to max hex words from it. A missing
// file is not an error: it reports zero words, matching the reference
// loader's "warn and continue with a zeroed memory" behavior.
func readHexFile(path string, max int) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: %s not found, using zeros\n", path)
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	words, err := readHexWords(f, max)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return words, nil
}

// writeHexFile creates path and writes one %08X line per value.
func writeHexFile(path string, values []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, v := range values {
		if _, err := fmt.Fprintf(w, "%08X\n", uint32(v)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return w.Flush()
}
