package main

import (
	"fmt"
	"io"
	"strings"
)

// Hexdump line widths in bytes.
const (
	minDumpWidth     = 8
	defaultDumpWidth = 16
	maxDumpWidth     = 32
)

// dumpWidth returns the widest power-of-two line that fits in columns.
// A line of n bytes takes 4n+13 columns.
func dumpWidth(columns int) int {
	if columns <= 0 {
		return defaultDumpWidth
	}
	n := maxDumpWidth
	for n > minDumpWidth && 4*n+13 > columns {
		n /= 2
	}
	return n
}

// hexdump writes data as offset, hex bytes and printable characters,
// width bytes per line. Offsets start at base.
func hexdump(w io.Writer, data []byte, base uint64, width int) error {
	var line strings.Builder
	for off := 0; off < len(data); off += width {
		end := min(off+width, len(data))
		chunk := data[off:end]

		line.Reset()
		fmt.Fprintf(&line, "%08x  ", base+uint64(off))
		for i := 0; i < width; i++ {
			if i < len(chunk) {
				fmt.Fprintf(&line, "%02x ", chunk[i])
			} else {
				line.WriteString("   ")
			}
		}
		line.WriteString(" |")
		for _, b := range chunk {
			if b >= 0x20 && b < 0x7f {
				line.WriteByte(b)
			} else {
				line.WriteByte('.')
			}
		}
		line.WriteString("|\n")

		if _, err := io.WriteString(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}
