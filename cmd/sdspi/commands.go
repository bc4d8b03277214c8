package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/diskio"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
	"github.com/ardnew/sdspi/sd"
)

// errVerify reports read-back data that differs from what was written.
var errVerify = errors.New("verify mismatch")

type command func(opts options, args []string, e env) error

var commands = map[string]command{
	"serve":   serve,
	"mkimage": mkimage,
	"info":    info,
	"read":    read,
	"write":   write,
	"erase":   erase,
	"verify":  verify,
}

func parseUint(name, s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, usagef("Error parsing %s '%v', expected an unsigned int", name, s)
	}
	return v, nil
}

// sectorArgs parses "<sector> [count]".
func sectorArgs(args []string) (sector, count uint32, err error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, usagef("Expected <sector> [count]")
	}
	s, err := parseUint("sector", args[0], 32)
	if err != nil {
		return 0, 0, err
	}
	count = 1
	if len(args) == 2 {
		c, err := parseUint("count", args[1], 32)
		if err != nil {
			return 0, 0, err
		}
		if c == 0 {
			return 0, 0, usagef("Count must be at least 1")
		}
		count = uint32(c)
	}
	return uint32(s), count, nil
}

// checkSpan rejects sectors the card does not hold before any buffer is
// sized from a user count.
func checkSpan(d *diskio.Disk, sector uint32, count uint64) error {
	var buf [4]byte
	if err := d.Ioctl(0, diskio.GetSectorCount, buf[:]); err != nil {
		return err
	}
	sectors := binary.LittleEndian.Uint32(buf[:])
	if uint64(sector)+count > uint64(sectors) {
		return usagef("Sectors %d..%d past the end of the card (%d sectors)",
			sector, uint64(sector)+count-1, sectors)
	}
	return nil
}

// withSession opens the card, runs fn and closes the card.
func withSession(opts options, fn func(d *diskio.Disk) error) (err error) {
	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s.disk)
}

func serve(opts options, args []string, e env) error {
	if len(args) != 0 {
		return usagef("serve takes no arguments")
	}
	if opts.image == "" || opts.bus == "" {
		return usagef("serve needs both --image and --bus")
	}

	card, storage, err := openSimulated(opts)
	if err != nil {
		return err
	}
	defer storage.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkg.LogInfo(componentCLI, "serving simulated card",
		"card", card.String(),
		"image", opts.image,
		"bus", opts.bus)
	fmt.Fprintf(e.stdout, "serving %s on %s\n", card, opts.bus)

	if err := serveBus(ctx, opts.bus, card); err != nil {
		return err
	}
	return storage.Sync()
}

func mkimage(opts options, args []string, e env) error {
	if len(args) != 2 {
		return usagef("Expected <file> <sectors>")
	}
	sectors, err := parseUint("sectors", args[1], 32)
	if err != nil {
		return err
	}
	if sectors == 0 {
		return usagef("Image needs at least one sector")
	}
	if err := blockdev.CreateImage(args[0], sectors, proto.SectorSize); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "created %s: %d sectors (%d bytes)\n",
		args[0], sectors, sectors*proto.SectorSize)
	return nil
}

func info(opts options, args []string, e env) error {
	if len(args) != 0 {
		return usagef("info takes no arguments")
	}
	return withSession(opts, func(d *diskio.Disk) error {
		var (
			typ   [1]byte
			count [4]byte
			csd   sd.CSD
			cid   sd.CID
			ocr   sd.OCR
		)
		for _, q := range []struct {
			ctrl diskio.Control
			buf  []byte
		}{
			{diskio.GetType, typ[:]},
			{diskio.GetSectorCount, count[:]},
			{diskio.GetCSD, csd[:]},
			{diskio.GetCID, cid[:]},
			{diskio.GetOCR, ocr[:]},
		} {
			if err := d.Ioctl(0, q.ctrl, q.buf); err != nil {
				return fmt.Errorf("%s: %w", q.ctrl, err)
			}
		}

		sectors := binary.LittleEndian.Uint32(count[:])
		w := e.stdout
		fmt.Fprintf(w, "type:     %s\n", typeName(typ[0]))
		fmt.Fprintf(w, "sectors:  %d\n", sectors)
		fmt.Fprintf(w, "capacity: %s\n", formatBytes(uint64(sectors)*proto.SectorSize))
		fmt.Fprintf(w, "csd:      %x (v%d)\n", csd[:], csd.Version()+1)
		fmt.Fprintf(w, "cid:      %x\n", cid[:])
		fmt.Fprintf(w, "          %s\n", cid.String())
		fmt.Fprintf(w, "ocr:      %x (ccs=%t)\n", ocr[:], ocr.HighCapacity())
		return nil
	})
}

func typeName(flags byte) string {
	switch {
	case flags&diskio.TypeSDv2 != 0 && flags&diskio.TypeBlock != 0:
		return "SDHC (block addressed)"
	case flags&diskio.TypeSDv2 != 0:
		return "SDv2 (byte addressed)"
	case flags&diskio.TypeSDv1 != 0:
		return "SDv1 (byte addressed)"
	default:
		return "unknown"
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

func read(opts options, args []string, e env) error {
	sector, count, err := sectorArgs(args)
	if err != nil {
		return err
	}
	return withSession(opts, func(d *diskio.Disk) error {
		if err := checkSpan(d, sector, uint64(count)); err != nil {
			return err
		}
		buf := make([]byte, int(count)*proto.SectorSize)
		if err := d.Read(0, buf, sector, count); err != nil {
			return err
		}
		base := uint64(sector) * proto.SectorSize
		return hexdump(e.stdout, buf, base, dumpWidth(terminalWidth(e.stdout)))
	})
}

func write(opts options, args []string, e env) error {
	if len(args) != 2 {
		return usagef("Expected <sector> <file>")
	}
	s, err := parseUint("sector", args[0], 32)
	if err != nil {
		return err
	}
	sector := uint32(s)

	var data []byte
	if args[1] == "-" {
		data, err = io.ReadAll(e.stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return usagef("Nothing to write from '%v'", args[1])
	}
	if pad := len(data) % proto.SectorSize; pad != 0 {
		data = append(data, make([]byte, proto.SectorSize-pad)...)
	}
	count := uint32(len(data) / proto.SectorSize)

	return withSession(opts, func(d *diskio.Disk) error {
		if err := checkSpan(d, sector, uint64(count)); err != nil {
			return err
		}
		if err := d.Write(0, data, sector, count); err != nil {
			return err
		}
		if err := d.Ioctl(0, diskio.CtrlSync, nil); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "wrote %d sectors at %d\n", count, sector)
		return nil
	})
}

func erase(opts options, args []string, e env) error {
	if len(args) != 2 {
		return usagef("Expected <first> <last>")
	}
	first, err := parseUint("first", args[0], 32)
	if err != nil {
		return err
	}
	last, err := parseUint("last", args[1], 32)
	if err != nil {
		return err
	}
	if last < first {
		return usagef("Last sector %d precedes first sector %d", last, first)
	}

	return withSession(opts, func(d *diskio.Disk) error {
		if err := checkSpan(d, uint32(first), last-first+1); err != nil {
			return err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint32(buf[0:], uint32(first))
		binary.LittleEndian.PutUint32(buf[4:], uint32(last))
		if err := d.Ioctl(0, diskio.CtrlTrim, buf[:]); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "erased sectors %d-%d\n", first, last)
		return nil
	})
}

// verifyPattern fills a buffer that differs per sector and per byte.
func verifyPattern(sector, count uint32) []byte {
	buf := make([]byte, int(count)*proto.SectorSize)
	for i := range buf {
		s := sector + uint32(i/proto.SectorSize)
		buf[i] = byte(i) ^ byte(s*31) ^ byte(s>>8)
	}
	return buf
}

func verify(opts options, args []string, e env) error {
	sector, count, err := sectorArgs(args)
	if err != nil {
		return err
	}
	return withSession(opts, func(d *diskio.Disk) error {
		if err := checkSpan(d, sector, uint64(count)); err != nil {
			return err
		}
		want := verifyPattern(sector, count)
		if err := d.Write(0, want, sector, count); err != nil {
			return err
		}
		got := make([]byte, len(want))
		if err := d.Read(0, got, sector, count); err != nil {
			return err
		}
		if !bytes.Equal(got, want) {
			for i := range got {
				if got[i] != want[i] {
					return fmt.Errorf("%w: sector %d offset %d: got %#02x, want %#02x",
						errVerify, sector+uint32(i/proto.SectorSize), i%proto.SectorSize,
						got[i], want[i])
				}
			}
		}
		fmt.Fprintf(e.stdout, "verified %d sectors at %d\n", count, sector)
		return nil
	})
}
