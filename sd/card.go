package sd

import (
	"math"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// SectorSize is the fixed block length of every transfer.
const SectorSize = proto.SectorSize

// LinkStatus reports whether the card completed initialization.
type LinkStatus uint8

// Link status values.
const (
	StatusUninitialized LinkStatus = iota
	StatusReady
)

// String returns a human-readable status name.
func (s LinkStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Class is the card class detected during initialization.
type Class uint8

// Card classes.
const (
	ClassUnknown      Class = iota // not initialized, or initialization failed
	ClassStandardV1                // SD 1.x, byte addressed
	ClassStandardV2                // SD 2.0+ standard capacity, byte addressed
	ClassHighCapacity              // SDHC/SDXC, block addressed
)

// String returns a human-readable class name.
func (c Class) String() string {
	switch c {
	case ClassStandardV1:
		return "SDv1"
	case ClassStandardV2:
		return "SDv2"
	case ClassHighCapacity:
		return "SDHC"
	default:
		return "unknown"
	}
}

// BlockAddressed reports whether commands take sector numbers instead of
// byte offsets.
func (c Class) BlockAddressed() bool {
	return c == ClassHighCapacity
}

// PreErase reports whether multi-block writes send the ACMD23 pre-erase
// hint first.
func (c Class) PreErase() bool {
	return c == ClassStandardV2 || c == ClassHighCapacity
}

// Card drives one SD card in SPI mode over a Link.
//
// A Card is the whole retained state of the driver: the link status and
// the detected class. It performs no locking; the caller owns the card
// exclusively and must serialize every call.
type Card struct {
	link link.Link
	cfg  Config

	status LinkStatus
	class  Class

	frame [proto.FrameSize]byte
}

// New creates a driver for the card behind l. A nil cfg selects
// DefaultConfig. The card starts uninitialized.
func New(l link.Link, cfg *Config) *Card {
	c := &Card{link: l}
	if cfg != nil {
		c.cfg = *cfg
	}
	c.cfg.normalize()
	return c
}

// Status returns the current link status.
func (c *Card) Status() LinkStatus {
	return c.status
}

// Class returns the class detected by the last successful initialization.
func (c *Card) Class() Class {
	return c.class
}

// Config returns a copy of the active configuration.
func (c *Card) Config() Config {
	return c.cfg
}

// ready checks the precondition of every data and register operation.
func (c *Card) ready() error {
	if c.status != StatusReady {
		return pkg.ErrNotReady
	}
	return nil
}

// address converts a sector number to the command argument the card
// class expects.
func (c *Card) address(sector uint32) uint32 {
	if c.class.BlockAddressed() {
		return sector
	}
	return sector * SectorSize
}

// checkRange rejects a request whose last sector has no command argument
// for the card class. Byte-addressed cards reach 4 GiB; sector numbers past
// that would wrap onto lower addresses.
func (c *Card) checkRange(first, last uint64) error {
	limit := uint64(math.MaxUint32)
	if !c.class.BlockAddressed() {
		limit /= SectorSize
	}
	if last < first || last > limit {
		return pkg.Errorf(pkg.ErrParameter, "sectors %d..%d not addressable by %s card", first, last, c.class)
	}
	return nil
}

// acquire asserts chip-select for one exchange. Every acquire is paired
// with exactly one release, on every return path.
func (c *Card) acquire() {
	c.link.Select()
}

// release deasserts chip-select and clocks one more byte so the card
// lets go of its data line.
func (c *Card) release() {
	c.link.Deselect()
	c.link.Receive()
}
