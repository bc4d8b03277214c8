package sim

import (
	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/proto"
)

// Class is the kind of card the simulator poses as.
type Class uint8

// Card classes.
const (
	ClassHighCapacity Class = iota // SDHC: block addressed, CSD version 2
	ClassStandardV2                // SD 2.0 standard capacity: byte addressed, CSD version 1
	ClassStandardV1                // SD 1.x: rejects CMD8, CSD version 1
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassHighCapacity:
		return "hc"
	case ClassStandardV2:
		return "v2"
	case ClassStandardV1:
		return "v1"
	default:
		return "unknown"
	}
}

// ParseClass returns the class named by s ("hc", "v2" or "v1").
func ParseClass(s string) (Class, bool) {
	for _, c := range []Class{ClassHighCapacity, ClassStandardV2, ClassStandardV1} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Defaults.
const (
	DefaultSectors       = 4096
	DefaultPowerUpClocks = 10 // bytes clocked with chip-select released
	DefaultWriteBusy     = 4  // busy bytes after each programmed block
)

// Config describes the simulated card and the faults it injects.
type Config struct {
	Class Class

	// Sectors, in SectorSize blocks. Nil selects a zeroed memory store of
	// DefaultSectors.
	Storage blockdev.Storage

	// IdleOnAttempt is the CMD0 attempt (1-based) that first answers with
	// the idle state. Earlier attempts get no response.
	IdleOnAttempt int

	// ReadyOnAttempt is the ACMD41 attempt (1-based) that completes
	// initialization.
	ReadyOnAttempt int

	// NeverReady keeps the card in the idle state forever.
	NeverReady bool

	// EchoMismatch corrupts the check pattern echoed by CMD8.
	EchoMismatch bool

	// TokenTimeout makes reads acknowledge the command but never send a
	// start token.
	TokenTimeout bool

	// RejectWrites, when non-zero, is the data response status (for
	// example proto.DataResponseCRCError) returned for every written block.
	RejectWrites byte

	// WriteBusy is the number of busy bytes after each programmed block.
	WriteBusy int

	// PowerUpClocks is the number of bytes that must be clocked with
	// chip-select released before the card accepts commands.
	PowerUpClocks int

	// WriteProtected sets the temporary write-protect bit of the CSD.
	WriteProtected bool

	// CID overrides the identification register. The zero value selects
	// DefaultCID.
	CID [proto.CIDSize]byte
}

func (c *Config) normalize() {
	if c.IdleOnAttempt < 1 {
		c.IdleOnAttempt = 1
	}
	if c.ReadyOnAttempt < 1 {
		c.ReadyOnAttempt = 1
	}
	if c.WriteBusy <= 0 {
		c.WriteBusy = DefaultWriteBusy
	}
	if c.PowerUpClocks <= 0 {
		c.PowerUpClocks = DefaultPowerUpClocks
	}
	if c.CID == ([proto.CIDSize]byte{}) {
		c.CID = DefaultCID()
	}
}

// DefaultCID returns the identification register of a simulated card:
// manufacturer 0x53, OEM "SD", product "SIMSD" revision 1.0, serial
// 0x12345678, manufactured June 2024.
func DefaultCID() [proto.CIDSize]byte {
	cid := [proto.CIDSize]byte{
		0x53,                    // MID
		'S', 'D',                // OID
		'S', 'I', 'M', 'S', 'D', // PNM
		0x10,                    // PRV
		0x12, 0x34, 0x56, 0x78,  // PSN
		0x01, 0x86,              // MDT: year 2000+24, month 6
	}
	cid[15] = proto.CRC7(cid[:15])<<1 | 1
	return cid
}
