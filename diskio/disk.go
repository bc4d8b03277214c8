package diskio

import (
	"encoding/binary"

	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
	"github.com/ardnew/sdspi/sd"
)

// Card is the driver surface a Disk needs. *sd.Card implements it.
type Card interface {
	Status() sd.LinkStatus
	Class() sd.Class
	Initialize() error
	PowerUp() error
	ReadSectors(dst []byte, sector, count uint32) error
	WriteSectors(src []byte, sector, count uint32) error
	Erase(first, last uint32) error
	Sync() error
	SectorCount() (uint32, error)
	ReadCSD() (sd.CSD, error)
	ReadCID() (sd.CID, error)
	ReadOCR() (sd.OCR, error)
}

var _ Card = (*sd.Card)(nil)

// Control is an Ioctl control code.
type Control uint8

// Control codes.
const (
	CtrlSync       Control = 0  // Wait for pending writes to finish
	GetSectorCount Control = 1  // uint32 sector count
	GetSectorSize  Control = 2  // uint16 sector size
	CtrlTrim       Control = 4  // Erase the uint32 sector range [start, end]
	CtrlPower      Control = 5  // buf[0]: 0 off, 1 on, 2 check into buf[1]
	GetType        Control = 10 // card type flags
	GetCSD         Control = 11 // 16-byte CSD
	GetCID         Control = 12 // 16-byte CID
	GetOCR         Control = 13 // 4-byte OCR
)

// String returns the control name.
func (c Control) String() string {
	switch c {
	case CtrlSync:
		return "sync"
	case GetSectorCount:
		return "get-sector-count"
	case GetSectorSize:
		return "get-sector-size"
	case CtrlTrim:
		return "trim"
	case CtrlPower:
		return "power"
	case GetType:
		return "get-type"
	case GetCSD:
		return "get-csd"
	case GetCID:
		return "get-cid"
	case GetOCR:
		return "get-ocr"
	default:
		return "unknown"
	}
}

// Power sub-commands, passed in buf[0] of CtrlPower.
const (
	PowerOff   = 0
	PowerOn    = 1
	PowerCheck = 2
)

// Card type flags returned by GetType.
const (
	TypeSDv1  = 0x02
	TypeSDv2  = 0x04
	TypeBlock = 0x08 // block addressed
)

// Options configures a Disk.
type Options struct {
	// ReadOnly disables Write and CtrlTrim.
	ReadOnly bool
}

// Disk serves one card as drive 0.
type Disk struct {
	card Card
	opts Options

	power     bool
	protected bool
}

// New creates a disk for card. A nil opts selects a read-write disk.
func New(card Card, opts *Options) *Disk {
	d := &Disk{card: card}
	if opts != nil {
		d.opts = *opts
	}
	return d
}

// SetWriteProtected sets the write-protect flag reported by Status and
// enforced by Write.
func (d *Disk) SetWriteProtected(protected bool) {
	d.protected = protected
}

// ReadOnly reports whether writes are refused, by build option or by
// write protection.
func (d *Disk) ReadOnly() bool {
	return d.opts.ReadOnly || d.protected
}

func (d *Disk) ready() bool {
	return d.power && d.card.Status() == sd.StatusReady
}

func (d *Disk) status() Status {
	var s Status
	if !d.ready() {
		s |= StatusNoInit
	}
	if d.protected {
		s |= StatusProtect
	}
	return s
}

func checkDrive(drive uint8) error {
	if drive != 0 {
		return pkg.Errorf(pkg.ErrParameter, "drive %d", drive)
	}
	return nil
}

// Status returns the status flags of drive.
func (d *Disk) Status(drive uint8) (Status, error) {
	if drive != 0 {
		return StatusNoInit, pkg.Errorf(pkg.ErrNotSupported, "drive %d", drive)
	}
	return d.status(), nil
}

// Initialize powers the card and runs the full initialization sequence.
// The returned status reflects the outcome either way.
func (d *Disk) Initialize(drive uint8) (Status, error) {
	if drive != 0 {
		return StatusNoInit, pkg.Errorf(pkg.ErrNotSupported, "drive %d", drive)
	}

	d.power = true
	err := d.card.Initialize()
	s := d.status()
	if err != nil {
		pkg.LogWarn(pkg.ComponentDisk, "initialize failed", "error", err)
		return s, err
	}
	pkg.LogInfo(pkg.ComponentDisk, "disk initialized",
		"class", d.card.Class().String(),
		"status", s.String())
	return s, nil
}

// Read reads count sectors starting at sector into buf.
func (d *Disk) Read(drive uint8, buf []byte, sector, count uint32) error {
	if err := d.checkBlocks(drive, buf, count); err != nil {
		return err
	}
	if !d.ready() {
		return pkg.ErrNotReady
	}
	return d.card.ReadSectors(buf, sector, count)
}

// Write writes count sectors from buf starting at sector.
func (d *Disk) Write(drive uint8, buf []byte, sector, count uint32) error {
	if err := d.checkBlocks(drive, buf, count); err != nil {
		return err
	}
	if d.opts.ReadOnly {
		return pkg.Errorf(pkg.ErrNotSupported, "read-only disk")
	}
	if !d.ready() {
		return pkg.ErrNotReady
	}
	if d.protected {
		return pkg.ErrWriteProtected
	}
	return d.card.WriteSectors(buf, sector, count)
}

func (d *Disk) checkBlocks(drive uint8, buf []byte, count uint32) error {
	if err := checkDrive(drive); err != nil {
		return err
	}
	if count == 0 {
		return pkg.Errorf(pkg.ErrParameter, "zero sector count")
	}
	if uint64(len(buf)) < uint64(count)*sd.SectorSize {
		return pkg.Errorf(pkg.ErrBufferTooSmall, "%d bytes for %d sectors", len(buf), count)
	}
	return nil
}

// need checks that buf holds at least n bytes.
func need(ctrl Control, buf []byte, n int) error {
	if len(buf) < n {
		return pkg.Errorf(pkg.ErrBufferTooSmall, "%s needs %d bytes, have %d", ctrl, n, len(buf))
	}
	return nil
}

// Ioctl runs a control operation. Multi-byte values in buf are little
// endian; register contents are copied as read from the card.
func (d *Disk) Ioctl(drive uint8, ctrl Control, buf []byte) error {
	if err := checkDrive(drive); err != nil {
		return err
	}

	if ctrl == CtrlPower {
		return d.powerControl(buf)
	}

	if !d.ready() {
		return pkg.ErrNotReady
	}

	switch ctrl {
	case CtrlSync:
		return d.card.Sync()

	case GetSectorCount:
		if err := need(ctrl, buf, 4); err != nil {
			return err
		}
		n, err := d.card.SectorCount()
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf, n)
		return nil

	case GetSectorSize:
		if err := need(ctrl, buf, 2); err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(buf, sd.SectorSize)
		return nil

	case CtrlTrim:
		if err := need(ctrl, buf, 8); err != nil {
			return err
		}
		if d.ReadOnly() {
			return pkg.ErrWriteProtected
		}
		return d.card.Erase(binary.LittleEndian.Uint32(buf), binary.LittleEndian.Uint32(buf[4:]))

	case GetType:
		if err := need(ctrl, buf, 1); err != nil {
			return err
		}
		buf[0] = typeFlags(d.card.Class())
		return nil

	case GetCSD:
		if err := need(ctrl, buf, proto.CSDSize); err != nil {
			return err
		}
		r, err := d.card.ReadCSD()
		copy(buf, r[:])
		return err

	case GetCID:
		if err := need(ctrl, buf, proto.CIDSize); err != nil {
			return err
		}
		r, err := d.card.ReadCID()
		copy(buf, r[:])
		return err

	case GetOCR:
		if err := need(ctrl, buf, proto.OCRSize); err != nil {
			return err
		}
		r, err := d.card.ReadOCR()
		copy(buf, r[:])
		return err

	default:
		return pkg.Errorf(pkg.ErrParameter, "control code %d", ctrl)
	}
}

// powerControl handles CtrlPower. The flag is local: turning power off
// has no effect on the link.
func (d *Disk) powerControl(buf []byte) error {
	if err := need(CtrlPower, buf, 1); err != nil {
		return err
	}

	switch buf[0] {
	case PowerOff:
		d.power = false
		pkg.LogDebug(pkg.ComponentDisk, "power off")
		return nil

	case PowerOn:
		d.power = true
		pkg.LogDebug(pkg.ComponentDisk, "power on")
		return d.card.PowerUp()

	case PowerCheck:
		if err := need(CtrlPower, buf, 2); err != nil {
			return err
		}
		buf[1] = 0
		if d.power {
			buf[1] = 1
		}
		return nil

	default:
		return pkg.Errorf(pkg.ErrParameter, "power sub-command %d", buf[0])
	}
}

func typeFlags(c sd.Class) byte {
	switch c {
	case sd.ClassStandardV1:
		return TypeSDv1
	case sd.ClassStandardV2:
		return TypeSDv2
	case sd.ClassHighCapacity:
		return TypeSDv2 | TypeBlock
	default:
		return 0
	}
}
