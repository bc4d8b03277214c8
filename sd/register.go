package sd

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// CSD is the raw Card-Specific Data register, most significant byte first.
// Bit positions below are those of the register (127 = first byte, MSB).
type CSD [proto.CSDSize]byte

// CSD structure versions as stored in CSD_STRUCTURE.
const (
	CSDVersion1 = 0 // standard capacity layout
	CSDVersion2 = 1 // high capacity layout
)

// Version returns CSD_STRUCTURE, bits [127:126].
func (r *CSD) Version() uint8 {
	return r[0] >> 6
}

// ReadBlockLength returns READ_BL_LEN, bits [83:80], as a byte count.
func (r *CSD) ReadBlockLength() uint32 {
	return 1 << (r[5] & 0x0F)
}

// TransferSpeed returns TRAN_SPEED, bits [103:96].
func (r *CSD) TransferSpeed() uint8 {
	return r[3]
}

// CSizeV2 returns the 22-bit C_SIZE of the version 2 layout, bits [69:48].
func (r *CSD) CSizeV2() uint32 {
	return uint32(r[7]&0x3F)<<16 | uint32(r[8])<<8 | uint32(r[9])
}

// CSizeV1 returns the 12-bit C_SIZE of the version 1 layout, bits [73:62].
func (r *CSD) CSizeV1() uint32 {
	return uint32(r[6]&0x03)<<10 | uint32(r[7])<<2 | uint32(r[8]>>6)
}

// CSizeMult returns C_SIZE_MULT of the version 1 layout, bits [49:47].
func (r *CSD) CSizeMult() uint8 {
	return (r[9]&0x03)<<1 | r[10]>>7
}

// EraseBlockEnable returns ERASE_BLK_EN, bit 46.
func (r *CSD) EraseBlockEnable() bool {
	return r[10]&0x40 != 0
}

// EraseSectorSize returns SECTOR_SIZE + 1, bits [45:39], the erase unit
// in write blocks.
func (r *CSD) EraseSectorSize() uint32 {
	return uint32(r[10]&0x3F)<<1 | uint32(r[11]>>7) + 1
}

// PermanentWriteProtect returns PERM_WRITE_PROTECT, bit 13.
func (r *CSD) PermanentWriteProtect() bool {
	return r[14]&0x20 != 0
}

// TemporaryWriteProtect returns TMP_WRITE_PROTECT, bit 12.
func (r *CSD) TemporaryWriteProtect() bool {
	return r[14]&0x10 != 0
}

// SectorCount returns the number of 512-byte sectors described by either
// layout. It returns 0 for a reserved structure version.
func (r *CSD) SectorCount() uint32 {
	switch r.Version() {
	case CSDVersion2:
		return (r.CSizeV2() + 1) << 10
	case CSDVersion1:
		// (C_SIZE+1) * 2^(C_SIZE_MULT+2) blocks of 2^READ_BL_LEN bytes
		blocks := (r.CSizeV1() + 1) << (r.CSizeMult() + 2)
		bl := r[5] & 0x0F
		if bl < 9 {
			return blocks >> (9 - bl)
		}
		return blocks << (bl - 9)
	default:
		return 0
	}
}

// CID is the raw Card Identification register.
type CID [proto.CIDSize]byte

// ManufacturerID returns MID, bits [127:120].
func (r *CID) ManufacturerID() uint8 {
	return r[0]
}

// OEMID returns the two-character OID, bits [119:104].
func (r *CID) OEMID() string {
	return string(r[1:3])
}

// ProductName returns the five-character PNM, bits [103:64].
func (r *CID) ProductName() string {
	return string(r[3:8])
}

// Revision returns PRV, bits [63:56], as major and minor digits.
func (r *CID) Revision() (major, minor uint8) {
	return r[8] >> 4, r[8] & 0x0F
}

// SerialNumber returns PSN, bits [55:24].
func (r *CID) SerialNumber() uint32 {
	return binary.BigEndian.Uint32(r[9:13])
}

// ManufactureDate returns MDT, bits [19:8].
func (r *CID) ManufactureDate() (year int, month int) {
	year = 2000 + int(r[13]&0x0F)<<4 + int(r[14]>>4)
	month = int(r[14] & 0x0F)
	return year, month
}

// String returns a one-line summary.
func (r *CID) String() string {
	major, minor := r.Revision()
	year, month := r.ManufactureDate()
	return fmt.Sprintf("MID=%#02x OID=%q PNM=%q PRV=%d.%d PSN=%#08x MDT=%04d-%02d",
		r.ManufacturerID(), r.OEMID(), r.ProductName(), major, minor,
		r.SerialNumber(), year, month)
}

// OCR is the raw Operation Conditions Register.
type OCR [proto.OCRSize]byte

// PowerUpDone returns the busy bit 31, set once initialization completes.
func (r *OCR) PowerUpDone() bool {
	return r[0]&proto.OCRPowerUpDone != 0
}

// HighCapacity returns CCS, bit 30. Only valid when PowerUpDone is set.
func (r *OCR) HighCapacity() bool {
	return r.PowerUpDone() && r[0]&proto.OCRCCS != 0
}

// VoltageWindow returns the supported supply range bits [23:15].
func (r *OCR) VoltageWindow() uint16 {
	return uint16(r[1])<<1 | uint16(r[2]>>7)
}

// readRegister reads a 16-byte register sent as a data block.
func (c *Card) readRegister(cmd uint8, dst []byte) error {
	if r1 := c.command(cmd, 0); r1 != proto.R1Ready {
		return c.fault(OpRegister, PhaseCommand, 0,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD%d r1 %#02x", cmd, r1))
	}

	r := blockReader{card: c}
	if err := r.run(dst); err != nil {
		return c.fault(OpRegister, r.phase, 0, err)
	}
	return nil
}

// ReadCSD reads the Card-Specific Data register.
func (c *Card) ReadCSD() (CSD, error) {
	var csd CSD
	if err := c.ready(); err != nil {
		return csd, err
	}

	c.acquire()
	defer c.release()

	err := c.readRegister(proto.CmdSendCSD, csd[:])
	return csd, err
}

// ReadCID reads the Card Identification register.
func (c *Card) ReadCID() (CID, error) {
	var cid CID
	if err := c.ready(); err != nil {
		return cid, err
	}

	c.acquire()
	defer c.release()

	err := c.readRegister(proto.CmdSendCID, cid[:])
	return cid, err
}

// ReadOCR reads the Operation Conditions Register.
func (c *Card) ReadOCR() (OCR, error) {
	var ocr OCR
	if err := c.ready(); err != nil {
		return ocr, err
	}

	c.acquire()
	defer c.release()

	if r1 := c.command(proto.CmdReadOCR, 0); r1 != proto.R1Ready {
		return ocr, c.fault(OpRegister, PhaseCommand, 0,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD58 r1 %#02x", r1))
	}
	for i := range ocr {
		ocr[i] = c.link.Receive()
	}
	return ocr, nil
}

// Capacity returns the addressable sector count of a card with a version 2
// CSD. Any other layout is reported as pkg.ErrUnsupportedCSD.
func (c *Card) Capacity() (uint32, error) {
	csd, err := c.ReadCSD()
	if err != nil {
		return 0, err
	}
	if csd.Version() != CSDVersion2 {
		return 0, pkg.Errorf(pkg.ErrUnsupportedCSD, "version %d", csd.Version())
	}
	return csd.SectorCount(), nil
}

// SectorCount returns the addressable sector count decoded from either
// CSD layout.
func (c *Card) SectorCount() (uint32, error) {
	csd, err := c.ReadCSD()
	if err != nil {
		return 0, err
	}
	n := csd.SectorCount()
	if n == 0 {
		return 0, pkg.Errorf(pkg.ErrUnsupportedCSD, "version %d", csd.Version())
	}
	pkg.LogDebug(pkg.ComponentRegister, "sector count",
		"csdVersion", csd.Version(),
		"sectors", n)
	return n, nil
}
