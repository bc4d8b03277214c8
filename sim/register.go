package sim

import (
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// Fields shared by both CSD layouts.
const (
	csdTAAC       = 0x0E
	csdTranSpeed  = 0x32 // 25 MHz
	csdCCC        = 0x5B5
	csdReadBlLen  = 9
	csdEraseBytes = 0x7F // ERASE_BLK_EN=1, SECTOR_SIZE high bits
	csdSectorLow  = 0x80 // SECTOR_SIZE low bit, WP_GRP_SIZE=0
	csdR2WBlLen   = 0x0A // R2W_FACTOR=2, WRITE_BL_LEN high bits
	csdWriteBlLen = 0x40 // WRITE_BL_LEN low bits
)

// encodeCSDv2 fills the version 2 (high capacity) layout for blocks
// sectors. The advertised count is rounded down to a multiple of 1024.
// The CRC byte is left to the caller.
func encodeCSDv2(csd *[proto.CSDSize]byte, blocks uint64) (uint32, error) {
	if blocks < 1024 || blocks>>10 >= 1<<22 {
		return 0, pkg.Errorf(pkg.ErrParameter, "%d sectors out of range for a high capacity card", blocks)
	}
	size := uint32(blocks>>10) - 1

	*csd = [proto.CSDSize]byte{
		0x40,
		csdTAAC,
		0x00,
		csdTranSpeed,
		csdCCC >> 4,
		csdCCC&0x0F<<4 | csdReadBlLen,
		0x00,
		byte(size>>16) & 0x3F,
		byte(size >> 8),
		byte(size),
		csdEraseBytes,
		csdSectorLow,
		csdR2WBlLen,
		csdWriteBlLen,
		0x00,
	}
	return (size + 1) << 10, nil
}

// encodeCSDv1 fills the version 1 (standard capacity) layout with
// READ_BL_LEN 9. The advertised count is (C_SIZE+1) << (C_SIZE_MULT+2),
// the largest such value not above blocks.
func encodeCSDv1(csd *[proto.CSDSize]byte, blocks uint64) (uint32, error) {
	if blocks < 4 || blocks > 4096<<9 {
		return 0, pkg.Errorf(pkg.ErrParameter, "%d sectors out of range for a standard capacity card", blocks)
	}

	var mult uint32
	for blocks>>(mult+2) > 4096 {
		mult++
	}
	size := uint32(blocks>>(mult+2)) - 1

	*csd = [proto.CSDSize]byte{
		0x00,
		0x26,
		0x00,
		csdTranSpeed,
		csdCCC >> 4,
		csdCCC&0x0F<<4 | csdReadBlLen,
		0x80 | byte(size>>10)&0x03,
		byte(size >> 2),
		byte(size&0x03)<<6 | 0x36,
		0xD8 | byte(mult>>1)&0x03,
		byte(mult&0x01)<<7 | csdEraseBytes,
		csdSectorLow,
		csdR2WBlLen,
		csdWriteBlLen,
		0x00,
	}
	return (size + 1) << (mult + 2), nil
}

// crc16 computes the CRC-16/XMODEM that trails each data block.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
