package diskio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/sd"
)

// Storage presents an initialized disk as blockdev.Storage.
type Storage struct {
	disk    *Disk
	sectors uint32
}

var _ blockdev.Storage = (*Storage)(nil)

// NewStorage wraps d, which must already be initialized. The sector count
// is read once from the card.
func NewStorage(d *Disk) (*Storage, error) {
	var buf [4]byte
	if err := d.Ioctl(0, GetSectorCount, buf[:]); err != nil {
		return nil, err
	}
	s := &Storage{disk: d, sectors: binary.LittleEndian.Uint32(buf[:])}
	pkg.LogDebug(pkg.ComponentStorage, "disk storage",
		"sectors", s.sectors,
		"readOnly", s.IsReadOnly())
	return s, nil
}

// BlockSize returns the sector size.
func (s *Storage) BlockSize() uint32 {
	return sd.SectorSize
}

// BlockCount returns the number of sectors.
func (s *Storage) BlockCount() uint64 {
	return uint64(s.sectors)
}

func (s *Storage) check(lba uint64, blocks uint32, buf []byte) error {
	if lba > math.MaxUint32 || lba+uint64(blocks) > uint64(s.sectors) {
		return io.EOF
	}
	if uint64(len(buf)) < uint64(blocks)*sd.SectorSize {
		return io.ErrShortBuffer
	}
	return nil
}

// Read reads sectors from the card.
func (s *Storage) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if err := s.check(lba, blocks, buf); err != nil {
		return 0, err
	}
	if err := s.disk.Read(0, buf, uint32(lba), blocks); err != nil {
		return 0, err
	}
	return blocks, nil
}

// Write writes sectors to the card.
func (s *Storage) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if err := s.check(lba, blocks, buf); err != nil {
		return 0, err
	}
	if err := s.disk.Write(0, buf, uint32(lba), blocks); err != nil {
		return 0, err
	}
	return blocks, nil
}

// Sync waits for the card to finish pending writes.
func (s *Storage) Sync() error {
	return s.disk.Ioctl(0, CtrlSync, nil)
}

// IsReadOnly returns whether the disk refuses writes.
func (s *Storage) IsReadOnly() bool {
	return s.disk.ReadOnly()
}
