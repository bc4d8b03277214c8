package blockdev

import (
	"io"
	"os"
	"sync"
)

// Storage is a device of fixed-size blocks.
type Storage interface {
	// BlockSize returns the size of a block in bytes.
	BlockSize() uint32

	// BlockCount returns the total number of blocks.
	BlockCount() uint64

	// Read reads blocks starting at lba into buf.
	// Returns number of blocks read or error.
	Read(lba uint64, blocks uint32, buf []byte) (uint32, error)

	// Write writes blocks from buf starting at lba.
	// Returns number of blocks written or error.
	Write(lba uint64, blocks uint32, buf []byte) (uint32, error)

	// Sync flushes any cached writes to the medium.
	Sync() error

	// IsReadOnly returns true if writes are refused.
	IsReadOnly() bool
}

// span validates a request and returns its byte offset and length.
func span(s Storage, lba uint64, blocks uint32, buf []byte) (offset, length uint64, err error) {
	size := uint64(s.BlockSize())
	offset = lba * size
	length = uint64(blocks) * size

	if lba >= s.BlockCount() || lba+uint64(blocks) > s.BlockCount() {
		return 0, 0, io.EOF
	}
	if uint64(len(buf)) < length {
		return 0, 0, io.ErrShortBuffer
	}
	return offset, length, nil
}

// MemoryStorage implements Storage with an in-memory buffer.
type MemoryStorage struct {
	data      []byte
	blockSize uint32
	readOnly  bool
	mutex     sync.RWMutex
}

// NewMemoryStorage creates zero-filled storage of blocks blocks of
// blockSize bytes.
func NewMemoryStorage(blocks uint64, blockSize uint32) *MemoryStorage {
	return &MemoryStorage{
		data:      make([]byte, blocks*uint64(blockSize)),
		blockSize: blockSize,
	}
}

// BlockSize returns the block size.
func (m *MemoryStorage) BlockSize() uint32 {
	return m.blockSize
}

// BlockCount returns the number of blocks.
func (m *MemoryStorage) BlockCount() uint64 {
	return uint64(len(m.data)) / uint64(m.blockSize)
}

// Read reads blocks from memory.
func (m *MemoryStorage) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	offset, length, err := span(m, lba, blocks, buf)
	if err != nil {
		return 0, err
	}

	copy(buf, m.data[offset:offset+length])
	return blocks, nil
}

// Write writes blocks to memory.
func (m *MemoryStorage) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.readOnly {
		return 0, os.ErrPermission
	}

	offset, length, err := span(m, lba, blocks, buf)
	if err != nil {
		return 0, err
	}

	copy(m.data[offset:offset+length], buf)
	return blocks, nil
}

// Sync is a no-op for memory storage.
func (m *MemoryStorage) Sync() error {
	return nil
}

// IsReadOnly returns whether the storage is read-only.
func (m *MemoryStorage) IsReadOnly() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.readOnly
}

// SetReadOnly sets the read-only flag.
func (m *MemoryStorage) SetReadOnly(readOnly bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.readOnly = readOnly
}

// Fill writes value to every byte of blocks blocks starting at lba.
func Fill(s Storage, lba uint64, blocks uint32, value byte) error {
	buf := make([]byte, s.BlockSize())
	for i := range buf {
		buf[i] = value
	}
	for i := uint64(0); i < uint64(blocks); i++ {
		if _, err := s.Write(lba+i, 1, buf); err != nil {
			return err
		}
	}
	return nil
}
