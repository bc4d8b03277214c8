package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ardnew/sdspi/pkg"
)

// ErrLocked is returned when an image is already held by another owner.
var ErrLocked = errors.New("image is locked by another process")

// FileStorage implements Storage with an image file. The file is locked
// for exclusive use until Close.
type FileStorage struct {
	file      *os.File
	path      string
	blockSize uint32
	size      uint64
	readOnly  bool
	mutex     sync.RWMutex
}

// NewFileStorage opens the image at path. If readOnly is true, the file is
// opened in read-only mode. A trailing partial block is ignored.
func NewFileStorage(path string, blockSize uint32, readOnly bool) (*FileStorage, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}

	if err := lockFile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		unlockFile(file)
		file.Close()
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentStorage, "image opened",
		"path", path,
		"bytes", stat.Size(),
		"readOnly", readOnly)

	return &FileStorage{
		file:      file,
		path:      path,
		blockSize: blockSize,
		size:      uint64(stat.Size()),
		readOnly:  readOnly,
	}, nil
}

// CreateImage creates (or truncates) a zero-filled image of blocks blocks
// of blockSize bytes.
func CreateImage(path string, blocks uint64, blockSize uint32) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := file.Truncate(int64(blocks * uint64(blockSize))); err != nil {
		file.Close()
		return err
	}
	pkg.LogInfo(pkg.ComponentStorage, "image created",
		"path", path,
		"blocks", blocks)
	return file.Close()
}

// Path returns the image path.
func (f *FileStorage) Path() string {
	return f.path
}

// BlockSize returns the block size.
func (f *FileStorage) BlockSize() uint32 {
	return f.blockSize
}

// BlockCount returns the number of whole blocks in the image.
func (f *FileStorage) BlockCount() uint64 {
	return f.size / uint64(f.blockSize)
}

// Read reads blocks from the image.
func (f *FileStorage) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}

	offset, length, err := span(f, lba, blocks, buf)
	if err != nil {
		return 0, err
	}

	n, err := f.file.ReadAt(buf[:length], int64(offset))
	if err != nil && err != io.EOF {
		return 0, err
	}

	return uint32(n) / f.blockSize, nil
}

// Write writes blocks to the image.
func (f *FileStorage) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}
	if f.readOnly {
		return 0, os.ErrPermission
	}

	offset, length, err := span(f, lba, blocks, buf)
	if err != nil {
		return 0, err
	}

	n, err := f.file.WriteAt(buf[:length], int64(offset))
	if err != nil {
		return 0, err
	}

	return uint32(n) / f.blockSize, nil
}

// Sync flushes image writes to disk.
func (f *FileStorage) Sync() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.readOnly || f.file == nil {
		return nil
	}

	return f.file.Sync()
}

// IsReadOnly returns whether the storage is read-only.
func (f *FileStorage) IsReadOnly() bool {
	return f.readOnly
}

// Close releases the lock and closes the image.
func (f *FileStorage) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return nil
	}
	unlockFile(f.file)
	err := f.file.Close()
	f.file = nil
	return err
}
