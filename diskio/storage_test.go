package diskio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/sim"
)

func TestStorage(t *testing.T) {
	d, peer, _ := newReadyDisk(t, sim.Config{}, nil)

	s, err := NewStorage(d)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	if s.BlockSize() != 512 {
		t.Errorf("BlockSize() = %d, want 512", s.BlockSize())
	}
	if s.BlockCount() != uint64(peer.Sectors()) {
		t.Errorf("BlockCount() = %d, want %d", s.BlockCount(), peer.Sectors())
	}
	if s.IsReadOnly() {
		t.Error("IsReadOnly() = true")
	}

	src := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, 3*512/4)
	if n, err := s.Write(7, 3, src); err != nil || n != 3 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	dst := make([]byte, len(src))
	if n, err := s.Read(7, 3, dst); err != nil || n != 3 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if !bytes.Equal(dst, src) {
		t.Error("data mismatch")
	}

	if _, err := s.Read(s.BlockCount(), 1, dst); !errors.Is(err, io.EOF) {
		t.Errorf("Read() past end error = %v, want %v", err, io.EOF)
	}
	if _, err := s.Read(0, 4, dst); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Read() short buffer error = %v, want %v", err, io.ErrShortBuffer)
	}
}

func TestStorageReadOnly(t *testing.T) {
	d, _, _ := newReadyDisk(t, sim.Config{}, &Options{ReadOnly: true})

	s, err := NewStorage(d)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsReadOnly() {
		t.Error("IsReadOnly() = false")
	}
	if _, err := s.Write(0, 1, make([]byte, 512)); !errors.Is(err, pkg.ErrNotSupported) {
		t.Errorf("Write() error = %v, want %v", err, pkg.ErrNotSupported)
	}
}

func TestNewStorageNotReady(t *testing.T) {
	d, _, _ := newTestDisk(t, sim.Config{}, nil)

	if _, err := NewStorage(d); !errors.Is(err, pkg.ErrNotReady) {
		t.Errorf("NewStorage() error = %v, want %v", err, pkg.ErrNotReady)
	}
}
