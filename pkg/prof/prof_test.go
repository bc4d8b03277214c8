//go:build profile

package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStartCPU(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	if err := StartCPU(path); err != nil {
		t.Fatalf("StartCPU() error = %v, want nil", err)
	}
	if !IsCPUActive() {
		t.Error("IsCPUActive() = false, want true")
	}

	err := StartCPU(filepath.Join(t.TempDir(), "cpu2.prof"))
	if !errors.Is(err, ErrCPUProfileActive) {
		t.Errorf("second StartCPU() error = %v, want %v", err, ErrCPUProfileActive)
	}

	if err := StopCPU(); err != nil {
		t.Fatalf("StopCPU() error = %v", err)
	}
	if IsCPUActive() {
		t.Error("IsCPUActive() = true after StopCPU")
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("profile not written: %v", err)
	}

	// Stopping twice is harmless
	if err := StopCPU(); err != nil {
		t.Errorf("second StopCPU() error = %v", err)
	}
}

func TestStartCPUInvalidPath(t *testing.T) {
	if err := StartCPU("/nonexistent/directory/cpu.prof"); err == nil {
		StopCPU()
		t.Error("StartCPU() error = nil, want error for invalid path")
	}
}

func TestWriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")
	if err := WriteHeap(path); err != nil {
		t.Fatalf("WriteHeap() error = %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("heap profile not written: %v", err)
	}
}
