//go:build !profile

package prof

// ErrCPUProfileActive is never returned without the "profile" tag.
var ErrCPUProfileActive error

// Enabled reports whether profiling is compiled in.
func Enabled() bool {
	return false
}

// StartCPU is a no-op when built without the "profile" tag.
func StartCPU(string) error {
	return nil
}

// StopCPU is a no-op when built without the "profile" tag.
func StopCPU() error {
	return nil
}

// IsCPUActive always returns false when built without the "profile" tag.
func IsCPUActive() bool {
	return false
}

// WriteHeap is a no-op when built without the "profile" tag.
func WriteHeap(string) error {
	return nil
}
