package diskio

import (
	"errors"

	"github.com/ardnew/sdspi/pkg"
)

// Result is the completion code of a disk operation.
type Result uint8

// Result codes, in the order file-system layers number them.
const (
	ResultOK             Result = iota // Succeeded
	ResultError                        // Hard error during transfer
	ResultWriteProtected               // Medium is write protected
	ResultNotReady                     // Not initialized or powered off
	ResultParameterError               // Invalid parameter
)

// String returns a string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultWriteProtected:
		return "write protected"
	case ResultNotReady:
		return "not ready"
	case ResultParameterError:
		return "parameter error"
	default:
		return "unknown"
	}
}

// Error returns the error class corresponding to the result.
func (r Result) Error() error {
	switch r {
	case ResultOK:
		return nil
	case ResultWriteProtected:
		return pkg.ErrWriteProtected
	case ResultNotReady:
		return pkg.ErrNotReady
	case ResultParameterError:
		return pkg.ErrParameter
	default:
		return pkg.ErrTransfer
	}
}

// ResultOf converts an error returned by a disk operation to a result
// code. Unsupported requests are parameter errors.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, pkg.ErrParameter), errors.Is(err, pkg.ErrNotSupported):
		return ResultParameterError
	case errors.Is(err, pkg.ErrNotReady):
		return ResultNotReady
	case errors.Is(err, pkg.ErrWriteProtected):
		return ResultWriteProtected
	default:
		return ResultError
	}
}

// Status is the set of drive status flags.
type Status uint8

// Status flags.
const (
	StatusNoInit  Status = 0x01 // Drive not initialized
	StatusNoDisk  Status = 0x02 // No medium in the drive
	StatusProtect Status = 0x04 // Write protected
)

// String returns the set flags, or "ok" when none are set.
func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var out string
	for _, f := range []struct {
		flag Status
		name string
	}{
		{StatusNoInit, "noinit"},
		{StatusNoDisk, "nodisk"},
		{StatusProtect, "protect"},
	} {
		if s&f.flag == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += f.name
	}
	return out
}
