package pkg

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the driver wraps exactly one of
// these, so callers can branch with errors.Is without knowing the detail.
var (
	// ErrParameter indicates an invalid drive index, zero count, or short buffer.
	ErrParameter = errors.New("invalid parameter")

	// ErrNotReady indicates the card has not completed initialization.
	ErrNotReady = errors.New("card not ready")

	// ErrWriteProtected indicates the medium refuses writes.
	ErrWriteProtected = errors.New("write protected")

	// ErrTransfer indicates a failed command or data block exchange.
	ErrTransfer = errors.New("transfer failed")

	// ErrInitialization indicates the card could not be brought to Ready.
	ErrInitialization = errors.New("initialization failed")

	// ErrNotSupported indicates an unsupported drive or control code.
	ErrNotSupported = errors.New("not supported")
)

// Initialization details.
var (
	// ErrResetTimeout indicates the card never reported idle after CMD0.
	ErrResetTimeout = Detail(ErrInitialization, "reset timeout")

	// ErrEchoMismatch indicates the CMD8 check pattern was not echoed back.
	ErrEchoMismatch = Detail(ErrInitialization, "interface condition echo mismatch")

	// ErrNegotiationTimeout indicates ACMD41 never reported ready.
	ErrNegotiationTimeout = Detail(ErrInitialization, "voltage negotiation timeout")

	// ErrOCRRead indicates CMD58 was rejected while probing capacity.
	ErrOCRRead = Detail(ErrInitialization, "OCR read rejected")

	// ErrUnsupportedCSD indicates a CSD layout the capacity decoder rejects.
	ErrUnsupportedCSD = Detail(ErrInitialization, "unsupported CSD version")
)

// Transfer details.
var (
	// ErrCommandRejected indicates a non-zero R1 response to a command.
	ErrCommandRejected = Detail(ErrTransfer, "command rejected")

	// ErrTokenTimeout indicates no start token arrived within the budget.
	ErrTokenTimeout = Detail(ErrTransfer, "start token timeout")

	// ErrBadToken indicates a byte other than idle or the start token.
	ErrBadToken = Detail(ErrTransfer, "unexpected token")

	// ErrDataRejected indicates a data response other than accepted.
	ErrDataRejected = Detail(ErrTransfer, "data rejected")

	// ErrBusyTimeout indicates the card stayed busy past the budget.
	ErrBusyTimeout = Detail(ErrTransfer, "busy timeout")

	// ErrBufferTooSmall indicates the caller's buffer cannot hold the data.
	ErrBufferTooSmall = Detail(ErrParameter, "buffer too small")
)

// detailError is a named failure that also matches its class.
type detailError struct {
	class error
	msg   string
}

func (e *detailError) Error() string { return e.msg }

func (e *detailError) Unwrap() error { return e.class }

// Detail returns a new sentinel that reports msg and matches class
// under errors.Is.
func Detail(class error, msg string) error {
	return &detailError{class: class, msg: msg}
}

// Errorf wraps a sentinel with formatted context.
func Errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
