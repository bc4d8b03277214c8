package sd

import (
	"errors"
	"fmt"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// Op identifies the block operation that failed.
type Op uint8

// Block operations.
const (
	OpRead Op = iota
	OpWrite
	OpRegister
	OpErase
	OpSync
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRegister:
		return "register"
	case OpErase:
		return "erase"
	case OpSync:
		return "sync"
	default:
		return "unknown"
	}
}

// Phase is a step of a data block exchange.
//
// A read runs Command, WaitToken, Transfer, Drain. A write runs Command,
// WaitReady, Token, Transfer, Response, Drain. Multi-block transfers end
// with Stop.
type Phase uint8

// Transfer phases.
const (
	PhaseCommand Phase = iota
	PhaseWaitReady
	PhaseWaitToken
	PhaseToken
	PhaseTransfer
	PhaseResponse
	PhaseDrain
	PhaseStop
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseCommand:
		return "command"
	case PhaseWaitReady:
		return "wait-ready"
	case PhaseWaitToken:
		return "wait-token"
	case PhaseToken:
		return "token"
	case PhaseTransfer:
		return "transfer"
	case PhaseResponse:
		return "response"
	case PhaseDrain:
		return "drain"
	case PhaseStop:
		return "stop"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// TransferError reports where a block exchange failed.
type TransferError struct {
	Op     Op
	Phase  Phase
	Sector uint32 // first sector of the failing block, when applicable
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s sector %d: %s: %v", e.Op, e.Sector, e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// blockReader receives one data block: WaitToken, Transfer, Drain.
type blockReader struct {
	card  *Card
	phase Phase
}

func (r *blockReader) run(dst []byte) error {
	c := r.card
	r.phase = PhaseWaitToken
	for {
		switch r.phase {
		case PhaseWaitToken:
			if err := r.waitToken(); err != nil {
				return err
			}
			r.phase = PhaseTransfer

		case PhaseTransfer:
			for i := range dst {
				dst[i] = c.link.Receive()
			}
			r.phase = PhaseDrain

		case PhaseDrain:
			// CRC is disabled; both bytes are discarded.
			c.link.Receive()
			c.link.Receive()
			r.phase = PhaseDone

		default:
			return nil
		}
	}
}

// waitToken polls for the start token. Any byte other than Idle or the
// token ends the wait with an error.
func (r *blockReader) waitToken() error {
	c := r.card
	for i := 0; i < c.cfg.TokenAttempts; i++ {
		switch b := c.link.Receive(); b {
		case proto.TokenStartBlock:
			return nil
		case link.Idle:
			c.link.Delay(c.cfg.PollDelay)
		default:
			return pkg.Errorf(pkg.ErrBadToken, "%#02x", b)
		}
	}
	return pkg.ErrTokenTimeout
}

// blockWriter sends one data block: WaitReady, Token, Transfer, Response,
// Drain.
type blockWriter struct {
	card  *Card
	phase Phase
}

func (w *blockWriter) run(token byte, src []byte) error {
	c := w.card
	w.phase = PhaseWaitReady
	for {
		switch w.phase {
		case PhaseWaitReady:
			if !c.waitReady(c.cfg.BusyAttempts) {
				return pkg.ErrBusyTimeout
			}
			w.phase = PhaseToken

		case PhaseToken:
			c.link.Transmit(token)
			w.phase = PhaseTransfer

		case PhaseTransfer:
			for _, b := range src {
				c.link.Transmit(b)
			}
			// CRC placeholder.
			c.link.Transmit(link.Idle)
			c.link.Transmit(link.Idle)
			w.phase = PhaseResponse

		case PhaseResponse:
			if err := w.response(); err != nil {
				return err
			}
			w.phase = PhaseDrain

		case PhaseDrain:
			if !c.waitNotBusy(c.cfg.BusyAttempts) {
				return pkg.ErrBusyTimeout
			}
			w.phase = PhaseDone

		default:
			return nil
		}
	}
}

// response polls for the data response token. Only the accepted code
// counts as success.
func (w *blockWriter) response() error {
	c := w.card
	for i := 0; i < c.cfg.DataResponseAttempts; i++ {
		b := c.link.Receive()
		if !proto.IsDataResponse(b) {
			continue
		}
		if b&proto.DataResponseMask == proto.DataResponseAccepted {
			return nil
		}
		return pkg.Errorf(pkg.ErrDataRejected, "response %#02x", b&proto.DataResponseMask)
	}
	return pkg.Errorf(pkg.ErrDataRejected, "no data response")
}

// stop sends the stop-transmission token that ends a multi-block write and
// waits for the card to finish programming.
func (w *blockWriter) stop() error {
	c := w.card
	w.phase = PhaseStop
	if !c.waitReady(c.cfg.BusyAttempts) {
		return pkg.ErrBusyTimeout
	}
	c.link.Transmit(proto.TokenStopTransmission)
	// One stuff byte precedes busy.
	c.link.Receive()
	if !c.waitReady(c.cfg.BusyAttempts) {
		return pkg.ErrBusyTimeout
	}
	w.phase = PhaseDone
	return nil
}

// waitNotBusy polls while the card holds the data line low.
func (c *Card) waitNotBusy(attempts int) bool {
	for i := 0; i < attempts; i++ {
		if c.link.Receive() != 0x00 {
			return true
		}
		c.link.Delay(c.cfg.PollDelay)
	}
	return false
}

// checkBlocks validates a block request against the buffer.
func checkBlocks(buf []byte, count uint32) error {
	if count == 0 {
		return pkg.Errorf(pkg.ErrParameter, "zero sector count")
	}
	if uint64(len(buf)) < uint64(count)*SectorSize {
		return pkg.Errorf(pkg.ErrBufferTooSmall, "%d bytes for %d sectors", len(buf), count)
	}
	return nil
}

// ReadSectors reads count sectors starting at sector into dst.
func (c *Card) ReadSectors(dst []byte, sector, count uint32) error {
	if err := checkBlocks(dst, count); err != nil {
		return err
	}
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkRange(uint64(sector), uint64(sector)+uint64(count)-1); err != nil {
		return err
	}

	c.acquire()
	defer c.release()

	if count == 1 {
		return c.readSingle(dst[:SectorSize], sector)
	}
	return c.readMultiple(dst, sector, count)
}

func (c *Card) readSingle(dst []byte, sector uint32) error {
	if r1 := c.command(proto.CmdReadSingleBlock, c.address(sector)); r1 != proto.R1Ready {
		return c.fault(OpRead, PhaseCommand, sector,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD17 r1 %#02x", r1))
	}

	r := blockReader{card: c}
	if err := r.run(dst); err != nil {
		return c.fault(OpRead, r.phase, sector, err)
	}
	return nil
}

func (c *Card) readMultiple(dst []byte, sector, count uint32) error {
	if r1 := c.command(proto.CmdReadMultipleBlock, c.address(sector)); r1 != proto.R1Ready {
		return c.fault(OpRead, PhaseCommand, sector,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD18 r1 %#02x", r1))
	}

	var err error
	r := blockReader{card: c}
	for i := uint32(0); i < count; i++ {
		off := i * SectorSize
		if e := r.run(dst[off : off+SectorSize]); e != nil {
			err = c.fault(OpRead, r.phase, sector+i, e)
			break
		}
	}

	// The card streams blocks until told to stop, even after a failure.
	if r1 := c.command(proto.CmdStopTransmission, 0); r1 != proto.R1Ready && err == nil {
		err = c.fault(OpRead, PhaseStop, sector+count-1,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD12 r1 %#02x", r1))
	}
	return err
}

// WriteSectors writes count sectors from src starting at sector.
func (c *Card) WriteSectors(src []byte, sector, count uint32) error {
	if err := checkBlocks(src, count); err != nil {
		return err
	}
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkRange(uint64(sector), uint64(sector)+uint64(count)-1); err != nil {
		return err
	}

	c.acquire()
	defer c.release()

	if count == 1 {
		return c.writeSingle(src[:SectorSize], sector)
	}
	return c.writeMultiple(src, sector, count)
}

func (c *Card) writeSingle(src []byte, sector uint32) error {
	if r1 := c.command(proto.CmdWriteBlock, c.address(sector)); r1 != proto.R1Ready {
		return c.fault(OpWrite, PhaseCommand, sector,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD24 r1 %#02x", r1))
	}

	w := blockWriter{card: c}
	if err := w.run(proto.TokenStartBlock, src); err != nil {
		return c.fault(OpWrite, w.phase, sector, err)
	}
	return nil
}

func (c *Card) writeMultiple(src []byte, sector, count uint32) error {
	if c.class.PreErase() {
		if r1 := c.appCommand(proto.AcmdSetWrBlkEraseCount, count); r1 != proto.R1Ready {
			pkg.LogDebug(pkg.ComponentTransfer, "pre-erase hint rejected", "r1", r1)
		}
	}

	if r1 := c.command(proto.CmdWriteMultipleBlock, c.address(sector)); r1 != proto.R1Ready {
		return c.fault(OpWrite, PhaseCommand, sector,
			pkg.Errorf(pkg.ErrCommandRejected, "CMD25 r1 %#02x", r1))
	}

	var err error
	w := blockWriter{card: c}
	for i := uint32(0); i < count; i++ {
		off := i * SectorSize
		if e := w.run(proto.TokenMultiWriteBlock, src[off:off+SectorSize]); e != nil {
			err = c.fault(OpWrite, w.phase, sector+i, e)
			break
		}
	}

	// Unwritten sectors are not retried; the stop token is always sent.
	if e := w.stop(); e != nil {
		stopErr := c.fault(OpWrite, PhaseStop, sector+count-1, e)
		if err == nil {
			return stopErr
		}
		err = errors.Join(err, stopErr)
	}
	return err
}

// fault builds a TransferError and logs it.
func (c *Card) fault(op Op, phase Phase, sector uint32, err error) error {
	te := &TransferError{Op: op, Phase: phase, Sector: sector, Err: err}
	pkg.LogWarn(pkg.ComponentTransfer, "transfer failed",
		"op", op.String(),
		"phase", phase.String(),
		"sector", sector,
		"error", err)
	return te
}
