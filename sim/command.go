package sim

import (
	"log/slog"

	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// abort drops every transfer in progress.
func (c *Card) abort() {
	c.flush()
	c.n = 0
	c.mode = modeCommand
	c.appNext = false
	c.eraseStart = -1
	c.eraseEnd = -1
}

// dispatch executes one received command frame.
func (c *Card) dispatch(f *proto.Frame) {
	if c.clocks < c.cfg.PowerUpClocks || c.busy > 0 {
		pkg.LogDebug(pkg.ComponentSim, "command ignored",
			"cmd", f.Index,
			"clocks", c.clocks,
			"busy", c.busy)
		return
	}

	app := c.appNext
	c.appNext = false
	c.stats.Commands = append(c.stats.Commands, Command{Index: f.Index, Arg: f.Argument, App: app})

	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentSim, "command",
			"cmd", f.Index,
			"arg", f.Argument,
			"app", app)
	}

	if (f.Index == proto.CmdGoIdleState || f.Index == proto.CmdSendIfCond) && !f.Valid() {
		c.stats.CRCErrors++
		c.reply(c.r1() | proto.R1CRCError)
		return
	}

	if f.Index == proto.CmdGoIdleState {
		c.goIdle()
		return
	}
	if !c.idle {
		// No response before the first reset.
		return
	}

	if app {
		c.appCommand(f)
		return
	}

	switch f.Index {
	case proto.CmdSendIfCond:
		c.sendIfCond(f.Argument)
	case proto.CmdAppCmd:
		c.appNext = true
		c.reply(c.r1())
	case proto.CmdReadOCR:
		c.reply(c.r1(), c.ocr()...)
	default:
		if !c.ready {
			c.reply(c.r1() | proto.R1IllegalCommand)
			return
		}
		c.dataCommand(f)
	}
}

// r1 returns the base R1 response for the current state.
func (c *Card) r1() byte {
	if c.ready {
		return proto.R1Ready
	}
	return proto.R1Idle
}

// goIdle handles CMD0. Early attempts go unanswered when IdleOnAttempt
// asks for a slow reset.
func (c *Card) goIdle() {
	c.abort()
	c.resets++
	if c.resets < c.cfg.IdleOnAttempt {
		return
	}
	c.resets = 0
	c.opConds = 0
	c.idle = true
	c.ready = false
	c.reply(proto.R1Idle)
}

func (c *Card) sendIfCond(arg uint32) {
	if c.cfg.Class == ClassStandardV1 {
		c.reply(c.r1() | proto.R1IllegalCommand)
		return
	}
	pattern := byte(arg)
	if c.cfg.EchoMismatch {
		pattern = ^pattern
	}
	c.reply(c.r1(), 0x00, 0x00, byte(arg>>8)&0x0F, pattern)
}

func (c *Card) appCommand(f *proto.Frame) {
	switch f.Index {
	case proto.AcmdSendOpCond:
		c.sendOpCond(f.Argument)
	case proto.AcmdSetWrBlkEraseCount:
		if !c.ready {
			c.reply(c.r1() | proto.R1IllegalCommand)
			return
		}
		c.stats.PreErase = f.Argument & 0x7FFFFF
		c.reply(proto.R1Ready)
	default:
		c.reply(c.r1() | proto.R1IllegalCommand)
	}
}

// sendOpCond handles ACMD41. A high capacity card does not finish
// initialization for a host that does not advertise HCS.
func (c *Card) sendOpCond(arg uint32) {
	if c.ready {
		c.reply(proto.R1Ready)
		return
	}
	c.opConds++
	switch {
	case c.cfg.NeverReady,
		c.opConds < c.cfg.ReadyOnAttempt,
		c.cfg.Class == ClassHighCapacity && arg&proto.HCS == 0:
		c.reply(proto.R1Idle)
	default:
		c.ready = true
		pkg.LogDebug(pkg.ComponentSim, "card ready", "attempts", c.opConds)
		c.reply(proto.R1Ready)
	}
}

// ocr returns the four OCR bytes: power-up status, CCS, and the 2.7-3.6V
// window.
func (c *Card) ocr() []byte {
	var b0 byte
	if c.ready {
		b0 = proto.OCRPowerUpDone
		if c.cfg.Class == ClassHighCapacity {
			b0 |= proto.OCRCCS
		}
	}
	return []byte{b0, 0xFF, 0x80, 0x00}
}

// toSector converts a data command argument to a sector number.
func (c *Card) toSector(arg uint32) (uint32, bool) {
	if c.cfg.Class == ClassHighCapacity {
		return arg, true
	}
	if arg%proto.SectorSize != 0 {
		return 0, false
	}
	return arg / proto.SectorSize, true
}

func (c *Card) dataCommand(f *proto.Frame) {
	switch f.Index {
	case proto.CmdSendCSD:
		c.reply(proto.R1Ready)
		c.block(c.csd[:])

	case proto.CmdSendCID:
		c.reply(proto.R1Ready)
		c.block(c.cfg.CID[:])

	case proto.CmdStopTransmission:
		// Stuff byte, R1, then a short busy.
		c.abort()
		c.respond(0xFF, proto.R1Ready)
		c.busy = 2

	case proto.CmdReadSingleBlock, proto.CmdReadMultipleBlock:
		s, ok := c.toSector(f.Argument)
		if !ok {
			c.reply(proto.R1AddressError)
			return
		}
		c.reply(proto.R1Ready)
		if c.cfg.TokenTimeout {
			return
		}
		if f.Index == proto.CmdReadSingleBlock {
			c.readSector(s)
			return
		}
		c.sector = s
		c.mode = modeReadStream
		c.streamNext()

	case proto.CmdWriteBlock, proto.CmdWriteMultipleBlock:
		s, ok := c.toSector(f.Argument)
		if !ok || s >= c.sectors {
			c.reply(proto.R1AddressError)
			return
		}
		c.reply(proto.R1Ready)
		c.sector = s
		if f.Index == proto.CmdWriteBlock {
			c.mode = modeWriteSingle
		} else {
			c.mode = modeWriteMulti
		}

	case proto.CmdEraseWrBlkStart, proto.CmdEraseWrBlkEnd:
		s, ok := c.toSector(f.Argument)
		if !ok || s >= c.sectors {
			c.reply(proto.R1AddressError)
			return
		}
		if f.Index == proto.CmdEraseWrBlkStart {
			c.eraseStart = int64(s)
		} else {
			c.eraseEnd = int64(s)
		}
		c.reply(proto.R1Ready)

	case proto.CmdErase:
		c.erase()

	default:
		c.reply(proto.R1IllegalCommand)
	}
}

// erase handles CMD38: erased sectors read back as zero.
func (c *Card) erase() {
	first, last := c.eraseStart, c.eraseEnd
	c.eraseStart, c.eraseEnd = -1, -1
	if first < 0 || last < 0 || last < first {
		c.reply(proto.R1EraseSeqError)
		return
	}

	c.reply(proto.R1Ready)
	count := uint32(last - first + 1)
	if err := blockdev.Fill(c.store, uint64(first), count, 0x00); err != nil {
		pkg.LogWarn(pkg.ComponentSim, "erase failed", "error", err)
	}
	c.busy = c.cfg.WriteBusy * 4
	pkg.LogDebug(pkg.ComponentSim, "erased", "first", first, "last", last)
}
