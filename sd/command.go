package sd

import (
	"log/slog"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// waitReady polls until the card releases the data line (reads Idle) or
// attempts run out. Each idle-less attempt is followed by the poll delay.
func (c *Card) waitReady(attempts int) bool {
	for i := 0; i < attempts; i++ {
		if c.link.Receive() == link.Idle {
			return true
		}
		c.link.Delay(c.cfg.PollDelay)
	}
	return false
}

// command sends one command frame and returns the R1 response byte.
//
// A card that is still busy when the command is due does not abort it:
// cards may clear busy while the frame is clocked in, so the frame is sent
// regardless. The response poll returns the last byte read whether or not
// its busy bit cleared; callers interpret the flags.
func (c *Card) command(cmd uint8, arg uint32) byte {
	if !c.waitReady(c.cfg.ReadyAttempts) {
		pkg.LogDebug(pkg.ComponentCommand, "card busy before command",
			"cmd", cmd)
	}

	f := proto.NewFrame(cmd, arg)
	f.MarshalTo(c.frame[:])
	for _, b := range c.frame {
		c.link.Transmit(b)
	}

	var r1 byte
	for i := 0; i < c.cfg.ResponseAttempts; i++ {
		if r1 = c.link.Receive(); r1&proto.R1Busy == 0 {
			break
		}
	}

	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentCommand, "command",
			"cmd", cmd,
			"arg", arg,
			"r1", r1)
	}
	return r1
}

// appCommand sends the application-command escape followed by cmd.
func (c *Card) appCommand(cmd uint8, arg uint32) byte {
	c.command(proto.CmdAppCmd, 0)
	return c.command(cmd, arg)
}
