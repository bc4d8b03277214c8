package sd

import (
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// Erase erases the sectors first through last inclusive and waits for the
// card to finish. Erased sectors read back as zero or as all ones,
// depending on the card.
func (c *Card) Erase(first, last uint32) error {
	if last < first {
		return pkg.Errorf(pkg.ErrParameter, "erase range %d..%d", first, last)
	}
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.checkRange(uint64(first), uint64(last)); err != nil {
		return err
	}

	c.acquire()
	defer c.release()

	steps := []struct {
		cmd uint8
		arg uint32
	}{
		{proto.CmdEraseWrBlkStart, c.address(first)},
		{proto.CmdEraseWrBlkEnd, c.address(last)},
		{proto.CmdErase, 0},
	}
	for _, s := range steps {
		if r1 := c.command(s.cmd, s.arg); r1 != proto.R1Ready {
			return c.fault(OpErase, PhaseCommand, first,
				pkg.Errorf(pkg.ErrCommandRejected, "CMD%d r1 %#02x", s.cmd, r1))
		}
	}

	if !c.waitNotBusy(c.cfg.EraseAttempts) {
		return c.fault(OpErase, PhaseDrain, first, pkg.ErrBusyTimeout)
	}
	pkg.LogDebug(pkg.ComponentTransfer, "erased", "first", first, "last", last)
	return nil
}

// Sync waits until the card has finished any pending internal write.
func (c *Card) Sync() error {
	if err := c.ready(); err != nil {
		return err
	}

	c.acquire()
	defer c.release()

	if !c.waitReady(c.cfg.BusyAttempts) {
		return c.fault(OpSync, PhaseWaitReady, 0, pkg.ErrBusyTimeout)
	}
	return nil
}
