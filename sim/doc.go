// Package sim implements a simulated SD memory card in SPI mode.
//
// A [Card] sits on the card side of a link ([link.Peer]) and answers the
// command and data protocol the way a physical card does: it counts the
// power-up clocks, honors chip-select, frames commands, checks the CRC of
// CMD0 and CMD8, queues responses behind an Ncr gap, streams data blocks
// with start tokens, answers written blocks with a data response followed
// by busy, and erases ranges.
//
// Sectors live in a [blockdev.Storage]. The card can pose as a version 1,
// version 2 standard capacity, or high capacity card, and [Config] injects
// the faults drivers have to tolerate: slow reset, slow or endless
// initialization, a corrupted CMD8 echo, missing start tokens, and
// rejected writes.
//
// Wiring a card to a driver in the same process:
//
//	card, _ := sim.New(sim.Config{Class: sim.ClassHighCapacity})
//	drv := sd.New(link.NewLoopback(card), nil)
//	err := drv.Initialize()
//
// [Stats] records the commands received and the tokens clocked out, so
// tests can assert protocol-level properties.
package sim
