// Package link defines the byte-level serial link between the SD driver
// and a card.
//
// The link is deliberately dumb: it clocks single bytes in both directions
// and drives the chip-select line. All protocol knowledge (command frames,
// tokens, busy polling) lives in [github.com/ardnew/sdspi/sd].
//
// # Interfaces
//
// [Link] is what the driver consumes. Platform code implements it on top of
// an SPI peripheral and a GPIO pin; [github.com/ardnew/sdspi/link/fifo]
// implements it over named pipes.
//
// [Peer] is the card side of the same wire. The simulated card in
// [github.com/ardnew/sdspi/sim] implements it.
//
// # Wiring
//
// [Loopback] joins a Link to a Peer inside one process. Its Delay advances a
// virtual clock, so bounded polling loops run in zero real time under test:
//
//	card := sim.New(sim.Config{Class: sim.ClassHC, Storage: storage})
//	l := link.NewLoopback(card)
//	c := sd.New(l, sd.DefaultConfig())
//
// [Counter] wraps any Link and counts asserts, releases, and bytes.
package link
