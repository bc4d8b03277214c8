// Package sd implements an SD memory card driver for the SPI bus.
//
// The driver speaks the SD command protocol over a [link.Link], a
// byte-oriented synchronous serial link with chip-select, and exposes the
// card as a device of fixed 512-byte sectors.
//
// # Architecture
//
// The driver is organized in four layers, each built on the one before:
//
//   - Command framer: six-byte command frames with the R1 response poll
//   - Initialization: the reset, version, voltage, and capacity handshake
//   - Block transfer engine: single and multi-block reads and writes
//   - Register decoder: CSD, CID, and OCR access
//
// # Initialization
//
// [Card.Initialize] drives the card through
//
//	PowerUp → Idle → VersionProbe → Negotiate → CapacityProbe → Ready
//
// with Failed reachable from every state. Version 1 cards skip the
// capacity probe. The detected [Class] decides whether block commands take
// byte offsets (standard capacity) or sector numbers (high capacity).
//
// # Transfers
//
// Each data block is exchanged by a small state machine. Reads wait for
// the start token, copy the payload, and drain the CRC. Writes wait for
// the card, send a token, the payload and a CRC placeholder, then check
// the data response and wait out busy. A failure is reported as a
// [TransferError] naming the [Phase] where it happened.
//
// # Timing
//
// Every wait is a loop with a fixed attempt budget from [Config] and a
// fixed pause between attempts taken from the link's Delay. No call can
// stall longer than its budgets allow, and tests run the loops in zero
// real time with [link.Loopback].
//
// # Chip-Select
//
// Chip-select is asserted once per operation (or per initialization state)
// and released exactly once on every return path, errors included.
//
// # Concurrency
//
// A [Card] performs no locking. The caller owns it exclusively and must
// serialize all calls.
//
// # References
//
//   - SD Specifications Part 1, Physical Layer Simplified Specification
package sd
