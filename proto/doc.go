// Package proto holds the SD card SPI-mode protocol vocabulary shared by
// the driver and the simulated card: command indices, response bits, data
// tokens, and the command frame codec.
//
// # Command Frame
//
// Every command is six bytes on the wire:
//
//	01iiiiii aaaaaaaa aaaaaaaa aaaaaaaa aaaaaaaa ccccccc1
//
// where i is the command index, a the argument (most significant byte
// first), and c the CRC7 of the first five bytes. Once the card leaves
// the reset state it ignores the CRC of all commands except CMD8, so
// [NewFrame] only computes it for the two commands that need it.
//
// # References
//
//   - SD Specifications Part 1, Physical Layer Simplified Specification,
//     Chapter 7 (SPI Mode)
package proto
