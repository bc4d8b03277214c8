// Package diskio adapts an SD card driver to the block-device contract
// expected by FAT file-system layers.
//
// A [Disk] serves drive 0 and exposes the classic five operations: Status,
// Initialize, Read, Write and Ioctl. Every failure wraps one of the pkg
// error classes; [ResultOf] maps it to the [Result] code such layers
// expect.
//
// Parameter checks (drive index, zero count, buffer size) always run
// before the readiness check, and neither touches the bus. A disk is
// ready only while its power flag is set and the card has completed
// initialization; powering off through [CtrlPower] disables every
// subsequent operation through the not-ready path until the next
// Initialize.
//
// [Storage] presents an initialized disk as a [blockdev.Storage].
package diskio
