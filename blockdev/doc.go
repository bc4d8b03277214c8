// Package blockdev defines a block storage contract and two backends.
//
// [Storage] is implemented by [MemoryStorage], a byte slice, and by
// [FileStorage], an image file locked for exclusive use while open. The
// simulated card in package sim keeps its sectors in a Storage, and
// package diskio presents an initialized card as one.
//
// Reads and writes address whole blocks by logical block address (LBA).
// A request that extends past the last block fails with [io.EOF] and
// moves no data; a write to read-only storage fails with
// [os.ErrPermission].
package blockdev
