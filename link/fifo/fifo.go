//go:build unix

package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/sdspi/pkg"
)

// Message types (host to card).
const (
	msgTransmit = 0x01 // value clocked in, reply discarded
	msgReceive  = 0x02 // Idle clocked in, reply sent back
	msgSelect   = 0x03
	msgDeselect = 0x04
)

// Message type (card to host).
const msgData = 0x81

// messageSize is the length of every message: type and value.
const messageSize = 2

// FIFO file names.
const (
	fifoHostToCard = "host_to_card"
	fifoCardToHost = "card_to_host"
)

// pollInterval bounds how long a blocked read waits before checking for
// cancellation.
const pollInterval = 100 * time.Millisecond

// ErrProtocol indicates an unexpected message on the bus.
var ErrProtocol = errors.New("fifo protocol error")

func createFIFO(dir, name string) error {
	path := filepath.Join(dir, name)

	// Remove existing file if any
	os.Remove(path)

	if err := unix.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", name, err)
	}
	return nil
}

// openFIFO opens a pipe read-write and non-blocking, so opening never
// waits for the other side and deadlines apply to reads and writes.
func openFIFO(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// readWithContext reads exactly len(buf) bytes, retrying on deadline
// expiry until ctx is done.
func readWithContext(ctx context.Context, f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		f.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := f.Read(buf[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return total, err
		}
	}
	return total, nil
}

// writeMessage writes one message, retrying partial writes.
func writeMessage(f *os.File, buf *[messageSize]byte, typ, value byte, timeout time.Duration) error {
	buf[0], buf[1] = typ, value
	f.SetWriteDeadline(time.Now().Add(timeout))
	written := 0
	for written < messageSize {
		n, err := f.Write(buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// drain discards anything left in f by an earlier session.
func drain(f *os.File) {
	var buf [64]byte
	for {
		f.SetReadDeadline(time.Now().Add(time.Millisecond))
		if n, err := f.Read(buf[:]); n == 0 || err != nil {
			return
		}
	}
}

func logf(msg string, args ...any) {
	pkg.LogDebug(pkg.ComponentLink, msg, args...)
}
