//go:build unix

package fifo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
)

// DefaultTimeout bounds each bus operation of a Link.
const DefaultTimeout = time.Second

// Link is the host side of a FIFO bus. It implements link.Link.
// A Link is not safe for concurrent use.
type Link struct {
	busDir string

	tx *os.File // host writes messages
	rx *os.File // host reads replies

	// Timeout bounds each write and each wait for a reply.
	Timeout time.Duration

	err    error
	txBuf  [messageSize]byte
	rxBuf  [messageSize]byte
	closed bool
}

var _ link.Link = (*Link)(nil)

// Dial waits until a card is served in busDir and connects to it.
func Dial(ctx context.Context, busDir string) (*Link, error) {
	for {
		if exists(busDir, fifoHostToCard) && exists(busDir, fifoCardToHost) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no card on bus %s: %w", busDir, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}

	tx, err := openFIFO(busDir, fifoHostToCard)
	if err != nil {
		return nil, err
	}
	rx, err := openFIFO(busDir, fifoCardToHost)
	if err != nil {
		tx.Close()
		return nil, err
	}
	drain(rx)

	pkg.LogInfo(pkg.ComponentLink, "fifo link connected", "busDir", busDir)
	return &Link{busDir: busDir, tx: tx, rx: rx, Timeout: DefaultTimeout}, nil
}

func exists(dir, name string) bool {
	fi, err := os.Stat(filepath.Join(dir, name))
	return err == nil && fi.Mode()&os.ModeNamedPipe != 0
}

// Err returns the first failure seen on the bus, if any.
func (l *Link) Err() error {
	return l.err
}

func (l *Link) fail(err error) {
	if l.err == nil {
		l.err = err
		pkg.LogWarn(pkg.ComponentLink, "fifo link failed", "busDir", l.busDir, "error", err)
	}
}

func (l *Link) send(typ, value byte) bool {
	if l.err != nil {
		return false
	}
	if err := writeMessage(l.tx, &l.txBuf, typ, value, l.Timeout); err != nil {
		l.fail(err)
		return false
	}
	return true
}

// Transmit clocks b out to the card.
func (l *Link) Transmit(b byte) {
	l.send(msgTransmit, b)
}

// Receive clocks Idle out and returns the card's byte, or Idle after a
// failure.
func (l *Link) Receive() byte {
	if !l.send(msgReceive, link.Idle) {
		return link.Idle
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()
	if _, err := readWithContext(ctx, l.rx, l.rxBuf[:]); err != nil {
		l.fail(fmt.Errorf("receive: %w", err))
		return link.Idle
	}
	if l.rxBuf[0] != msgData {
		l.fail(fmt.Errorf("%w: reply type %#02x", ErrProtocol, l.rxBuf[0]))
		return link.Idle
	}
	return l.rxBuf[1]
}

// Select asserts chip-select.
func (l *Link) Select() {
	l.send(msgSelect, 0)
}

// Deselect releases chip-select.
func (l *Link) Deselect() {
	l.send(msgDeselect, 0)
}

// Delay sleeps for us microseconds.
func (l *Link) Delay(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// Close closes the pipes. The card keeps serving other hosts.
func (l *Link) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	err := l.tx.Close()
	if e := l.rx.Close(); err == nil {
		err = e
	}
	return err
}
