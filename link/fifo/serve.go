//go:build unix

package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
)

// Serve publishes peer in busDir and answers host messages until ctx is
// done. The pipes are removed on return. Serve returns nil when stopped by
// ctx.
func Serve(ctx context.Context, busDir string, peer link.Peer) error {
	if err := os.MkdirAll(busDir, 0o755); err != nil {
		return fmt.Errorf("create bus dir: %w", err)
	}
	if err := createFIFO(busDir, fifoHostToCard); err != nil {
		return err
	}
	defer os.Remove(filepath.Join(busDir, fifoHostToCard))

	if err := createFIFO(busDir, fifoCardToHost); err != nil {
		return err
	}
	defer os.Remove(filepath.Join(busDir, fifoCardToHost))

	rx, err := openFIFO(busDir, fifoHostToCard)
	if err != nil {
		return err
	}
	defer rx.Close()

	tx, err := openFIFO(busDir, fifoCardToHost)
	if err != nil {
		return err
	}
	defer tx.Close()

	pkg.LogInfo(pkg.ComponentLink, "serving card", "busDir", busDir)

	var (
		msg   [messageSize]byte
		reply [messageSize]byte
		count int
	)
	for {
		if _, err := readWithContext(ctx, rx, msg[:]); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				pkg.LogInfo(pkg.ComponentLink, "stopped serving card",
					"busDir", busDir,
					"messages", count)
				return nil
			}
			return fmt.Errorf("read %s: %w", fifoHostToCard, err)
		}
		count++

		switch msg[0] {
		case msgTransmit:
			peer.Exchange(msg[1])
		case msgReceive:
			b := peer.Exchange(link.Idle)
			if err := writeMessage(tx, &reply, msgData, b, DefaultTimeout); err != nil {
				return fmt.Errorf("write %s: %w", fifoCardToHost, err)
			}
		case msgSelect:
			peer.Select()
		case msgDeselect:
			peer.Deselect()
		default:
			logf("unknown message", "type", msg[0])
			return fmt.Errorf("%w: message type %#02x", ErrProtocol, msg[0])
		}
	}
}
