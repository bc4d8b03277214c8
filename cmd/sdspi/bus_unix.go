//go:build unix

package main

import (
	"context"
	"time"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/link/fifo"
)

// dialTimeout bounds the wait for a card to appear on the bus.
const dialTimeout = 5 * time.Second

// busLink is a link to a card served on a FIFO bus.
type busLink interface {
	link.Link
	Close() error
}

func dialBus(dir string) (busLink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	l, err := fifo.Dial(ctx, dir)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func serveBus(ctx context.Context, dir string, peer link.Peer) error {
	return fifo.Serve(ctx, dir, peer)
}
