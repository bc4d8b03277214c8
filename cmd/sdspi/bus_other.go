//go:build !unix

package main

import (
	"context"
	"errors"

	"github.com/ardnew/sdspi/link"
)

var errNoBus = errors.New("FIFO bus requires a Unix system")

type busLink interface {
	link.Link
	Close() error
}

func dialBus(string) (busLink, error) {
	return nil, errNoBus
}

func serveBus(context.Context, string, link.Peer) error {
	return errNoBus
}
