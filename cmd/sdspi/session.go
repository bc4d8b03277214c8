package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/diskio"
	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/proto"
	"github.com/ardnew/sdspi/sd"
	"github.com/ardnew/sdspi/sim"
)

// session is an initialized disk and whatever backs it.
type session struct {
	disk    *diskio.Disk
	closers []io.Closer
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openSimulated creates a simulated card backed by the image.
func openSimulated(opts options) (*sim.Card, *blockdev.FileStorage, error) {
	storage, err := blockdev.NewFileStorage(opts.image, proto.SectorSize, false)
	if err != nil {
		return nil, nil, err
	}
	card, err := sim.New(sim.Config{Class: opts.class, Storage: storage})
	if err != nil {
		storage.Close()
		return nil, nil, err
	}
	return card, storage, nil
}

// openSession connects to the card selected by opts and initializes it.
func openSession(opts options) (*session, error) {
	s := &session{}

	var l link.Link
	switch {
	case opts.bus != "" && opts.image != "":
		return nil, usagef("Supply either --bus or --image, not both")
	case opts.image != "":
		card, storage, err := openSimulated(opts)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, storage)
		l = link.NewLoopback(card)
	case opts.bus != "":
		bus, err := dialBus(opts.bus)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, bus)
		l = bus
	default:
		return nil, usagef("Must supply --bus or --image, try --help")
	}

	s.disk = diskio.New(sd.New(l, nil), nil)
	if _, err := s.disk.Initialize(0); err != nil {
		s.Close()
		return nil, fmt.Errorf("initialize card: %w", err)
	}
	return s, nil
}
