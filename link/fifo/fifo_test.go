//go:build unix

package fifo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardnew/sdspi/diskio"
	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/sd"
	"github.com/ardnew/sdspi/sim"
)

// echoPeer answers each exchange with the previous byte it received.
type echoPeer struct {
	last     byte
	selected atomic.Int32
}

func (p *echoPeer) Exchange(mosi byte) byte {
	prev := p.last
	p.last = mosi
	return prev
}

func (p *echoPeer) Select()   { p.selected.Add(1) }
func (p *echoPeer) Deselect() { p.selected.Add(-1) }

func serve(t *testing.T, peer link.Peer) (string, *Link) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bus")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, dir, peer) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	l, err := Dial(dialCtx, dir)
	if err != nil {
		cancel()
		t.Fatalf("Dial: %v", err)
	}

	t.Cleanup(func() {
		l.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not stop")
		}
	})
	return dir, l
}

func TestExchange(t *testing.T) {
	peer := &echoPeer{}
	_, l := serve(t, peer)

	l.Transmit(0x42)
	if got := l.Receive(); got != 0x42 {
		t.Errorf("Receive = %#02x, want 0x42", got)
	}
	if got := l.Receive(); got != link.Idle {
		t.Errorf("Receive = %#02x, want Idle", got)
	}
	if err := l.Err(); err != nil {
		t.Errorf("Err = %v", err)
	}
}

func TestSelectOrdering(t *testing.T) {
	peer := &echoPeer{}
	_, l := serve(t, peer)

	l.Select()
	l.Select()
	l.Deselect()
	// The reply to a receive is written after every earlier message.
	l.Receive()
	if n := peer.selected.Load(); n != 1 {
		t.Errorf("selected = %d, want 1", n)
	}
}

func TestServeRemovesPipes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bus")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, dir, &echoPeer{}) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	l, err := Dial(dialCtx, dir)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	l.Close()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	for _, name := range []string{fifoHostToCard, fifoCardToHost} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still exists: %v", name, err)
		}
	}
}

func TestServeCleansUpOnCreateFailure(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory in place of the reply pipe makes it fail.
	if err := os.MkdirAll(filepath.Join(dir, fifoCardToHost, "busy"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Serve(context.Background(), dir, &echoPeer{}); err == nil {
		t.Fatal("Serve() error = nil, want pipe creation failure")
	}
	if _, err := os.Stat(filepath.Join(dir, fifoHostToCard)); !os.IsNotExist(err) {
		t.Errorf("%s left behind: %v", fifoHostToCard, err)
	}
}

func TestDialNoCard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dial error = %v, want DeadlineExceeded", err)
	}
}

func TestStickyError(t *testing.T) {
	_, l := serve(t, &echoPeer{})
	l.Timeout = 50 * time.Millisecond

	// A closed reply pipe fails the receive and every later one.
	l.rx.Close()
	if got := l.Receive(); got != link.Idle {
		t.Errorf("Receive = %#02x, want Idle", got)
	}
	first := l.Err()
	if first == nil {
		t.Fatal("Err = nil after failure")
	}
	l.Transmit(0x00)
	if got := l.Receive(); got != link.Idle {
		t.Errorf("Receive = %#02x, want Idle", got)
	}
	if l.Err() != first {
		t.Errorf("Err changed to %v", l.Err())
	}
}

func TestCardOverFIFO(t *testing.T) {
	card, err := sim.New(sim.Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, l := serve(t, card)

	disk := diskio.New(sd.New(l, nil), nil)
	if _, err := disk.Initialize(0); err != nil {
		t.Fatalf("Initialize: %v (link: %v)", err, l.Err())
	}

	want := bytes.Repeat([]byte{0xA5, 0x5A}, 512)
	if err := disk.Write(0, want, 7, 2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, len(want))
	if err := disk.Read(0, got, 7, 2); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("read data differs from written data")
	}

	stored := make([]byte, 512)
	if _, err := card.Storage().Read(8, 1, stored); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored, want[512:]) {
		t.Error("card storage differs from written data")
	}
}
