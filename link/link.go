package link

import "time"

// Idle is the byte a released data line reads as, and the filler clocked
// out whenever the host only wants to receive.
const Idle = 0xFF

// Link is the host side of a byte-oriented synchronous serial link with a
// chip-select line. Every byte transmitted clocks one byte back and every
// byte received clocks out Idle; implementations must not buffer or
// reorder bytes.
//
// Link methods do not return errors. A transport that can fail records the
// failure itself and reads Idle afterwards, which the protocol layer sees
// as an unresponsive card.
type Link interface {
	// Transmit clocks b out and discards the byte clocked in.
	Transmit(b byte)

	// Receive clocks out Idle and returns the byte clocked in.
	Receive() byte

	// Select asserts chip-select (drives it low).
	Select()

	// Deselect releases chip-select (drives it high).
	Deselect()

	// Delay pauses for at least us microseconds between polling attempts.
	Delay(us uint32)
}

// Peer is the card side of the link: it sees every clocked byte and the
// chip-select line, and answers each byte with one of its own.
type Peer interface {
	// Exchange consumes the byte driven by the host and returns the byte
	// driven by the card during the same eight clocks.
	Exchange(mosi byte) (miso byte)

	// Select is called when the host asserts chip-select.
	Select()

	// Deselect is called when the host releases chip-select.
	Deselect()
}

// Loopback connects a Link directly to a Peer in the same process.
// Delays advance a virtual clock instead of sleeping unless RealTime is set.
type Loopback struct {
	peer Peer

	// RealTime makes Delay sleep for the requested duration.
	RealTime bool

	elapsed time.Duration
}

// NewLoopback creates a Link that exchanges bytes with peer directly.
func NewLoopback(peer Peer) *Loopback {
	return &Loopback{peer: peer}
}

// Transmit clocks b into the peer.
func (l *Loopback) Transmit(b byte) {
	l.peer.Exchange(b)
}

// Receive clocks Idle into the peer and returns its answer.
func (l *Loopback) Receive() byte {
	return l.peer.Exchange(Idle)
}

// Select asserts chip-select on the peer.
func (l *Loopback) Select() {
	l.peer.Select()
}

// Deselect releases chip-select on the peer.
func (l *Loopback) Deselect() {
	l.peer.Deselect()
}

// Delay advances the virtual clock, sleeping only in RealTime mode.
func (l *Loopback) Delay(us uint32) {
	d := time.Duration(us) * time.Microsecond
	l.elapsed += d
	if l.RealTime {
		time.Sleep(d)
	}
}

// Elapsed returns the total delay requested so far.
func (l *Loopback) Elapsed() time.Duration {
	return l.elapsed
}
