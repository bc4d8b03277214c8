package sd

import (
	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// initState is a state of the initialization machine.
type initState uint8

// Initialization states, in order. Failed is absorbing.
const (
	statePowerUp initState = iota
	stateIdle
	stateVersionProbe
	stateNegotiate
	stateCapacityProbe
	stateReady
	stateFailed
)

// String returns the state name used in logs.
func (s initState) String() string {
	switch s {
	case statePowerUp:
		return "power-up"
	case stateIdle:
		return "idle"
	case stateVersionProbe:
		return "version-probe"
	case stateNegotiate:
		return "negotiate"
	case stateCapacityProbe:
		return "capacity-probe"
	case stateReady:
		return "ready"
	default:
		return "failed"
	}
}

// initializer carries the transient state of one initialization run.
type initializer struct {
	card  *Card
	class Class
	err   error
}

// Initialize runs the initialization handshake: power-up clocking, reset to
// idle, version probe, voltage negotiation, and (for version 2 cards)
// capacity probe. It may be called again at any time; the card is reset
// and re-identified from scratch.
//
// On failure the card stays uninitialized and the returned error wraps
// pkg.ErrInitialization.
func (c *Card) Initialize() error {
	c.status = StatusUninitialized
	c.class = ClassUnknown

	in := initializer{card: c}
	state := statePowerUp
	for state != stateReady && state != stateFailed {
		next := in.step(state)
		pkg.LogDebug(pkg.ComponentCard, "init transition",
			"from", state.String(),
			"to", next.String())
		state = next
	}

	if state == stateFailed {
		pkg.LogWarn(pkg.ComponentCard, "initialization failed", "error", in.err)
		return in.err
	}

	c.class = in.class
	c.status = StatusReady
	pkg.LogInfo(pkg.ComponentCard, "card ready", "class", c.class.String())
	return nil
}

// PowerUp clocks the card through its power-on sequence and resets it to
// the idle state, without completing initialization. The card is left
// uninitialized.
func (c *Card) PowerUp() error {
	c.status = StatusUninitialized
	c.class = ClassUnknown

	in := initializer{card: c}
	if in.step(in.step(statePowerUp)) == stateFailed {
		return in.err
	}
	return nil
}

// step runs one state and returns the next. Every state that asserts
// chip-select releases it before returning.
func (in *initializer) step(s initState) initState {
	switch s {
	case statePowerUp:
		return in.powerUp()
	case stateIdle:
		return in.reset()
	case stateVersionProbe:
		return in.probeVersion()
	case stateNegotiate:
		return in.negotiate()
	case stateCapacityProbe:
		return in.probeCapacity()
	default:
		return s
	}
}

func (in *initializer) fail(err error) initState {
	in.err = err
	return stateFailed
}

// powerUp clocks dummy bytes with chip-select released so the card can
// finish its internal power-on sequence.
func (in *initializer) powerUp() initState {
	c := in.card
	for i := 0; i < c.cfg.DummyClocks; i++ {
		c.link.Transmit(link.Idle)
	}
	return stateIdle
}

// reset repeats CMD0 until the card reports the idle state.
func (in *initializer) reset() initState {
	c := in.card
	c.acquire()
	defer c.release()

	for i := 0; i < c.cfg.ResetAttempts; i++ {
		if c.command(proto.CmdGoIdleState, 0) == proto.R1Idle {
			return stateVersionProbe
		}
		c.link.Delay(c.cfg.PollDelay)
	}
	return in.fail(pkg.ErrResetTimeout)
}

// probeVersion sends CMD8. Version 1 cards reject it as illegal; version 2
// cards echo the check pattern in the last byte of the R7 response.
func (in *initializer) probeVersion() initState {
	c := in.card
	c.acquire()
	defer c.release()

	if c.command(proto.CmdSendIfCond, proto.IfCondArgument)&proto.R1IllegalCommand != 0 {
		in.class = ClassStandardV1
		return stateNegotiate
	}

	var echo byte
	for i := 0; i < 4; i++ {
		echo = c.link.Receive()
	}
	if echo != proto.IfCondPattern {
		return in.fail(pkg.Errorf(pkg.ErrEchoMismatch, "pattern %#02x", echo))
	}

	in.class = ClassStandardV2
	return stateNegotiate
}

// negotiate repeats ACMD41 until the card leaves the idle state. High
// capacity support is advertised only to version 2 cards.
func (in *initializer) negotiate() initState {
	c := in.card
	c.acquire()
	defer c.release()

	var arg uint32
	if in.class == ClassStandardV2 {
		arg = proto.HCS
	}

	for i := 0; i < c.cfg.NegotiateAttempts; i++ {
		if c.appCommand(proto.AcmdSendOpCond, arg) == proto.R1Ready {
			if in.class == ClassStandardV2 {
				return stateCapacityProbe
			}
			return stateReady
		}
		c.link.Delay(c.cfg.PollDelay)
	}
	return in.fail(pkg.ErrNegotiationTimeout)
}

// probeCapacity reads the OCR of a version 2 card. Power-up done and CCS
// both set identify a block-addressed card; the voltage window bytes are
// read and discarded.
func (in *initializer) probeCapacity() initState {
	c := in.card
	c.acquire()
	defer c.release()

	if r1 := c.command(proto.CmdReadOCR, 0); r1 != proto.R1Ready {
		return in.fail(pkg.Errorf(pkg.ErrOCRRead, "r1 %#02x", r1))
	}

	if c.link.Receive()&(proto.OCRPowerUpDone|proto.OCRCCS) == proto.OCRPowerUpDone|proto.OCRCCS {
		in.class = ClassHighCapacity
	}
	for i := 1; i < proto.OCRSize; i++ {
		c.link.Receive()
	}
	return stateReady
}
