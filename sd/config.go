package sd

// Config holds the attempt budgets of every bounded polling loop. Timeouts
// are counted in attempts, not wall-clock time; PollDelay is the pause
// between attempts of the loops that pace themselves.
type Config struct {
	// DummyClocks is the number of Idle bytes clocked with chip-select
	// released before the first command (at least 10, i.e. 80 clocks).
	DummyClocks int

	// ReadyAttempts bounds the not-busy wait before each command.
	ReadyAttempts int

	// ResponseAttempts bounds the poll for a response byte after a command.
	ResponseAttempts int

	// ResetAttempts bounds the CMD0 loop waiting for the idle state.
	ResetAttempts int

	// NegotiateAttempts bounds the ACMD41 loop waiting for the ready state.
	NegotiateAttempts int

	// TokenAttempts bounds the wait for a start token before a data block.
	TokenAttempts int

	// DataResponseAttempts bounds the poll for the data response token.
	DataResponseAttempts int

	// BusyAttempts bounds waits while the card programs written data.
	BusyAttempts int

	// EraseAttempts bounds the wait after an erase command.
	EraseAttempts int

	// PollDelay is the pause in microseconds between paced attempts.
	PollDelay uint32
}

// DefaultConfig returns the budgets used on real hardware: a 100µs pause
// between attempts and roughly 300ms for command readiness, 2s for reset
// and negotiation, 100ms for a start token, 500ms for write busy, and 10s
// for an erase.
func DefaultConfig() *Config {
	return &Config{
		DummyClocks:          10,
		ReadyAttempts:        3000,
		ResponseAttempts:     255,
		ResetAttempts:        20000,
		NegotiateAttempts:    20000,
		TokenAttempts:        1000,
		DataResponseAttempts: 65,
		BusyAttempts:         5000,
		EraseAttempts:        100000,
		PollDelay:            100,
	}
}

// normalize replaces unset budgets with defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DummyClocks < def.DummyClocks {
		c.DummyClocks = def.DummyClocks
	}
	setDefault(&c.ReadyAttempts, def.ReadyAttempts)
	setDefault(&c.ResponseAttempts, def.ResponseAttempts)
	setDefault(&c.ResetAttempts, def.ResetAttempts)
	setDefault(&c.NegotiateAttempts, def.NegotiateAttempts)
	setDefault(&c.TokenAttempts, def.TokenAttempts)
	setDefault(&c.DataResponseAttempts, def.DataResponseAttempts)
	setDefault(&c.BusyAttempts, def.BusyAttempts)
	setDefault(&c.EraseAttempts, def.EraseAttempts)
	if c.PollDelay == 0 {
		c.PollDelay = def.PollDelay
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
