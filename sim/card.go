package sim

import (
	"fmt"
	"sync"

	"github.com/ardnew/sdspi/blockdev"
	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// mode selects how incoming bytes are interpreted.
type mode uint8

const (
	modeCommand    mode = iota // framing commands
	modeReadStream             // framing commands while streaming CMD18 blocks
	modeWriteSingle            // waiting for the CMD24 start token
	modeWriteMulti             // waiting for a CMD25 block token or stop token
	modeWriteData              // receiving a block payload and CRC
)

// accessGap is the number of idle bytes before each data block. It is long
// enough that a CMD12 frame sent between blocks completes before the next
// start token is clocked out.
const accessGap = 8

// Command is one command frame received by the card.
type Command struct {
	Index uint8
	Arg   uint32
	App   bool // preceded by CMD55
}

// Stats counts protocol events seen by the card.
type Stats struct {
	Commands   []Command
	Selects    int
	Deselects  int
	TokensSent int // start tokens clocked out to the host
	StopTokens int // multi-block write stop tokens received
	Written    int // blocks programmed
	CRCErrors  int // CMD0/CMD8 frames with a bad checksum
	PreErase   uint32
}

// Count returns how many times command index was received.
func (s Stats) Count(index uint8) int {
	n := 0
	for _, c := range s.Commands {
		if c.Index == index {
			n++
		}
	}
	return n
}

// Card is a simulated SD card. It implements link.Peer.
type Card struct {
	cfg     Config
	store   blockdev.Storage
	sectors uint32
	csd     [proto.CSDSize]byte

	mutex sync.Mutex

	// power and identification state
	clocks   int
	selected bool
	idle     bool // CMD0 accepted since power-up
	ready    bool // ACMD41 completed
	appNext  bool
	resets   int
	opConds  int

	// wire state
	mode  mode
	frame [proto.FrameSize]byte
	n     int
	out   []byte
	token int // index of a pending start token in out, or -1
	busy  int

	// transfer state
	sector     uint32
	multi      bool
	data       []byte
	pos        int
	eraseStart int64
	eraseEnd   int64

	stats Stats
}

var _ link.Peer = (*Card)(nil)

// New creates a powered-off card.
func New(cfg Config) (*Card, error) {
	cfg.normalize()

	store := cfg.Storage
	if store == nil {
		store = blockdev.NewMemoryStorage(DefaultSectors, proto.SectorSize)
	}
	if store.BlockSize() != proto.SectorSize {
		return nil, pkg.Errorf(pkg.ErrParameter, "block size %d", store.BlockSize())
	}

	c := &Card{
		cfg:        cfg,
		store:      store,
		token:      -1,
		data:       make([]byte, proto.SectorSize+2),
		eraseStart: -1,
		eraseEnd:   -1,
	}

	var err error
	if cfg.Class == ClassHighCapacity {
		c.sectors, err = encodeCSDv2(&c.csd, store.BlockCount())
	} else {
		c.sectors, err = encodeCSDv1(&c.csd, store.BlockCount())
	}
	if err != nil {
		return nil, err
	}
	if cfg.WriteProtected {
		c.csd[14] |= 0x10
	}
	c.csd[15] = proto.CRC7(c.csd[:15])<<1 | 1

	pkg.LogDebug(pkg.ComponentSim, "card created",
		"class", cfg.Class.String(),
		"sectors", c.sectors)
	return c, nil
}

// Class returns the class the card poses as.
func (c *Card) Class() Class {
	return c.cfg.Class
}

// Sectors returns the sector count advertised in the CSD.
func (c *Card) Sectors() uint32 {
	return c.sectors
}

// Storage returns the backing store.
func (c *Card) Storage() blockdev.Storage {
	return c.store
}

// CSD returns the encoded Card-Specific Data register.
func (c *Card) CSD() [proto.CSDSize]byte {
	return c.csd
}

// Stats returns a copy of the event counters.
func (c *Card) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s := c.stats
	s.Commands = append([]Command(nil), c.stats.Commands...)
	return s
}

// ResetStats clears the event counters.
func (c *Card) ResetStats() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats = Stats{}
}

// PowerCycle removes and restores power. The card needs its power-up
// clocks and a fresh initialization afterwards.
func (c *Card) PowerCycle() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.clocks = 0
	c.idle = false
	c.ready = false
	c.busy = 0
	c.resets = 0
	c.opConds = 0
	c.abort()
}

// Ready reports whether initialization completed.
func (c *Card) Ready() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ready
}

func (c *Card) String() string {
	return fmt.Sprintf("sim %s card, %d sectors", c.cfg.Class, c.sectors)
}

// Select asserts chip-select.
func (c *Card) Select() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.selected = true
	c.stats.Selects++
}

// Deselect releases chip-select. Pending output and any partial frame or
// block are dropped; programming already under way continues.
func (c *Card) Deselect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.selected = false
	c.stats.Deselects++
	c.flush()
	c.n = 0
	c.mode = modeCommand
}

// Exchange clocks one byte in each direction. The byte returned was
// queued before mosi arrived.
func (c *Card) Exchange(mosi byte) byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.selected {
		if c.clocks < c.cfg.PowerUpClocks {
			c.clocks++
		}
		if c.busy > 0 {
			c.busy--
		}
		return link.Idle
	}

	miso := c.next()
	c.receive(mosi)
	return miso
}

// next returns the byte the card drives: queued output first, then busy.
func (c *Card) next() byte {
	if len(c.out) > 0 {
		b := c.out[0]
		c.out = c.out[1:]
		switch {
		case c.token == 0:
			c.stats.TokensSent++
			c.token = -1
		case c.token > 0:
			c.token--
		}
		if len(c.out) == 0 && c.mode == modeReadStream {
			c.streamNext()
		}
		return b
	}
	if c.busy > 0 {
		c.busy--
		return 0x00
	}
	return link.Idle
}

// receive handles one byte from the host.
func (c *Card) receive(b byte) {
	switch c.mode {
	case modeCommand, modeReadStream:
		if c.n == 0 && !proto.IsFrameStart(b) {
			return
		}
		c.frame[c.n] = b
		c.n++
		if c.n == proto.FrameSize {
			c.n = 0
			var f proto.Frame
			proto.ParseFrame(c.frame[:], &f)
			c.dispatch(&f)
		}

	case modeWriteSingle:
		if b == proto.TokenStartBlock {
			c.mode, c.multi, c.pos = modeWriteData, false, 0
		}

	case modeWriteMulti:
		switch b {
		case proto.TokenMultiWriteBlock:
			c.mode, c.multi, c.pos = modeWriteData, true, 0
		case proto.TokenStopTransmission:
			c.stats.StopTokens++
			// One stuff byte, then busy while the last block programs.
			c.respond(link.Idle)
			c.busy = c.cfg.WriteBusy
			c.mode = modeCommand
		}

	case modeWriteData:
		c.data[c.pos] = b
		c.pos++
		if c.pos == len(c.data) {
			c.program()
		}
	}
}

// flush drops pending output.
func (c *Card) flush() {
	c.out = c.out[:0]
	c.token = -1
}

// respond replaces pending output with b.
func (c *Card) respond(b ...byte) {
	c.flush()
	c.out = append(c.out, b...)
}

// reply queues an R1 response (and any trailing bytes) behind the Ncr gap.
func (c *Card) reply(r1 byte, extra ...byte) {
	c.respond(link.Idle, r1)
	c.out = append(c.out, extra...)
}

// block queues a data block: access gap, start token, payload, CRC16.
func (c *Card) block(payload []byte) {
	for i := 0; i < accessGap; i++ {
		c.out = append(c.out, link.Idle)
	}
	c.token = len(c.out)
	crc := crc16(payload)
	c.out = append(c.out, proto.TokenStartBlock)
	c.out = append(c.out, payload...)
	c.out = append(c.out, byte(crc>>8), byte(crc))
}

// dataError queues a data error token in place of a block.
func (c *Card) dataError(token byte) {
	for i := 0; i < accessGap; i++ {
		c.out = append(c.out, link.Idle)
	}
	c.out = append(c.out, token)
}

// readSector queues sector s as a data block, or an out-of-range error
// token.
func (c *Card) readSector(s uint32) bool {
	if s >= c.sectors {
		c.dataError(proto.DataErrorOutOfRange)
		return false
	}
	buf := make([]byte, proto.SectorSize)
	if _, err := c.store.Read(uint64(s), 1, buf); err != nil {
		pkg.LogWarn(pkg.ComponentSim, "storage read failed", "sector", s, "error", err)
		c.dataError(proto.DataErrorGeneric)
		return false
	}
	c.block(buf)
	return true
}

// streamNext queues the next block of a CMD18 stream.
func (c *Card) streamNext() {
	if !c.readSector(c.sector) {
		c.mode = modeCommand
		return
	}
	c.sector++
}

// program stores a received block and queues the data response.
func (c *Card) program() {
	next := modeCommand
	if c.multi {
		next = modeWriteMulti
	}
	c.mode = next

	status := byte(proto.DataResponseAccepted)
	switch {
	case c.cfg.RejectWrites != 0:
		status = c.cfg.RejectWrites & proto.DataResponseMask
	case c.sector >= c.sectors:
		status = proto.DataResponseWriteErr
	default:
		if _, err := c.store.Write(uint64(c.sector), 1, c.data[:proto.SectorSize]); err != nil {
			pkg.LogWarn(pkg.ComponentSim, "storage write failed", "sector", c.sector, "error", err)
			status = proto.DataResponseWriteErr
		} else {
			c.stats.Written++
		}
	}

	c.respond(0xE0 | status)
	if status == proto.DataResponseAccepted {
		c.busy = c.cfg.WriteBusy
		if c.multi {
			c.sector++
		}
	}
}
