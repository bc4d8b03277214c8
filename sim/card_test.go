package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ardnew/sdspi/link"
	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/proto"
)

// host drives a card with raw frames.
type host struct {
	t    *testing.T
	card *Card
	l    *link.Loopback
}

func newHost(t *testing.T, cfg Config) *host {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &host{t: t, card: c, l: link.NewLoopback(c)}
}

func (h *host) powerUp() {
	for i := 0; i < DefaultPowerUpClocks; i++ {
		h.l.Transmit(link.Idle)
	}
}

// send transmits a frame and returns the first byte with bit 7 clear.
func (h *host) send(cmd uint8, arg uint32) byte {
	var buf [proto.FrameSize]byte
	f := proto.NewFrame(cmd, arg)
	f.MarshalTo(buf[:])
	return h.sendRaw(buf[:])
}

func (h *host) sendRaw(frame []byte) byte {
	for _, b := range frame {
		h.l.Transmit(b)
	}
	for i := 0; i < 16; i++ {
		if r := h.l.Receive(); r&proto.R1Busy == 0 {
			return r
		}
	}
	return link.Idle
}

func (h *host) receive(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = h.l.Receive()
	}
	return buf
}

// initialize runs the handshake with chip-select held.
func (h *host) initialize(hcs bool) {
	h.t.Helper()
	h.powerUp()
	h.card.Select()
	if r := h.send(proto.CmdGoIdleState, 0); r != proto.R1Idle {
		h.t.Fatalf("CMD0 = %#02x, want idle", r)
	}
	var arg uint32
	if hcs {
		arg = proto.HCS
	}
	h.send(proto.CmdAppCmd, 0)
	if r := h.send(proto.AcmdSendOpCond, arg); r != proto.R1Ready {
		h.t.Fatalf("ACMD41 = %#02x, want ready", r)
	}
}

// sizedStorage reports a block geometry without holding any data.
type sizedStorage struct {
	blockSize uint32
	blocks    uint64
}

func (s sizedStorage) BlockSize() uint32  { return s.blockSize }
func (s sizedStorage) BlockCount() uint64 { return s.blocks }
func (s sizedStorage) Sync() error        { return nil }
func (s sizedStorage) IsReadOnly() bool   { return true }

func (s sizedStorage) Read(uint64, uint32, []byte) (uint32, error) {
	return 0, errors.ErrUnsupported
}

func (s sizedStorage) Write(uint64, uint32, []byte) (uint32, error) {
	return 0, errors.ErrUnsupported
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"wrong block size", Config{Storage: sizedStorage{1024, 4096}}},
		{"high capacity too small", Config{Storage: sizedStorage{proto.SectorSize, 512}}},
		{"standard capacity too large", Config{Class: ClassStandardV2, Storage: sizedStorage{proto.SectorSize, 4 << 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, pkg.ErrParameter) {
				t.Errorf("New() error = %v, want %v", err, pkg.ErrParameter)
			}
		})
	}
}

func TestAdvertisedSectors(t *testing.T) {
	tests := []struct {
		class  Class
		blocks uint64
		want   uint32
	}{
		{ClassHighCapacity, 4096, 4096},
		{ClassHighCapacity, 5000, 4096},
		{ClassStandardV2, 4096, 4096},
		{ClassStandardV2, 4099, 4096},
		{ClassStandardV1, 65536, 65536},
		{ClassStandardV1, 4096 << 9, 4096 << 9},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.class, tt.blocks), func(t *testing.T) {
			c, err := New(Config{Class: tt.class, Storage: sizedStorage{proto.SectorSize, tt.blocks}})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := c.Sectors(); got != tt.want {
				t.Errorf("Sectors() = %d, want %d", got, tt.want)
			}
			csd := c.CSD()
			if csd[15] != proto.CRC7(csd[:15])<<1|1 {
				t.Errorf("CSD CRC byte = %#02x", csd[15])
			}
		})
	}
}

func TestPowerUpClocksRequired(t *testing.T) {
	h := newHost(t, Config{})

	h.card.Select()
	if r := h.send(proto.CmdGoIdleState, 0); r != link.Idle {
		t.Errorf("CMD0 before power-up = %#02x, want no response", r)
	}
	h.card.Deselect()

	h.powerUp()
	h.card.Select()
	if r := h.send(proto.CmdGoIdleState, 0); r != proto.R1Idle {
		t.Errorf("CMD0 after power-up = %#02x, want %#02x", r, proto.R1Idle)
	}
}

func TestChecksumRequired(t *testing.T) {
	h := newHost(t, Config{})
	h.powerUp()
	h.card.Select()

	r := h.sendRaw([]byte{0x40, 0, 0, 0, 0, 0xFF})
	if r&proto.R1CRCError == 0 {
		t.Errorf("CMD0 with bad CRC = %#02x, want CRC error", r)
	}
	if got := h.card.Stats().CRCErrors; got != 1 {
		t.Errorf("CRCErrors = %d, want 1", got)
	}
	if h.card.Ready() {
		t.Error("card ready after bad CMD0")
	}
}

func TestIgnoresCommandsBeforeReset(t *testing.T) {
	h := newHost(t, Config{})
	h.powerUp()
	h.card.Select()

	if r := h.send(proto.CmdReadOCR, 0); r != link.Idle {
		t.Errorf("CMD58 before CMD0 = %#02x, want no response", r)
	}
}

func TestIfCond(t *testing.T) {
	tests := []struct {
		class Class
		echo  bool
		r1    byte
	}{
		{ClassHighCapacity, true, proto.R1Idle},
		{ClassStandardV2, true, proto.R1Idle},
		{ClassStandardV1, false, proto.R1Idle | proto.R1IllegalCommand},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			h := newHost(t, Config{Class: tt.class})
			h.powerUp()
			h.card.Select()
			h.send(proto.CmdGoIdleState, 0)

			if r := h.send(proto.CmdSendIfCond, proto.IfCondArgument); r != tt.r1 {
				t.Errorf("CMD8 = %#02x, want %#02x", r, tt.r1)
			}
			r7 := h.receive(4)
			if got := r7[3] == proto.IfCondPattern && r7[2] == proto.IfCondVoltage; got != tt.echo {
				t.Errorf("R7 = % X, echo %v, want %v", r7, got, tt.echo)
			}
		})
	}
}

func TestHighCapacityNeedsHCS(t *testing.T) {
	h := newHost(t, Config{Class: ClassHighCapacity})
	h.powerUp()
	h.card.Select()
	h.send(proto.CmdGoIdleState, 0)

	for i := 0; i < 10; i++ {
		h.send(proto.CmdAppCmd, 0)
		if r := h.send(proto.AcmdSendOpCond, 0); r != proto.R1Idle {
			t.Fatalf("ACMD41 without HCS = %#02x, want idle", r)
		}
	}
	if h.card.Ready() {
		t.Error("card ready without HCS")
	}
}

func TestOCR(t *testing.T) {
	tests := []struct {
		class Class
		first byte
	}{
		{ClassHighCapacity, proto.OCRPowerUpDone | proto.OCRCCS},
		{ClassStandardV2, proto.OCRPowerUpDone},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			h := newHost(t, Config{Class: tt.class})
			h.initialize(true)

			if r := h.send(proto.CmdReadOCR, 0); r != proto.R1Ready {
				t.Fatalf("CMD58 = %#02x", r)
			}
			ocr := h.receive(4)
			if ocr[0] != tt.first || ocr[1] != 0xFF || ocr[2] != 0x80 {
				t.Errorf("OCR = % X", ocr)
			}
		})
	}
}

func TestDeselectDropsOutput(t *testing.T) {
	h := newHost(t, Config{})
	h.initialize(true)

	if r := h.send(proto.CmdSendCSD, 0); r != proto.R1Ready {
		t.Fatalf("CMD9 = %#02x", r)
	}
	h.card.Deselect()
	h.card.Select()

	for i, b := range h.receive(32) {
		if b != link.Idle {
			t.Fatalf("byte %d after deselect = %#02x, want idle", i, b)
		}
	}
	if got := h.card.Stats().TokensSent; got != 0 {
		t.Errorf("TokensSent = %d, want 0", got)
	}
}

func TestIllegalBeforeReady(t *testing.T) {
	h := newHost(t, Config{})
	h.powerUp()
	h.card.Select()
	h.send(proto.CmdGoIdleState, 0)

	if r := h.send(proto.CmdReadSingleBlock, 0); r != proto.R1Idle|proto.R1IllegalCommand {
		t.Errorf("CMD17 while idle = %#02x", r)
	}
}

func TestEraseSequenceError(t *testing.T) {
	h := newHost(t, Config{})
	h.initialize(true)

	if r := h.send(proto.CmdErase, 0); r != proto.R1EraseSeqError {
		t.Errorf("CMD38 without range = %#02x, want %#02x", r, proto.R1EraseSeqError)
	}
}

func TestCRC16(t *testing.T) {
	if got := crc16([]byte("123456789")); got != 0x31C3 {
		t.Errorf("crc16() = %#04x, want 0x31c3", got)
	}
}

func TestParseClass(t *testing.T) {
	for _, c := range []Class{ClassHighCapacity, ClassStandardV2, ClassStandardV1} {
		got, ok := ParseClass(c.String())
		if !ok || got != c {
			t.Errorf("ParseClass(%q) = %v, %v", c.String(), got, ok)
		}
	}
	if _, ok := ParseClass("mmc"); ok {
		t.Error("ParseClass(\"mmc\") ok = true")
	}
}

func TestStatsCount(t *testing.T) {
	s := Stats{Commands: []Command{{Index: 17}, {Index: 55}, {Index: 17}}}
	if got := s.Count(17); got != 2 {
		t.Errorf("Count(17) = %d, want 2", got)
	}
	if got := s.Count(24); got != 0 {
		t.Errorf("Count(24) = %d, want 0", got)
	}
}
