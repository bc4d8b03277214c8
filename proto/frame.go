package proto

// Frame is a command frame: index, 32-bit argument, and checksum byte.
type Frame struct {
	Index    uint8
	Argument uint32
	Checksum uint8
}

// NewFrame builds the frame for cmd with the checksum the protocol
// requires. Only CMD0 and CMD8 carry a real CRC; every other command is
// sent after CRC checking has been disabled and uses the placeholder.
func NewFrame(cmd uint8, arg uint32) Frame {
	f := Frame{Index: cmd & FrameIndex, Argument: arg, Checksum: ChecksumDefault}
	switch f.Index {
	case CmdGoIdleState:
		f.Checksum = ChecksumGoIdle
	case CmdSendIfCond:
		f.Checksum = ChecksumIfCond
	}
	return f
}

// MarshalTo writes the frame to buf, argument most significant byte first.
// Returns the number of bytes written (6), or 0 if buf is too small.
func (f *Frame) MarshalTo(buf []byte) int {
	if len(buf) < FrameSize {
		return 0
	}
	buf[0] = FrameStart | f.Index&FrameIndex
	buf[1] = byte(f.Argument >> 24)
	buf[2] = byte(f.Argument >> 16)
	buf[3] = byte(f.Argument >> 8)
	buf[4] = byte(f.Argument)
	buf[5] = f.Checksum
	return FrameSize
}

// ParseFrame parses raw bytes into out.
// Returns false if data is too short or does not start a command.
func ParseFrame(data []byte, out *Frame) bool {
	if len(data) < FrameSize || !IsFrameStart(data[0]) {
		return false
	}
	out.Index = data[0] & FrameIndex
	out.Argument = uint32(data[1])<<24 | uint32(data[2])<<16 |
		uint32(data[3])<<8 | uint32(data[4])
	out.Checksum = data[5]
	return true
}

// IsFrameStart reports whether b can be the first byte of a command frame.
func IsFrameStart(b byte) bool {
	return b&FrameMarker == FrameStart
}

// Valid reports whether the checksum byte carries the CRC7 of the first
// five frame bytes followed by the end bit.
func (f *Frame) Valid() bool {
	var buf [FrameSize]byte
	f.MarshalTo(buf[:])
	return f.Checksum == CRC7(buf[:5])<<1|1
}

// CRC7 computes the 7-bit CRC (polynomial x^7 + x^3 + 1) used by command
// frames and register contents.
func CRC7(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (b^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			b <<= 1
		}
	}
	return crc & 0x7F
}

// IsDataResponse reports whether b has the shape of a data response
// token (xxx0sss1).
func IsDataResponse(b byte) bool {
	return b&0x11 == 0x01
}
