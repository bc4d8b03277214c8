package proto

// SectorSize is the fixed data block length of SPI-mode transfers.
const SectorSize = 512

// Register lengths in bytes.
const (
	CSDSize = 16 // Card-Specific Data
	CIDSize = 16 // Card Identification
	OCRSize = 4  // Operation Conditions Register
)

// Command indices. Application commands (ACMD) must be preceded by CMD55.
const (
	CmdGoIdleState        = 0  // CMD0: software reset
	CmdSendIfCond         = 8  // CMD8: interface condition check
	CmdSendCSD            = 9  // CMD9: read CSD register
	CmdSendCID            = 10 // CMD10: read CID register
	CmdStopTransmission   = 12 // CMD12: end multi-block read
	CmdReadSingleBlock    = 17 // CMD17
	CmdReadMultipleBlock  = 18 // CMD18
	CmdWriteBlock         = 24 // CMD24
	CmdWriteMultipleBlock = 25 // CMD25
	CmdEraseWrBlkStart    = 32 // CMD32: first block to erase
	CmdEraseWrBlkEnd      = 33 // CMD33: last block to erase
	CmdErase              = 38 // CMD38
	CmdAppCmd             = 55 // CMD55: next command is application specific
	CmdReadOCR            = 58 // CMD58

	AcmdSetWrBlkEraseCount = 23 // ACMD23: pre-erase hint for multi-block write
	AcmdSendOpCond         = 41 // ACMD41: start initialization, negotiate capacity
)

// FrameSize is the length of a command frame on the wire.
const FrameSize = 6

// Command frame fields.
const (
	FrameStart  = 0x40 // start bit clear, transmission bit set
	FrameIndex  = 0x3F // command index mask of the first byte
	FrameMarker = 0xC0 // mask selecting start and transmission bits
)

// Precomputed checksum bytes for the two commands sent while the card
// still checks CRC, and the placeholder used for all others.
const (
	ChecksumGoIdle  = 0x95 // CMD0 with argument 0
	ChecksumIfCond  = 0x87 // CMD8 with argument IfCondArgument
	ChecksumDefault = 0xFF
)

// CMD8 argument: 2.7-3.6V supply (0x1) and check pattern 0xAA.
const (
	IfCondArgument = 0x1AA
	IfCondPattern  = 0xAA
	IfCondVoltage  = 0x1
)

// ACMD41 argument bit advertising host support for high capacity.
const HCS = 1 << 30

// R1 response bits.
const (
	R1Ready          = 0x00 // no flags: card ready
	R1Idle           = 0x01 // in idle state, initialization running
	R1EraseReset     = 0x02
	R1IllegalCommand = 0x04
	R1CRCError       = 0x08
	R1EraseSeqError  = 0x10
	R1AddressError   = 0x20
	R1ParameterError = 0x40
	R1Busy           = 0x80 // start bit: no response yet
)

// Data tokens.
const (
	TokenStartBlock       = 0xFE // single-block read/write, multi-block read
	TokenMultiWriteBlock  = 0xFC // each block of a multi-block write
	TokenStopTransmission = 0xFD // ends a multi-block write
)

// Data error token bits, sent instead of a start token when a read fails.
const (
	DataErrorGeneric    = 0x01
	DataErrorCC         = 0x02
	DataErrorECC        = 0x04
	DataErrorOutOfRange = 0x08
)

// Data response token sent by the card after each written block.
const (
	DataResponseMask     = 0x1F
	DataResponseAccepted = 0x05
	DataResponseCRCError = 0x0B
	DataResponseWriteErr = 0x0D
)

// OCR bits of the first (most significant) byte.
const (
	OCRPowerUpDone = 0x80 // bit 31: initialization complete
	OCRCCS         = 0x40 // bit 30: card capacity status (block addressing)
)
