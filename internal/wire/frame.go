// Package wire defines the Pharos on-air format.
//
// Every frame occupies exactly FrameSize bytes regardless of payload length,
// matching the link layer's fixed maximum frame size. The layout is packed
// little-endian with no padding:
//
//	Type(1) | Seq(4) | Timestamp(8) | PayloadLen(2) | CRC32(4) | Payload(234)
//
// The CRC-32 covers every frame byte except the four CRC bytes themselves,
// so a single-bit flip anywhere else in the frame is detected.
package wire

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"
)

const (
	FrameSize  = 253
	HeaderSize = 19 // Type + Seq + Timestamp + PayloadLen + CRC
	MaxPayload = FrameSize - HeaderSize

	crcOffset = 15 // byte offset of the CRC field within the frame
)

// Type identifies the protocol role of a frame.
type Type byte

const (
	TypeDiscoveryRequest  Type = 0x01
	TypeDiscoveryResponse Type = 0x02
	TypePing              Type = 0x10
	TypePong              Type = 0x11
	TypeData              Type = 0x20
	TypeTestStart         Type = 0x30
	TypeTestStop          Type = 0x31
	TypeTestData          Type = 0x32
)

func (t Type) String() string {
	switch t {
	case TypeDiscoveryRequest:
		return "discovery-request"
	case TypeDiscoveryResponse:
		return "discovery-response"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeData:
		return "data"
	case TypeTestStart:
		return "test-start"
	case TypeTestStop:
		return "test-stop"
	case TypeTestData:
		return "test-data"
	}
	return "unknown"
}

var (
	ErrPayloadTooLarge  = errors.New("wire: payload exceeds MaxPayload")
	ErrFrameTooShort    = errors.New("wire: frame too short")
	ErrChecksumMismatch = errors.New("wire: checksum mismatch")
)

// Frame is one fixed-layout unit of radio traffic.
type Frame struct {
	Type       Type
	Seq        uint32
	Timestamp  uint64 // sender clock, microseconds; not synchronized across nodes
	PayloadLen uint16
	CRC        uint32 // decoded frames only; Encode computes it
	Payload    [MaxPayload]byte
}

// NewFrame builds a frame stamped with the current time.
func NewFrame(typ Type, seq uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxPayload {
		return Frame{}, ErrPayloadTooLarge
	}
	f := Frame{
		Type:       typ,
		Seq:        seq,
		Timestamp:  uint64(time.Now().UnixMicro()),
		PayloadLen: uint16(len(payload)),
	}
	copy(f.Payload[:], payload)
	return f, nil
}

// PayloadBytes returns the meaningful payload bytes (not the trailing zeros).
func (f *Frame) PayloadBytes() []byte {
	return f.Payload[:f.PayloadLen]
}

// Encode serialises f into exactly FrameSize bytes and stamps the checksum.
func (f *Frame) Encode() [FrameSize]byte {
	var buf [FrameSize]byte
	buf[0] = byte(f.Type)
	binary.LittleEndian.PutUint32(buf[1:5], f.Seq)
	binary.LittleEndian.PutUint64(buf[5:13], f.Timestamp)
	binary.LittleEndian.PutUint16(buf[13:15], f.PayloadLen)
	copy(buf[HeaderSize:], f.Payload[:])
	binary.LittleEndian.PutUint32(buf[crcOffset:crcOffset+4], checksum(buf[:]))
	return buf
}

// Decode parses and validates a received frame. Buffers shorter than
// HeaderSize are rejected outright and never parsed; a checksum mismatch is
// a hard rejection with no partial acceptance.
func Decode(b []byte) (Frame, error) {
	if len(b) < FrameSize {
		return Frame{}, ErrFrameTooShort
	}
	b = b[:FrameSize]

	var f Frame
	f.Type = Type(b[0])
	f.Seq = binary.LittleEndian.Uint32(b[1:5])
	f.Timestamp = binary.LittleEndian.Uint64(b[5:13])
	f.PayloadLen = binary.LittleEndian.Uint16(b[13:15])
	f.CRC = binary.LittleEndian.Uint32(b[crcOffset : crcOffset+4])
	if checksum(b) != f.CRC {
		return Frame{}, ErrChecksumMismatch
	}
	// A corrupt length cannot survive the CRC; this only rejects frames
	// deliberately crafted with a valid checksum over an oversized length.
	if int(f.PayloadLen) > MaxPayload {
		return Frame{}, ErrPayloadTooLarge
	}
	copy(f.Payload[:], b[HeaderSize:])
	return f, nil
}

// checksum computes the frame CRC-32: every byte except the CRC field itself.
func checksum(b []byte) uint32 {
	c := crc32.Update(0, crc32.IEEETable, b[:crcOffset])
	return crc32.Update(c, crc32.IEEETable, b[crcOffset+4:])
}
