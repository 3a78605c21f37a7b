// Package protocol implements the binary wire format of the chat service:
// one frame per message, `[1 byte type][4 byte big-endian length][payload]`,
// with length-prefixed UTF-8 strings inside payloads.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Message type codes.
const (
	TypeLogin         byte = 0x01
	TypeLoginOK       byte = 0x02
	TypeLoginErr      byte = 0x03
	TypeUserConnected byte = 0x04

	TypeJoin       byte = 0x10
	TypeJoinOK     byte = 0x11
	TypeLeave      byte = 0x12
	TypeRoomUpdate byte = 0x13

	TypeMsg          byte = 0x20
	TypeMsgBroadcast byte = 0x21

	TypeError byte = 0x30

	TypeFileOffer   byte = 0x40
	TypeFileRequest byte = 0x41
	TypeFileAccept  byte = 0x42
	TypeFileReject  byte = 0x43
	TypeFileStart   byte = 0x44
	TypeFileCancel  byte = 0x45

	TypePing byte = 0xF0
	TypePong byte = 0xF1
)

// Error codes carried in the first payload byte of a TypeError frame.
const (
	ErrCodeNotAuthenticated byte = 1
	ErrCodeNotInRoom        byte = 2
	ErrCodeEmptyMessage     byte = 3
	ErrCodeMessageTooLong   byte = 4
	ErrCodeInvalidRoomName  byte = 5
	ErrCodeBusy             byte = 6
	ErrCodeActionBlocked    byte = 7
	ErrCodeActionNotAllowed byte = 8
)

const headerSize = 5

var (
	ErrShortPayload  = errors.New("protocol: payload shorter than declared field")
	ErrFrameTooLarge = errors.New("protocol: declared payload length exceeds limit")
)

// Frame is one decoded protocol message.
type Frame struct {
	Type    byte
	Payload []byte
}

// Encode serializes the frame into wire bytes.
func (f Frame) Encode() []byte {
	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = f.Type
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.Payload)))
	copy(buf[headerSize:], f.Payload)
	return buf
}

// ReadFrame reads exactly one frame, looping until the full header and the
// declared payload length are consumed. maxPayload caps the declared length;
// zero means no cap.
func ReadFrame(r io.Reader, maxPayload uint32) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(hdr[1:5])
	if maxPayload > 0 && length > maxPayload {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Type: hdr[0], Payload: payload}, nil
}

// WriteFrame writes one encoded frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Encode())
	return err
}

// AppendString appends a `[2 byte big-endian length][UTF-8 bytes]` field.
func AppendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// AppendUint32 appends a 4-byte big-endian integer field.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

// ReadString consumes one length-prefixed string from b and returns the rest.
func ReadString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, ErrShortPayload
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	if len(b) < 2+n {
		return "", nil, ErrShortPayload
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}

// ReadUint32 consumes one 4-byte big-endian integer from b and returns the rest.
func ReadUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrShortPayload
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

// String builds a single-string payload.
func String(s string) []byte {
	return AppendString(nil, s)
}

// Strings builds a payload of consecutive string fields.
func Strings(ss ...string) []byte {
	var b []byte
	for _, s := range ss {
		b = AppendString(b, s)
	}
	return b
}

// ErrorPayload builds a TypeError payload: 1-byte code + reason string.
func ErrorPayload(code byte, msg string) []byte {
	return AppendString([]byte{code}, msg)
}
