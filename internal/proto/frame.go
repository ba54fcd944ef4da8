// Package proto implements the wire framing and package codec described in
// the connection protocol: a little-endian, length-prefixed frame carrying a
// typed package (command, flags, correlation id, optional credentials, and a
// payload).
package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame this codec will decode, inclusive of the
// 4-byte length prefix. A peer that sends a larger frame has violated the
// protocol and its connection must be torn down.
const MaxFrameSize = 64 * 1024 * 1024

// LengthPrefixSize is the width of the frame's own length prefix.
const LengthPrefixSize = 4

// ErrFrameTooLarge is returned when a decoded frame exceeds MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("proto: frame exceeds max size of %d bytes", MaxFrameSize)

// ReadFrame reads one length-prefixed frame from r and returns its body
// (the bytes following the 4-byte length prefix). The length prefix is
// little-endian and counts its own 4 bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	total := binary.LittleEndian.Uint32(lenBuf[:])
	if total > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	if total < LengthPrefixSize {
		return nil, fmt.Errorf("proto: frame length %d smaller than prefix", total)
	}

	body := make([]byte, total-LengthPrefixSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes body prefixed with its little-endian, self-inclusive
// 4-byte length.
func WriteFrame(w io.Writer, body []byte) error {
	total := uint64(len(body)) + LengthPrefixSize
	if total > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var lenBuf [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(total))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
