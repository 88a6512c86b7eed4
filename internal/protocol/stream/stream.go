// Package stream implements the framing shared by the update stream server
// and its consumers.
//
// A message is one or more fragments. Each fragment starts with a 4-byte
// big-endian header: the top bit marks the last fragment, the low 31 bits
// carry the fragment length. Every update currently fits a single fragment,
// so writers always set the bit; readers still honor multi-fragment
// messages for forward compatibility.
//
// The first message on a connection is the consumer's hello: the last
// sequence number it has applied, as 8 big-endian bytes. Zero means a
// fresh replica. Everything after that flows server to consumer: one
// XDR-encoded update per message.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	lastFragmentBit = 0x80000000

	// MaxMessageSize caps a message against corrupt length headers.
	MaxMessageSize = 64 << 20
)

// WriteMessage sends one payload as a single last-fragment frame.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(payload))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadMessage reads one complete message, concatenating fragments until the
// last-fragment bit is seen.
func ReadMessage(r io.Reader) ([]byte, error) {
	var payload []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}

		raw := binary.BigEndian.Uint32(header[:])
		last := raw&lastFragmentBit != 0
		length := int(raw &^ uint32(lastFragmentBit))
		if length > MaxMessageSize || len(payload)+length > MaxMessageSize {
			return nil, fmt.Errorf("message too large: %d bytes", length)
		}

		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
		payload = append(payload, fragment...)

		if last {
			return payload, nil
		}
	}
}

// WriteHello sends the consumer's resume position.
func WriteHello(w io.Writer, lastApplied uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], lastApplied)
	return WriteMessage(w, buf[:])
}

// ReadHello reads the consumer's resume position.
func ReadHello(r io.Reader) (uint64, error) {
	payload, err := ReadMessage(r)
	if err != nil {
		return 0, err
	}
	if len(payload) != 8 {
		return 0, fmt.Errorf("hello message must be 8 bytes, got %d", len(payload))
	}
	return binary.BigEndian.Uint64(payload), nil
}
