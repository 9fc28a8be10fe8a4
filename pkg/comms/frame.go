package comms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultMaxFrameSize bounds a single frame payload.
	DefaultMaxFrameSize = 1 << 20

	headerSize = 4
)

// WriteFrame writes payload behind a 4-byte big-endian length in a single
// Write call.
func WriteFrame(w io.Writer, payload []byte, maxSize int) error {
	if maxSize > 0 && len(payload) > maxSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	_, err := w.Write(frame(payload))
	return err
}

// ReadFrame reads one frame written by WriteFrame. A stream that ends
// before a full frame is read reports ErrDisconnected.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, disconnected(err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && n > uint32(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes announced", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, disconnected(err)
	}
	return payload, nil
}

func frame(payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return buf
}

// unframe checks the length prefix of a frame received whole.
func unframe(buf []byte, maxSize int) ([]byte, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: short frame of %d bytes", ErrMalformedMessage, len(buf))
	}
	n := binary.BigEndian.Uint32(buf)
	if maxSize > 0 && n > uint32(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes announced", ErrFrameTooLarge, n)
	}
	if int(n) != len(buf)-headerSize {
		return nil, fmt.Errorf("%w: frame announces %d bytes, carries %d", ErrMalformedMessage, n, len(buf)-headerSize)
	}
	return buf[headerSize:], nil
}

func disconnected(err error) error {
	if errors.Is(err, ErrDisconnected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}
