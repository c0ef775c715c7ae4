package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Reader decodes frames from a connection. It is not safe for concurrent
// use; each connection has exactly one read loop.
type Reader struct {
	br       *bufio.Reader
	maxBytes int
}

// NewReader wraps r with a buffered frame reader. maxBytes bounds the
// declared payload length of every frame (MaxFrameV1, MaxPayloadUDS, or
// MaxPayloadTCP depending on profile and transport).
func NewReader(r io.Reader, maxBytes int) *Reader {
	return &Reader{br: bufio.NewReader(r), maxBytes: maxBytes}
}

// readLength reads the 4-byte big-endian length prefix.
func (r *Reader) readLength() (uint32, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.br, prefix[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(prefix[:]), nil
}

// ReadFrameV1 reads one v1 frame and returns its JSON payload. A declared
// length of zero or beyond the limit is a protocol error; the caller must
// terminate the connection.
func (r *Reader) ReadFrameV1() ([]byte, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrZeroLength
	}
	if int(n) > r.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, r.maxBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("wire: truncated frame: %w", err)
	}
	return payload, nil
}

// ReadFrameV2 reads one v2 frame and returns its type tag and payload.
// The declared length includes the tag byte, so the payload is length-1
// bytes and may be empty (Ping and Pong carry none).
func (r *Reader) ReadFrameV2() (byte, []byte, error) {
	n, err := r.readLength()
	if err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, ErrZeroLength
	}
	if int(n)-1 > r.maxBytes {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n-1, r.maxBytes)
	}
	tag, err := r.br.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("wire: truncated frame: %w", err)
	}
	payload := make([]byte, n-1)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("wire: truncated frame: %w", err)
	}
	return tag, payload, nil
}

// Writer encodes frames onto a connection. Safe for concurrent use: the
// keep-alive loop and the reply path share one Writer per connection.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w with a frame writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrameV1 writes one v1 frame: length prefix, then the payload.
func (w *Writer) WriteFrameV1(payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(buf)
	return err
}

// WriteFrameV2 writes one v2 frame: length prefix (payload length plus
// the tag byte), tag, payload.
func (w *Writer) WriteFrameV2(tag byte, payload []byte) error {
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)+1))
	buf[4] = tag
	copy(buf[5:], payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(buf)
	return err
}
