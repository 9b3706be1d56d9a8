package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream wraps the file being parsed or serialized together with its byte
// order. A Stream is either readable or writable depending on how it was
// constructed; formats that round-trip use one Stream per direction. The
// byte order defaults to little endian, which every supported format uses
// outside of big-endian console NIF files.
type Stream struct {
	r     io.ReadSeeker
	w     io.Writer
	order binary.ByteOrder
}

// NewReader creates a readable Stream. Seeking is required: inspect needs to
// restore the cursor, and several formats locate tables by absolute offset.
func NewReader(r io.ReadSeeker) *Stream {
	return &Stream{r: r, order: binary.LittleEndian}
}

// NewWriter creates a writable Stream.
func NewWriter(w io.Writer) *Stream {
	return &Stream{w: w, order: binary.LittleEndian}
}

// Order returns the current byte order.
func (s *Stream) Order() binary.ByteOrder { return s.order }

// SetOrder switches the byte order. Called by format headers that carry an
// endianness flag (NIF) after the flag has been read.
func (s *Stream) SetOrder(order binary.ByteOrder) { s.order = order }

// ReadFull fills p or fails. A short read surfaces as io.ErrUnexpectedEOF so
// callers can distinguish truncation from other I/O failures.
func (s *Stream) ReadFull(p []byte) error {
	if s.r == nil {
		return fmt.Errorf("stream is not readable")
	}
	if _, err := io.ReadFull(s.r, p); err != nil {
		if err == io.EOF && len(p) > 0 {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// ReadByte reads a single byte.
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	if err := s.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadRemaining consumes and returns everything left on the stream.
func (s *Stream) ReadRemaining() ([]byte, error) {
	if s.r == nil {
		return nil, fmt.Errorf("stream is not readable")
	}
	return io.ReadAll(s.r)
}

// WriteFull writes all of p or fails.
func (s *Stream) WriteFull(p []byte) error {
	if s.w == nil {
		return fmt.Errorf("stream is not writable")
	}
	n, err := s.w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Pos returns the current read position.
func (s *Stream) Pos() (int64, error) {
	if s.r == nil {
		return 0, fmt.Errorf("stream is not seekable")
	}
	return s.r.Seek(0, io.SeekCurrent)
}

// Seek sets the absolute read position.
func (s *Stream) Seek(pos int64) error {
	if s.r == nil {
		return fmt.Errorf("stream is not seekable")
	}
	_, err := s.r.Seek(pos, io.SeekStart)
	return err
}

// Len returns the total stream length, preserving the current position.
func (s *Stream) Len() (int64, error) {
	pos, err := s.Pos()
	if err != nil {
		return 0, err
	}
	end, err := s.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.r.Seek(pos, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// PreservePos runs fn and restores the read position afterward, on success
// and on failure alike. Inspect is built on this: classifying a stream must
// never move its cursor.
func (s *Stream) PreservePos(fn func() error) error {
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	fnErr := fn()
	if _, err := s.r.Seek(pos, io.SeekStart); err != nil {
		if fnErr != nil {
			return fnErr
		}
		return err
	}
	return fnErr
}
