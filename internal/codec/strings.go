package codec

import (
	"bytes"
	"fmt"
)

// MaxZStringLen caps null-terminated string reads. A missing terminator in a
// corrupt file should fail fast, not scan to end of stream.
const MaxZStringLen = 1000

// MaxSizedStringLen caps length-prefixed string reads. A corrupt count field
// must not trigger a giant allocation.
const MaxSizedStringLen = 10000

// ZString is a null-terminated string, read byte by byte until the zero
// terminator.
type ZString struct{ v string }

func NewZString(v string) *ZString { return &ZString{v: v} }

func (x *ZString) Read(s *Stream) error {
	var buf []byte
	for {
		b, err := s.ReadByte()
		if err != nil {
			return err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		if len(buf) > MaxZStringLen {
			return &SizeError{What: "null-terminated string", Length: int64(len(buf)), Max: MaxZStringLen}
		}
	}
	x.v = string(buf)
	return nil
}

func (x *ZString) Write(s *Stream) error {
	if len(x.v) > MaxZStringLen {
		return &SizeError{What: "null-terminated string", Length: int64(len(x.v)), Max: MaxZStringLen}
	}
	if err := s.WriteFull([]byte(x.v)); err != nil {
		return err
	}
	return s.WriteFull([]byte{0})
}

func (x *ZString) Size() int64   { return int64(len(x.v)) + 1 }
func (x *ZString) Get() any      { return x.v }
func (x *ZString) Value() string { return x.v }
func (x *ZString) Set(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot convert %T to string", v)
	}
	x.v = str
	return nil
}

// FixedString occupies exactly n bytes on the wire: zero-padded on write,
// truncated at the first zero byte on read.
type FixedString struct {
	v string
	n int
}

func NewFixedString(n int) *FixedString { return &FixedString{n: n} }

func (x *FixedString) Read(s *Stream) error {
	buf := make([]byte, x.n)
	if err := s.ReadFull(buf); err != nil {
		return err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	x.v = string(buf)
	return nil
}

func (x *FixedString) Write(s *Stream) error {
	if len(x.v) > x.n {
		return &SizeError{What: "fixed string", Length: int64(len(x.v)), Max: int64(x.n)}
	}
	buf := make([]byte, x.n)
	copy(buf, x.v)
	return s.WriteFull(buf)
}

func (x *FixedString) Size() int64   { return int64(x.n) }
func (x *FixedString) Get() any      { return x.v }
func (x *FixedString) Value() string { return x.v }
func (x *FixedString) Set(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot convert %T to string", v)
	}
	if len(str) > x.n {
		return &SizeError{What: "fixed string", Length: int64(len(str)), Max: int64(x.n)}
	}
	x.v = str
	return nil
}

// SizedString is a 4-byte count followed by that many raw bytes. A declared
// count past the cap fails before any payload byte is consumed, so the
// stream is left just after the count field.
type SizedString struct{ v string }

func NewSizedString(v string) *SizedString { return &SizedString{v: v} }

func (x *SizedString) Read(s *Stream) error {
	n, err := s.readUint(4)
	if err != nil {
		return err
	}
	if n > MaxSizedStringLen {
		return &SizeError{What: "sized string", Length: int64(n), Max: MaxSizedStringLen}
	}
	buf := make([]byte, n)
	if err := s.ReadFull(buf); err != nil {
		return err
	}
	x.v = string(buf)
	return nil
}

func (x *SizedString) Write(s *Stream) error {
	if len(x.v) > MaxSizedStringLen {
		return &SizeError{What: "sized string", Length: int64(len(x.v)), Max: MaxSizedStringLen}
	}
	if err := s.writeUint(4, uint64(len(x.v))); err != nil {
		return err
	}
	return s.WriteFull([]byte(x.v))
}

func (x *SizedString) Size() int64   { return 4 + int64(len(x.v)) }
func (x *SizedString) Get() any      { return x.v }
func (x *SizedString) Value() string { return x.v }
func (x *SizedString) Set(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot convert %T to string", v)
	}
	if len(str) > MaxSizedStringLen {
		return &SizeError{What: "sized string", Length: int64(len(str)), Max: MaxSizedStringLen}
	}
	x.v = str
	return nil
}

// LineString is a newline-terminated string, used by the human-readable
// header lines of the NIF family. The terminator is consumed on read and
// written back on write; it is not part of the value.
type LineString struct{ v string }

func NewLineString(v string) *LineString { return &LineString{v: v} }

func (x *LineString) Read(s *Stream) error {
	var buf []byte
	for {
		b, err := s.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			break
		}
		buf = append(buf, b)
		if len(buf) > MaxZStringLen {
			return &SizeError{What: "header line", Length: int64(len(buf)), Max: MaxZStringLen}
		}
	}
	x.v = string(buf)
	return nil
}

func (x *LineString) Write(s *Stream) error {
	if err := s.WriteFull([]byte(x.v)); err != nil {
		return err
	}
	return s.WriteFull([]byte{'\n'})
}

func (x *LineString) Size() int64   { return int64(len(x.v)) + 1 }
func (x *LineString) Get() any      { return x.v }
func (x *LineString) Value() string { return x.v }
func (x *LineString) Set(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot convert %T to string", v)
	}
	x.v = str
	return nil
}
