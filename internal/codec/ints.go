package codec

import (
	"fmt"
	"math"
	"strconv"
)

// Value is the contract every primitive wire type satisfies: it can read and
// write itself on a Stream, report its wire size, and expose its native value
// through Get/Set. Get returns int64, uint64, bool, float64, string or []byte
// depending on the concrete type, matching what the expression evaluator
// accepts as operands.
type Value interface {
	Read(s *Stream) error
	Write(s *Stream) error
	Size() int64
	Get() any
	Set(v any) error
}

// coerceInt converts the accepted Set forms (native integers, booleans, and
// decimal or 0x-prefixed strings) to int64 before range checking.
func coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d too large", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(x, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func (s *Stream) readUint(n int) (uint64, error) {
	var buf [8]byte
	if err := s.ReadFull(buf[:n]); err != nil {
		return 0, err
	}
	switch n {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(s.order.Uint16(buf[:2])), nil
	case 4:
		return uint64(s.order.Uint32(buf[:4])), nil
	case 8:
		return s.order.Uint64(buf[:8]), nil
	}
	return 0, fmt.Errorf("unsupported integer width %d", n)
}

func (s *Stream) writeUint(n int, v uint64) error {
	var buf [8]byte
	switch n {
	case 1:
		buf[0] = byte(v)
	case 2:
		s.order.PutUint16(buf[:2], uint16(v))
	case 4:
		s.order.PutUint32(buf[:4], uint32(v))
	case 8:
		s.order.PutUint64(buf[:8], v)
	default:
		return fmt.Errorf("unsupported integer width %d", n)
	}
	return s.WriteFull(buf[:n])
}

// UInt8 is an unsigned 8-bit integer.
type UInt8 struct{ v uint8 }

func NewUInt8(v uint8) *UInt8 { return &UInt8{v: v} }

func (x *UInt8) Read(s *Stream) error {
	n, err := s.readUint(1)
	x.v = uint8(n)
	return err
}
func (x *UInt8) Write(s *Stream) error { return s.writeUint(1, uint64(x.v)) }
func (x *UInt8) Size() int64           { return 1 }
func (x *UInt8) Get() any              { return uint64(x.v) }
func (x *UInt8) Value() uint8          { return x.v }
func (x *UInt8) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < 0 || n > math.MaxUint8 {
		return &RangeError{Type: "uint8", Value: v}
	}
	x.v = uint8(n)
	return nil
}

// UInt16 is an unsigned 16-bit integer.
type UInt16 struct{ v uint16 }

func NewUInt16(v uint16) *UInt16 { return &UInt16{v: v} }

func (x *UInt16) Read(s *Stream) error {
	n, err := s.readUint(2)
	x.v = uint16(n)
	return err
}
func (x *UInt16) Write(s *Stream) error { return s.writeUint(2, uint64(x.v)) }
func (x *UInt16) Size() int64           { return 2 }
func (x *UInt16) Get() any              { return uint64(x.v) }
func (x *UInt16) Value() uint16         { return x.v }
func (x *UInt16) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < 0 || n > math.MaxUint16 {
		return &RangeError{Type: "uint16", Value: v}
	}
	x.v = uint16(n)
	return nil
}

// UInt32 is an unsigned 32-bit integer, the workhorse of every header.
type UInt32 struct{ v uint32 }

func NewUInt32(v uint32) *UInt32 { return &UInt32{v: v} }

func (x *UInt32) Read(s *Stream) error {
	n, err := s.readUint(4)
	x.v = uint32(n)
	return err
}
func (x *UInt32) Write(s *Stream) error { return s.writeUint(4, uint64(x.v)) }
func (x *UInt32) Size() int64           { return 4 }
func (x *UInt32) Get() any              { return uint64(x.v) }
func (x *UInt32) Value() uint32         { return x.v }
func (x *UInt32) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < 0 || n > math.MaxUint32 {
		return &RangeError{Type: "uint32", Value: v}
	}
	x.v = uint32(n)
	return nil
}

// UInt64 is an unsigned 64-bit integer.
type UInt64 struct{ v uint64 }

func NewUInt64(v uint64) *UInt64 { return &UInt64{v: v} }

func (x *UInt64) Read(s *Stream) error {
	n, err := s.readUint(8)
	x.v = n
	return err
}
func (x *UInt64) Write(s *Stream) error { return s.writeUint(8, x.v) }
func (x *UInt64) Size() int64           { return 8 }
func (x *UInt64) Get() any              { return x.v }
func (x *UInt64) Value() uint64         { return x.v }
func (x *UInt64) Set(v any) error {
	if u, ok := v.(uint64); ok {
		x.v = u
		return nil
	}
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < 0 {
		return &RangeError{Type: "uint64", Value: v}
	}
	x.v = uint64(n)
	return nil
}

// Int8 is a signed 8-bit integer.
type Int8 struct{ v int8 }

func NewInt8(v int8) *Int8 { return &Int8{v: v} }

func (x *Int8) Read(s *Stream) error {
	n, err := s.readUint(1)
	x.v = int8(n)
	return err
}
func (x *Int8) Write(s *Stream) error { return s.writeUint(1, uint64(uint8(x.v))) }
func (x *Int8) Size() int64           { return 1 }
func (x *Int8) Get() any              { return int64(x.v) }
func (x *Int8) Value() int8           { return x.v }
func (x *Int8) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < math.MinInt8 || n > math.MaxInt8 {
		return &RangeError{Type: "int8", Value: v}
	}
	x.v = int8(n)
	return nil
}

// Int16 is a signed 16-bit integer.
type Int16 struct{ v int16 }

func NewInt16(v int16) *Int16 { return &Int16{v: v} }

func (x *Int16) Read(s *Stream) error {
	n, err := s.readUint(2)
	x.v = int16(n)
	return err
}
func (x *Int16) Write(s *Stream) error { return s.writeUint(2, uint64(uint16(x.v))) }
func (x *Int16) Size() int64           { return 2 }
func (x *Int16) Get() any              { return int64(x.v) }
func (x *Int16) Value() int16          { return x.v }
func (x *Int16) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < math.MinInt16 || n > math.MaxInt16 {
		return &RangeError{Type: "int16", Value: v}
	}
	x.v = int16(n)
	return nil
}

// Int32 is a signed 32-bit integer.
type Int32 struct{ v int32 }

func NewInt32(v int32) *Int32 { return &Int32{v: v} }

func (x *Int32) Read(s *Stream) error {
	n, err := s.readUint(4)
	x.v = int32(n)
	return err
}
func (x *Int32) Write(s *Stream) error { return s.writeUint(4, uint64(uint32(x.v))) }
func (x *Int32) Size() int64           { return 4 }
func (x *Int32) Get() any              { return int64(x.v) }
func (x *Int32) Value() int32          { return x.v }
func (x *Int32) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return &RangeError{Type: "int32", Value: v}
	}
	x.v = int32(n)
	return nil
}

// Int64 is a signed 64-bit integer.
type Int64 struct{ v int64 }

func NewInt64(v int64) *Int64 { return &Int64{v: v} }

func (x *Int64) Read(s *Stream) error {
	n, err := s.readUint(8)
	x.v = int64(n)
	return err
}
func (x *Int64) Write(s *Stream) error { return s.writeUint(8, uint64(x.v)) }
func (x *Int64) Size() int64           { return 8 }
func (x *Int64) Get() any              { return x.v }
func (x *Int64) Value() int64          { return x.v }
func (x *Int64) Set(v any) error {
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	x.v = n
	return nil
}

// Bool is a boolean stored on the wire as one byte, or as four bytes in the
// older NIF versions that predate the narrow encoding. Any non-zero wire
// value reads as true; writes use 1 and 0.
type Bool struct {
	v    bool
	wide bool
}

// NewBool creates a Bool. wide selects the legacy 4-byte encoding.
func NewBool(wide bool) *Bool { return &Bool{wide: wide} }

func (x *Bool) width() int {
	if x.wide {
		return 4
	}
	return 1
}

func (x *Bool) Read(s *Stream) error {
	n, err := s.readUint(x.width())
	x.v = n != 0
	return err
}

func (x *Bool) Write(s *Stream) error {
	var n uint64
	if x.v {
		n = 1
	}
	return s.writeUint(x.width(), n)
}

func (x *Bool) Size() int64  { return int64(x.width()) }
func (x *Bool) Get() any     { return x.v }
func (x *Bool) Value() bool  { return x.v }
func (x *Bool) Set(v any) error {
	if b, ok := v.(bool); ok {
		x.v = b
		return nil
	}
	n, err := coerceInt(v)
	if err != nil {
		return err
	}
	x.v = n != 0
	return nil
}
