package codec

import (
	"fmt"
	"math"
	"strconv"
)

// quietNaN is the bit pattern written when a value overflows float32. Batch
// conversions tolerate one bad float rather than aborting a whole write; the
// pattern matches what earlier tooling emitted, keeping output byte-stable.
const quietNaN uint32 = 0x7FC00000

// Float32 is a 4-byte IEEE 754 float. The value is held as float64 so that
// an out-of-range Set survives until write time, where it degrades to a
// quiet NaN instead of failing.
type Float32 struct{ v float64 }

func NewFloat32(v float64) *Float32 { return &Float32{v: v} }

func (x *Float32) Read(s *Stream) error {
	n, err := s.readUint(4)
	if err != nil {
		return err
	}
	x.v = float64(math.Float32frombits(uint32(n)))
	return nil
}

func (x *Float32) Write(s *Stream) error {
	f := float32(x.v)
	if math.IsInf(float64(f), 0) && !math.IsInf(x.v, 0) {
		// Overflowed the 32-bit representation.
		return s.writeUint(4, uint64(quietNaN))
	}
	return s.writeUint(4, uint64(math.Float32bits(f)))
}

func (x *Float32) Size() int64    { return 4 }
func (x *Float32) Get() any       { return x.v }
func (x *Float32) Value() float64 { return x.v }

func (x *Float32) Set(v any) error {
	switch f := v.(type) {
	case float64:
		x.v = f
		return nil
	case float32:
		x.v = float64(f)
		return nil
	case string:
		parsed, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("cannot convert %q to float: %w", f, err)
		}
		x.v = parsed
		return nil
	}
	n, err := coerceInt(v)
	if err != nil {
		return fmt.Errorf("cannot convert %T to float", v)
	}
	x.v = float64(n)
	return nil
}
