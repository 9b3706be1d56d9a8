package codec

import (
	"errors"
	"fmt"
)

// RangeError reports a Set call with a value outside the type's
// representable range.
type RangeError struct {
	Type  string
	Value any
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %v out of range for %s", e.Value, e.Type)
}

// SizeError reports a length that exceeds a sanity ceiling: an over-long
// string, or an array length field that would cause runaway allocation.
// Always fatal for the read or write that hit it.
type SizeError struct {
	What   string
	Length int64
	Max    int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s length %d exceeds maximum %d", e.What, e.Length, e.Max)
}

// IsSizeError reports whether err is or wraps a SizeError.
func IsSizeError(err error) bool {
	var se *SizeError
	return errors.As(err, &se)
}
