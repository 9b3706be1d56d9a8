package compiler

import (
	"fmt"

	"github.com/quellen/fileform/internal/codec"
)

// newBasicFactory maps a description's primitive kind onto a codec
// constructor. size is only meaningful for the fixed-size kinds; wideUntil
// is only meaningful for bool, where versions at or below it use the legacy
// 4-byte encoding.
func newBasicFactory(kind string, size int, wideUntil uint32) (func(uint32) codec.Value, error) {
	switch kind {
	case "uint8":
		return func(uint32) codec.Value { return &codec.UInt8{} }, nil
	case "uint16":
		return func(uint32) codec.Value { return &codec.UInt16{} }, nil
	case "uint32":
		return func(uint32) codec.Value { return &codec.UInt32{} }, nil
	case "uint64":
		return func(uint32) codec.Value { return &codec.UInt64{} }, nil
	case "int8":
		return func(uint32) codec.Value { return &codec.Int8{} }, nil
	case "int16":
		return func(uint32) codec.Value { return &codec.Int16{} }, nil
	case "int32":
		return func(uint32) codec.Value { return &codec.Int32{} }, nil
	case "int64":
		return func(uint32) codec.Value { return &codec.Int64{} }, nil
	case "float32":
		return func(uint32) codec.Value { return &codec.Float32{} }, nil
	case "bool":
		until := wideUntil
		return func(version uint32) codec.Value {
			return codec.NewBool(until != 0 && version <= until)
		}, nil
	case "zstring":
		return func(uint32) codec.Value { return &codec.ZString{} }, nil
	case "sizedstring":
		return func(uint32) codec.Value { return &codec.SizedString{} }, nil
	case "linestring":
		return func(uint32) codec.Value { return &codec.LineString{} }, nil
	case "blob":
		return func(uint32) codec.Value { return &codec.Blob{} }, nil
	case "chars":
		if size <= 0 {
			return nil, fmt.Errorf("chars basic needs a positive size")
		}
		return func(uint32) codec.Value { return codec.NewFixedString(size) }, nil
	case "bytes":
		if size <= 0 {
			return nil, fmt.Errorf("bytes basic needs a positive size")
		}
		return func(uint32) codec.Value { return codec.NewBytes(size) }, nil
	default:
		return nil, fmt.Errorf("unknown primitive kind %q", kind)
	}
}

// integralKinds marks the kinds whose values can appear in expressions and
// back enums and bitfields.
var integralKinds = map[string]bool{
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"int8": true, "int16": true, "int32": true, "int64": true,
	"bool": true,
}
