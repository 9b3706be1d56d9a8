package record

import (
	"github.com/quellen/fileform/internal/codec"
)

// Context carries the file-level version state every field filter and bool
// width decision keys off. It is owned by the format's Data root and shared
// by pointer with every record in the tree, so a version change between
// construction and read is seen everywhere.
type Context struct {
	Version     uint32
	UserVersion uint32
}

// Value is one node of a record tree: a primitive, enum, bitfield, record
// or array.
type Value interface {
	Read(s *codec.Stream) error
	Write(s *codec.Stream) error
	Size() (int64, error)
}

// argSetter is implemented by values that accept a runtime argument from
// their parent's field descriptor.
type argSetter interface {
	setArg(int64)
}

// prim adapts a codec primitive to the Value contract.
type prim struct {
	v codec.Value
}

func (p *prim) Read(s *codec.Stream) error  { return p.v.Read(s) }
func (p *prim) Write(s *codec.Stream) error { return p.v.Write(s) }
func (p *prim) Size() (int64, error)        { return p.v.Size(), nil }

// Codec returns the underlying primitive.
func (p *prim) Codec() codec.Value { return p.v }
