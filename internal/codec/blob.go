package codec

import "fmt"

// Blob is an undecoded byte payload that consumes everything left on the
// stream. It backs trailing pixel and texture data whose size is not carried
// anywhere else in the file.
type Blob struct{ v []byte }

func NewBlob(v []byte) *Blob { return &Blob{v: v} }

func (x *Blob) Read(s *Stream) error {
	data, err := s.ReadRemaining()
	if err != nil {
		return err
	}
	x.v = data
	return nil
}

func (x *Blob) Write(s *Stream) error { return s.WriteFull(x.v) }
func (x *Blob) Size() int64           { return int64(len(x.v)) }
func (x *Blob) Get() any              { return x.v }
func (x *Blob) Value() []byte         { return x.v }
func (x *Blob) Set(v any) error {
	b, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("cannot convert %T to bytes", v)
	}
	x.v = b
	return nil
}

// Bytes is a fixed-size undecoded byte run, for payloads whose size is known
// from a sibling field.
type Bytes struct {
	v []byte
	n int
}

func NewBytes(n int) *Bytes { return &Bytes{n: n} }

func (x *Bytes) Read(s *Stream) error {
	buf := make([]byte, x.n)
	if err := s.ReadFull(buf); err != nil {
		return err
	}
	x.v = buf
	return nil
}

func (x *Bytes) Write(s *Stream) error {
	if len(x.v) != x.n {
		return &SizeError{What: "byte run", Length: int64(len(x.v)), Max: int64(x.n)}
	}
	return s.WriteFull(x.v)
}

func (x *Bytes) Size() int64   { return int64(x.n) }
func (x *Bytes) Get() any      { return x.v }
func (x *Bytes) Value() []byte { return x.v }
func (x *Bytes) Set(v any) error {
	b, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("cannot convert %T to bytes", v)
	}
	x.v = b
	return nil
}
