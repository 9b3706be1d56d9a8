package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerOn(data []byte) *Stream {
	return NewReader(bytes.NewReader(data))
}

func TestIntRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		set   any
		wire  []byte
	}{
		{"uint8", &UInt8{}, 0xAB, []byte{0xAB}},
		{"uint16", &UInt16{}, 0xBEEF, []byte{0xEF, 0xBE}},
		{"uint32", &UInt32{}, uint32(0x14000005), []byte{0x05, 0x00, 0x00, 0x14}},
		{"uint64", &UInt64{}, uint64(0x1122334455667788), []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
		{"int8", &Int8{}, -2, []byte{0xFE}},
		{"int16", &Int16{}, -2, []byte{0xFE, 0xFF}},
		{"int32", &Int32{}, -2, []byte{0xFE, 0xFF, 0xFF, 0xFF}},
		{"int64", &Int64{}, int64(-2), []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.value.Set(tt.set))

			var out bytes.Buffer
			require.NoError(t, tt.value.Write(NewWriter(&out)))
			assert.Equal(t, tt.wire, out.Bytes())
			assert.Equal(t, int64(len(tt.wire)), tt.value.Size())

			require.NoError(t, tt.value.Read(readerOn(tt.wire)))
			var out2 bytes.Buffer
			require.NoError(t, tt.value.Write(NewWriter(&out2)))
			assert.Equal(t, tt.wire, out2.Bytes())
		})
	}
}

func TestIntRangeChecks(t *testing.T) {
	var u8 UInt8
	err := u8.Set(256)
	var re *RangeError
	require.ErrorAs(t, err, &re)
	require.ErrorAs(t, u8.Set(-1), &re)

	var i16 Int16
	require.ErrorAs(t, i16.Set(40000), &re)

	// String forms convert before range checking.
	require.NoError(t, u8.Set("0xFF"))
	assert.Equal(t, uint8(0xFF), u8.Value())
	require.NoError(t, i16.Set("-12"))
	assert.Equal(t, int16(-12), i16.Value())
	require.ErrorAs(t, u8.Set("0x100"), &re)
}

func TestBigEndianOrder(t *testing.T) {
	s := readerOn([]byte{0x00, 0x00, 0x00, 0x2A})
	s.SetOrder(binary.BigEndian)
	var u UInt32
	require.NoError(t, u.Read(s))
	assert.Equal(t, uint32(42), u.Value())
}

func TestFloatOverflowWritesQuietNaN(t *testing.T) {
	f := NewFloat32(1e300) // far beyond float32 range

	var out bytes.Buffer
	require.NoError(t, f.Write(NewWriter(&out)))
	require.Len(t, out.Bytes(), 4)
	bits := binary.LittleEndian.Uint32(out.Bytes())
	assert.Equal(t, quietNaN, bits)
	assert.True(t, math.IsNaN(float64(math.Float32frombits(bits))))

	// A genuine infinity passes through unchanged.
	inf := NewFloat32(math.Inf(1))
	out.Reset()
	require.NoError(t, inf.Write(NewWriter(&out)))
	assert.True(t, math.IsInf(float64(math.Float32frombits(binary.LittleEndian.Uint32(out.Bytes()))), 1))
}

func TestZString(t *testing.T) {
	s := readerOn([]byte("hello\x00rest"))
	var z ZString
	require.NoError(t, z.Read(s))
	assert.Equal(t, "hello", z.Value())

	// Terminator consumed, following byte is 'r'.
	b, err := s.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('r'), b)

	var out bytes.Buffer
	require.NoError(t, z.Write(NewWriter(&out)))
	assert.Equal(t, []byte("hello\x00"), out.Bytes())
}

func TestZStringMissingTerminator(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, MaxZStringLen+10)
	var z ZString
	err := z.Read(readerOn(data))
	assert.True(t, IsSizeError(err))
}

func TestFixedString(t *testing.T) {
	f := NewFixedString(8)
	require.NoError(t, f.Read(readerOn([]byte("abc\x00\x00\x00\x00\x00"))))
	assert.Equal(t, "abc", f.Value())

	var out bytes.Buffer
	require.NoError(t, f.Write(NewWriter(&out)))
	assert.Equal(t, []byte("abc\x00\x00\x00\x00\x00"), out.Bytes())
}

func TestSizedString(t *testing.T) {
	wire := append([]byte{5, 0, 0, 0}, []byte("tiles")...)
	var ss SizedString
	require.NoError(t, ss.Read(readerOn(wire)))
	assert.Equal(t, "tiles", ss.Value())

	var out bytes.Buffer
	require.NoError(t, ss.Write(NewWriter(&out)))
	assert.Equal(t, wire, out.Bytes())
}

func TestSizedStringCapConsumesOnlyCount(t *testing.T) {
	// Count declares far more than the cap; the failure must leave the
	// stream positioned right after the 4-byte count field.
	wire := append([]byte{0xFF, 0xFF, 0xFF, 0x0F}, []byte("payload")...)
	s := readerOn(wire)
	var ss SizedString
	err := ss.Read(s)
	assert.True(t, IsSizeError(err))
	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)
}

func TestBlobReadsRemaining(t *testing.T) {
	s := readerOn([]byte{1, 2, 3, 4, 5})
	var u UInt8
	require.NoError(t, u.Read(s))
	var b Blob
	require.NoError(t, b.Read(s))
	assert.Equal(t, []byte{2, 3, 4, 5}, b.Value())
	assert.Equal(t, int64(4), b.Size())
}

func TestPreservePos(t *testing.T) {
	s := readerOn([]byte{1, 2, 3, 4})
	_, err := s.ReadByte()
	require.NoError(t, err)

	err = s.PreservePos(func() error {
		buf := make([]byte, 2)
		return s.ReadFull(buf)
	})
	require.NoError(t, err)
	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)

	// Position restored on failure too.
	err = s.PreservePos(func() error {
		buf := make([]byte, 100)
		return s.ReadFull(buf)
	})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	pos, err = s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
}

func TestTruncatedReadSurfacesUnexpectedEOF(t *testing.T) {
	var u UInt32
	err := u.Read(readerOn([]byte{1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
