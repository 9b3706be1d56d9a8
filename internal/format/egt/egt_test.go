package egt_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/egt"
)

type egtBuilder struct{ buf bytes.Buffer }

func (b *egtBuilder) u32(v uint32) *egtBuilder {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	b.buf.Write(n[:])
	return b
}

func (b *egtBuilder) i16(v int16) *egtBuilder {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(v))
	b.buf.Write(n[:])
	return b
}

func (b *egtBuilder) f32(v float32) *egtBuilder {
	return b.u32(math.Float32bits(v))
}

// sample is a 2x2 image with one symmetric texture morph.
func sample() []byte {
	var b egtBuilder
	b.buf.WriteString("FREGT002")
	b.u32(2) // width
	b.u32(2) // height
	b.u32(1) // sym textures
	b.u32(0) // asym textures
	b.u32(0)
	b.buf.Write(make([]byte, 40))
	b.f32(2.0)
	b.i16(1).i16(2).i16(3).i16(4)     // red
	b.i16(-1).i16(-2).i16(-3).i16(-4) // green
	b.i16(0).i16(10).i16(0).i16(-10)  // blue
	return b.buf.Bytes()
}

func TestInspect(t *testing.T) {
	d := &egt.Data{}
	s := codec.NewReader(bytes.NewReader(sample()))

	require.NoError(t, d.InspectQuick(s))
	assert.Equal(t, uint32(2), d.Version())
	assert.Equal(t, format.StateInspected, d.State())

	err := d.InspectQuick(codec.NewReader(bytes.NewReader([]byte("FREGM002"))))
	assert.True(t, format.IsMismatch(err))
}

func TestReadChannels(t *testing.T) {
	d := &egt.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	tex, err := d.SymTexture(0)
	require.NoError(t, err)

	red, err := tex.Channel("Red Deltas")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8}, red, "deltas scale by the record's factor")

	green, err := tex.Channel("Green Deltas")
	require.NoError(t, err)
	assert.Equal(t, []float32{-2, -4, -6, -8}, green)

	_, err = tex.Channel("Cyan Deltas")
	assert.Error(t, err)

	_, err = d.AsymTexture(0)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	data := sample()
	d := &egt.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(data))))

	var out bytes.Buffer
	require.NoError(t, d.Write(codec.NewWriter(&out)))
	assert.Equal(t, data, out.Bytes())
}

func TestRejectsTrailingBytes(t *testing.T) {
	d := &egt.Data{}
	err := d.Read(codec.NewReader(bytes.NewReader(append(sample(), 1, 2))))
	assert.True(t, format.IsContentError(err))
}
