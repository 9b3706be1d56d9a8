package egm_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/egm"
)

type egmBuilder struct{ buf bytes.Buffer }

func (b *egmBuilder) u32(v uint32) *egmBuilder {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	b.buf.Write(n[:])
	return b
}

func (b *egmBuilder) i16(v int16) *egmBuilder {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(v))
	b.buf.Write(n[:])
	return b
}

func (b *egmBuilder) f32(v float32) *egmBuilder {
	return b.u32(math.Float32bits(v))
}

// sample is two vertices with one symmetric morph.
func sample() []byte {
	var b egmBuilder
	b.buf.WriteString("FREGM002")
	b.u32(2) // num vertices
	b.u32(1) // num sym morphs
	b.u32(0) // num asym morphs
	b.u32(0x5EED)
	b.buf.Write(make([]byte, 40))
	b.f32(0.5)
	b.i16(10).i16(-20).i16(30)
	b.i16(0).i16(32767).i16(-32767)
	return b.buf.Bytes()
}

func TestInspect(t *testing.T) {
	d := &egm.Data{}
	s := codec.NewReader(bytes.NewReader(sample()))

	require.NoError(t, d.InspectQuick(s))
	assert.Equal(t, uint32(2), d.Version())

	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestInspectRejectsForeignStream(t *testing.T) {
	d := &egm.Data{}
	s := codec.NewReader(bytes.NewReader([]byte("FREGT002xxxxxxxx")))

	assert.True(t, format.IsMismatch(d.InspectQuick(s)))
}

func TestInspectUnknownVersion(t *testing.T) {
	d := &egm.Data{}
	s := codec.NewReader(bytes.NewReader([]byte("FREGM007xxxxxxxx")))

	assert.True(t, format.IsVersionError(d.InspectQuick(s)))
}

func TestReadMorphs(t *testing.T) {
	d := &egm.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	n, err := d.Header().Uint("Num Vertices")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	m, err := d.SymMorph(0)
	require.NoError(t, err)

	scale, err := m.Scale()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scale, 1e-6)

	verts, err := m.RelativeVertices()
	require.NoError(t, err)
	require.Len(t, verts, 2)
	assert.InDelta(t, 5.0, verts[0][0], 1e-4)
	assert.InDelta(t, -10.0, verts[0][1], 1e-4)
	assert.InDelta(t, 15.0, verts[0][2], 1e-4)
	assert.InDelta(t, 16383.5, verts[1][1], 1e-1)

	_, err = d.SymMorph(1)
	assert.Error(t, err)
	_, err = d.AsymMorph(0)
	assert.Error(t, err)
}

func TestQuantization(t *testing.T) {
	d := &egm.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	m, err := d.SymMorph(0)
	require.NoError(t, err)

	in := [][3]float32{
		{1, -2, 3},
		{0, 9, -4.5},
	}
	require.NoError(t, m.SetRelativeVertices(in))

	scale, err := m.Scale()
	require.NoError(t, err)
	assert.InDelta(t, 9.0/32767.0, scale, 1e-9, "largest component spans the int16 range")

	out, err := m.RelativeVertices()
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, in[i][c], out[i][c], 9.0/32767.0)
		}
	}
	assert.InDelta(t, 9.0, out[1][1], 1e-6, "the extreme component is exact")
}

func TestQuantizationAllZero(t *testing.T) {
	d := &egm.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	m, err := d.SymMorph(0)
	require.NoError(t, err)
	require.NoError(t, m.SetRelativeVertices(make([][3]float32, 2)))

	out, err := m.RelativeVertices()
	require.NoError(t, err)
	for _, v := range out {
		assert.Equal(t, [3]float32{}, v)
	}
}

func TestVertexCountMismatch(t *testing.T) {
	d := &egm.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	m, err := d.SymMorph(0)
	require.NoError(t, err)
	err = m.SetRelativeVertices(make([][3]float32, 5))
	assert.True(t, codec.IsSizeError(err))
}

func TestRoundTrip(t *testing.T) {
	data := sample()
	d := &egm.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(data))))

	var out bytes.Buffer
	require.NoError(t, d.Write(codec.NewWriter(&out)))
	assert.Equal(t, data, out.Bytes())
}

func TestRejectsTrailingBytes(t *testing.T) {
	data := append(sample(), 0x00)
	d := &egm.Data{}
	err := d.Read(codec.NewReader(bytes.NewReader(data)))
	assert.True(t, format.IsContentError(err))
}
