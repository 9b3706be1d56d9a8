package tga_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/tga"
	"github.com/quellen/fileform/internal/record"
)

type tgaBuilder struct{ buf bytes.Buffer }

func (b *tgaBuilder) u8(v uint8) *tgaBuilder {
	b.buf.WriteByte(v)
	return b
}

func (b *tgaBuilder) u16(v uint16) *tgaBuilder {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], v)
	b.buf.Write(n[:])
	return b
}

func (b *tgaBuilder) raw(p []byte) *tgaBuilder {
	b.buf.Write(p)
	return b
}

// header emits the 18 fixed bytes for an uncompressed truecolor image.
func (b *tgaBuilder) header(width, height uint16, depth uint8) *tgaBuilder {
	b.u8(0)  // no image id
	b.u8(0)  // no color map
	b.u8(2)  // truecolor
	b.u16(0).u16(0).u8(0)
	b.u16(0).u16(0)
	b.u16(width).u16(height)
	b.u8(depth)
	b.u8(0x20) // top to bottom
	return b
}

func (b *tgaBuilder) footer() *tgaBuilder {
	var n [4]byte
	b.buf.Write(n[:])
	b.buf.Write(n[:])
	b.buf.WriteString("TRUEVISION-XFILE.")
	b.buf.WriteByte(0)
	return b
}

func truecolorSample(withFooter bool) []byte {
	var b tgaBuilder
	b.header(2, 2, 24)
	b.raw(bytes.Repeat([]byte{0x10, 0x20, 0x30}, 4))
	if withFooter {
		b.footer()
	}
	return b.buf.Bytes()
}

func colormapSample() []byte {
	var b tgaBuilder
	b.u8(3)  // image id length
	b.u8(1)  // color map present
	b.u8(1)  // colormapped
	b.u16(0).u16(2).u8(24)
	b.u16(0).u16(0)
	b.u16(2).u16(2)
	b.u8(8)
	b.u8(0)
	b.raw([]byte("id!"))
	b.raw([]byte{1, 2, 3, 4, 5, 6}) // 2 entries of 24 bits
	b.raw([]byte{0, 1, 1, 0})
	return b.buf.Bytes()
}

func TestInspectDetectsFooter(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   uint32
	}{
		{"without footer", truecolorSample(false), tga.VersionOriginal},
		{"with footer", truecolorSample(true), tga.VersionNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &tga.Data{}
			s := codec.NewReader(bytes.NewReader(tt.sample))

			require.NoError(t, d.InspectQuick(s))
			assert.Equal(t, tt.want, d.Version())

			pos, err := s.Pos()
			require.NoError(t, err)
			assert.Equal(t, int64(0), pos)
		})
	}
}

func TestInspectRejectsImplausibleHeader(t *testing.T) {
	bad := truecolorSample(false)
	bad[2] = 5 // no such image type

	d := &tga.Data{}
	err := d.InspectQuick(codec.NewReader(bytes.NewReader(bad)))
	assert.True(t, format.IsMismatch(err))

	bad = truecolorSample(false)
	bad[16] = 13 // no such pixel depth
	err = d.InspectQuick(codec.NewReader(bytes.NewReader(bad)))
	assert.True(t, format.IsMismatch(err))
}

func TestReadTruecolor(t *testing.T) {
	d := &tga.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(truecolorSample(true)))))
	assert.Equal(t, format.StateRead, d.State())

	h := d.Header()
	width, err := h.Uint("Width")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), width)

	imageType, err := h.Get("Image Type")
	require.NoError(t, err)
	assert.Equal(t, "TRUECOLOR", imageType.(*record.Enum).Name())

	desc, err := h.Get("Image Descriptor")
	require.NoError(t, err)
	topDown, err := desc.(*record.BitField).Member("Top To Bottom")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), topDown)

	assert.Len(t, d.Pixels(), 12)

	require.NotNil(t, d.Footer())
	sig, err := d.Footer().Str("Signature")
	require.NoError(t, err)
	assert.Equal(t, tga.FooterSignature, sig)
}

func TestReadColormap(t *testing.T) {
	d := &tga.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(colormapSample()))))

	h := d.Header()
	id, err := h.Array("Image ID")
	require.NoError(t, err)
	assert.Equal(t, 3, id.Len())

	cmap, err := h.Array("Color Map Data")
	require.NoError(t, err)
	assert.Equal(t, 6, cmap.Len(), "2 entries of 24 bits make 6 bytes")

	assert.Len(t, d.Pixels(), 4)
	assert.Nil(t, d.Footer())
}

func TestRoundTrip(t *testing.T) {
	for name, sample := range map[string][]byte{
		"truecolor 1.0": truecolorSample(false),
		"truecolor 2.0": truecolorSample(true),
		"colormapped":   colormapSample(),
	} {
		t.Run(name, func(t *testing.T) {
			d := &tga.Data{}
			require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample))))

			var out bytes.Buffer
			require.NoError(t, d.Write(codec.NewWriter(&out)))
			assert.Equal(t, sample, out.Bytes())
		})
	}
}
