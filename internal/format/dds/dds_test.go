package dds_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/dds"
	"github.com/quellen/fileform/internal/record"
)

func u32(b *bytes.Buffer, v uint32) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	b.Write(n[:])
}

func pixelFormat(b *bytes.Buffer, flags uint32, fourCC string) {
	u32(b, 32)
	u32(b, flags)
	b.WriteString(fourCC)
	for i := 0; i < 5; i++ {
		u32(b, 0)
	}
}

// dx9Sample is a 4x4 DXT1 texture with one mip level.
func dx9Sample() []byte {
	var b bytes.Buffer
	b.WriteString("DDS ")
	u32(&b, 124)
	u32(&b, 0x00001007) // caps, height, width, pixel format
	u32(&b, 4)          // height
	u32(&b, 4)          // width
	u32(&b, 8)          // linear size of one DXT1 block
	u32(&b, 0)          // depth
	u32(&b, 1)          // mipmap count
	for i := 0; i < 11; i++ {
		u32(&b, 0)
	}
	pixelFormat(&b, 0x4, "DXT1")
	u32(&b, 0x1000) // caps: texture
	u32(&b, 0)
	u32(&b, 0)
	u32(&b, 0)
	u32(&b, 0)
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	return b.Bytes()
}

// dx10Sample carries the extension header a BC7 surface needs.
func dx10Sample() []byte {
	var b bytes.Buffer
	b.WriteString("DDS ")
	u32(&b, 144)
	u32(&b, 0x00001007)
	u32(&b, 4)
	u32(&b, 4)
	u32(&b, 16)
	u32(&b, 0)
	u32(&b, 1)
	for i := 0; i < 11; i++ {
		u32(&b, 0)
	}
	pixelFormat(&b, 0x4, "DX10")
	u32(&b, 0x1000)
	u32(&b, 0)
	u32(&b, 0)
	u32(&b, 0)
	u32(&b, 0)
	u32(&b, 98) // DXGI_FORMAT_BC7_UNORM
	u32(&b, 3)  // texture2d
	u32(&b, 0)
	u32(&b, 1)
	u32(&b, 0)
	b.Write(bytes.Repeat([]byte{0xAB}, 16))
	return b.Bytes()
}

func TestInspectPicksDialectFromHeaderSize(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   uint32
	}{
		{"dx9", dx9Sample(), 0x09000000},
		{"dx10", dx10Sample(), 0x0A000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &dds.Data{}
			s := codec.NewReader(bytes.NewReader(tt.sample))

			require.NoError(t, d.InspectQuick(s))
			assert.Equal(t, tt.want, d.Version())
			assert.Equal(t, format.StateInspected, d.State())

			pos, err := s.Pos()
			require.NoError(t, err)
			assert.Equal(t, int64(0), pos)
		})
	}
}

func TestInspectRejectsForeignStream(t *testing.T) {
	d := &dds.Data{}
	s := codec.NewReader(bytes.NewReader([]byte(";Gamebryo KFM File Version 1.2.4b\n")))

	assert.True(t, format.IsMismatch(d.InspectQuick(s)))
}

func TestInspectRejectsUnknownHeaderSize(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("DDS ")
	u32(&b, 96)
	d := &dds.Data{}
	s := codec.NewReader(bytes.NewReader(b.Bytes()))

	assert.True(t, format.IsVersionError(d.InspectQuick(s)))
}

func TestReadDX9(t *testing.T) {
	d := &dds.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(dx9Sample()))))
	assert.Equal(t, format.StateRead, d.State())

	h := d.Header()
	width, err := h.Uint("Width")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), width)

	flags, err := h.Get("Flags")
	require.NoError(t, err)
	bf := flags.(*record.BitField)
	height, err := bf.Member("Height")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	linear, err := bf.Member("Linear Size")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), linear)

	pf, err := h.Sub("Pixel Format")
	require.NoError(t, err)
	fourCC, err := pf.Str("Four CC")
	require.NoError(t, err)
	assert.Equal(t, "DXT1", fourCC)

	blob, err := h.Bytes("Pixel Data")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, blob)
}

func TestReadDX10Extension(t *testing.T) {
	d := &dds.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(dx10Sample()))))

	ext, err := d.Header().Sub("Header 10")
	require.NoError(t, err)

	v, err := ext.Get("DXGI Format")
	require.NoError(t, err)
	e := v.(*record.Enum)
	assert.Equal(t, uint64(98), e.Uint())
	assert.Equal(t, "DXGI_FORMAT_BC7_UNORM", e.Name())

	size, err := ext.Uint("Array Size")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
}

func TestDX9SkipsExtension(t *testing.T) {
	d := &dds.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(dx9Sample()))))

	for _, f := range d.Header().Fields() {
		assert.NotEqual(t, "Header 10", f.Name)
	}
}

func TestRoundTripDX9(t *testing.T) {
	sample := dx9Sample()
	d := &dds.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample))))

	var out bytes.Buffer
	require.NoError(t, d.Write(codec.NewWriter(&out)))
	assert.Equal(t, sample, out.Bytes())
}

func TestWriteDX10NotImplemented(t *testing.T) {
	d := &dds.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(dx10Sample()))))

	var out bytes.Buffer
	assert.True(t, format.IsNotImplemented(d.Write(codec.NewWriter(&out))))
}
